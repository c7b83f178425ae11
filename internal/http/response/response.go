// Package response writes JSON bodies and the {"error":{...}} envelope.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	body := APIError{Message: http.StatusText(status), Code: code}
	if err != nil {
		body.Message = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

// RespondAPIError answers with the status and code of the *apierr.Error in
// err's chain. Anything else is a 500 with fallbackCode and a generic message.
func RespondAPIError(c *gin.Context, err error, fallbackCode string) {
	if ae, ok := apierr.From(err); ok {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		RespondError(c, status, ae.Code, ae.Err)
		return
	}
	_ = c.Error(err)
	RespondError(c, http.StatusInternalServerError, fallbackCode, nil)
}

func RespondOK(c *gin.Context, payload any) { c.JSON(http.StatusOK, payload) }

func RespondCreated(c *gin.Context, payload any) { c.JSON(http.StatusCreated, payload) }

func RespondNoContent(c *gin.Context) { c.Status(http.StatusNoContent) }
