package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/platform/ctxutil"
)

// sessionFrom builds the caller session from what the auth middleware
// attached. Public routes get an anonymous session.
func sessionFrom(c *gin.Context) types.Session {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return types.Session{}
	}
	return types.Session{UserID: rd.UserID}
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}
