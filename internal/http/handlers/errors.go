package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/platform/apierr"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type errorRule struct {
	target error
	status int
	code   string
}

var errorRules = []errorRule{
	{lineage.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{services.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{lineage.ErrForbidden, http.StatusForbidden, "forbidden"},
	{authoring.ErrForbidden, http.StatusForbidden, "forbidden"},
	{lineage.ErrPostNotFound, http.StatusNotFound, "post_not_found"},
	{authoring.ErrPostNotFound, http.StatusNotFound, "post_not_found"},
	{lineage.ErrRootNotFound, http.StatusNotFound, "arc_not_found"},
	{services.ErrBlogNotFound, http.StatusNotFound, "blog_not_found"},
	{services.ErrCredentialNotFound, http.StatusNotFound, "provider_not_found"},
	{lineage.ErrPostHasChildren, http.StatusConflict, "post_has_children"},
	{authoring.ErrBusy, http.StatusConflict, "busy"},
	{authoring.ErrWorkflowClosed, http.StatusConflict, "workflow_closed"},
	{authoring.ErrWorkflowNotOpen, http.StatusConflict, "workflow_not_open"},
	{services.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{lineage.ErrTitleRequired, http.StatusBadRequest, "title_required"},
	{lineage.ErrUnknownInterest, http.StatusBadRequest, "unknown_interest"},
	{services.ErrUsernameRequired, http.StatusBadRequest, "username_required"},
	{services.ErrInvalidUsername, http.StatusBadRequest, "invalid_username"},
	{services.ErrAPIKeyRequired, http.StatusBadRequest, "api_key_required"},
	{llm.ErrInvalidProviderKey, http.StatusBadRequest, "invalid_provider"},
	{services.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "image_too_large"},
	{services.ErrUnsupportedImage, http.StatusUnsupportedMediaType, "unsupported_image"},
	{llm.ErrNoProvider, http.StatusPreconditionFailed, "no_provider"},
	{llm.ErrProviderTimeout, http.StatusGatewayTimeout, "provider_timeout"},
}

// toAPIError maps a domain error onto an HTTP status and code. Unknown
// errors are returned unchanged.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierr.From(err); ok {
		return err
	}
	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			return apierr.New(r.status, r.code, err)
		}
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return apierr.New(http.StatusRequestEntityTooLarge, "image_too_large", err)
	case authoring.IsUnknownCategory(err):
		return apierr.BadRequest("unknown_category", err)
	case llm.IsProviderError(err):
		return apierr.New(http.StatusBadGateway, "provider_error", err)
	}
	return err
}

func respondErr(c *gin.Context, err error, fallbackCode string) {
	response.RespondAPIError(c, toAPIError(err), fallbackCode)
}
