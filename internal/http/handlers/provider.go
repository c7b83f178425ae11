package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type ProviderHandlerDeps struct {
	Log       *logger.Logger
	Providers services.ProviderService
	Workflows *authoring.Manager
}

type ProviderHandler struct {
	log       *logger.Logger
	providers services.ProviderService
	workflows *authoring.Manager
}

func NewProviderHandlerWithDeps(d ProviderHandlerDeps) *ProviderHandler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &ProviderHandler{log: log.With("handler", "ProviderHandler"), providers: d.Providers, workflows: d.Workflows}
}

// GET /api/me/providers
func (h *ProviderHandler) List(c *gin.Context) {
	list, err := h.providers.List(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondErr(c, err, "list_providers_failed")
		return
	}
	response.RespondOK(c, gin.H{"providers": list})
}

// PUT /api/me/providers/:provider
func (h *ProviderHandler) Put(c *gin.Context) {
	var req services.CredentialInput
	if !bindJSON(c, &req) {
		return
	}
	s := sessionFrom(c)
	v, err := h.providers.Put(c.Request.Context(), s, c.Param("provider"), req)
	if err != nil {
		respondErr(c, err, "save_provider_failed")
		return
	}
	h.refresh(c)
	response.RespondOK(c, gin.H{"provider": v})
}

// DELETE /api/me/providers/:provider
func (h *ProviderHandler) Delete(c *gin.Context) {
	s := sessionFrom(c)
	if err := h.providers.Delete(c.Request.Context(), s, c.Param("provider")); err != nil {
		respondErr(c, err, "delete_provider_failed")
		return
	}
	h.refresh(c)
	response.RespondNoContent(c)
}

// refresh pushes the edited credentials into the user's open workflows.
func (h *ProviderHandler) refresh(c *gin.Context) {
	if h.workflows == nil {
		return
	}
	userID := sessionFrom(c).UserID
	if err := h.workflows.RefreshProviders(c.Request.Context(), userID); err != nil {
		h.log.Warn("Refreshing workflow providers", "user_id", userID.String(), "error", err)
	}
}
