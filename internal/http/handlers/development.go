package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type DevelopmentHandlerDeps struct {
	Log       *logger.Logger
	Workflows *authoring.Manager
}

// DevelopmentHandler exposes the staged authoring workflow of a post. Every
// action answers with the workflow view.
type DevelopmentHandler struct {
	log       *logger.Logger
	workflows *authoring.Manager
}

func NewDevelopmentHandlerWithDeps(d DevelopmentHandlerDeps) *DevelopmentHandler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &DevelopmentHandler{log: log.With("handler", "DevelopmentHandler"), workflows: d.Workflows}
}

type generateRequest struct {
	Original *string `json:"original"`
}

type promptsRequest struct {
	Original     *string `json:"original"`
	SystemPrompt *string `json:"system_prompt"`
}

type providerRequest struct {
	Provider string `json:"provider" binding:"required"`
}

type addItemRequest struct {
	Category string `json:"category" binding:"required"`
	Text     string `json:"text"`
}

type moveItemRequest struct {
	From  string `json:"from" binding:"required"`
	Index *int   `json:"index" binding:"required"`
	To    string `json:"to" binding:"required"`
}

// workflow returns the caller's open workflow for :id, opening it when the
// process has none (first use, restart, idle eviction).
func (h *DevelopmentHandler) workflow(c *gin.Context) (*authoring.Workflow, bool) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return nil, false
	}
	s := sessionFrom(c)
	w, err := h.workflows.Get(s, postID)
	if errors.Is(err, authoring.ErrWorkflowNotOpen) {
		w, err = h.workflows.Open(c.Request.Context(), s, postID)
	}
	if err != nil {
		respondErr(c, err, "open_development_failed")
		return nil, false
	}
	return w, true
}

func (h *DevelopmentHandler) respondView(c *gin.Context, v authoring.View, err error, code string) {
	if err != nil {
		respondErr(c, err, code)
		return
	}
	response.RespondOK(c, v)
}

// POST /api/posts/:id/development
func (h *DevelopmentHandler) Open(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	w, err := h.workflows.Open(c.Request.Context(), sessionFrom(c), postID)
	if err != nil {
		respondErr(c, err, "open_development_failed")
		return
	}
	v, err := w.View()
	h.respondView(c, v, err, "open_development_failed")
}

// GET /api/posts/:id/development
func (h *DevelopmentHandler) Get(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.View()
	h.respondView(c, v, err, "load_development_failed")
}

// DELETE /api/posts/:id/development?flush=false
func (h *DevelopmentHandler) Close(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	flush := true
	if raw := c.Query("flush"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_flush", err)
			return
		}
		flush = b
	}
	// the flush must outlive a client that hangs up after sending the close
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.workflows.Close(ctx, sessionFrom(c), postID, flush); err != nil {
		respondErr(c, err, "close_development_failed")
		return
	}
	response.RespondNoContent(c)
}

// POST /api/posts/:id/development/advance
func (h *DevelopmentHandler) Advance(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.Advance(c.Request.Context())
	h.respondView(c, v, err, "advance_failed")
}

// POST /api/posts/:id/development/retreat
func (h *DevelopmentHandler) Retreat(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.Retreat(c.Request.Context())
	h.respondView(c, v, err, "retreat_failed")
}

// POST /api/posts/:id/development/generate
func (h *DevelopmentHandler) Generate(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	res, err := w.Generate(c.Request.Context(), req.Original)
	if err != nil {
		respondErr(c, err, "generate_failed")
		return
	}
	response.RespondOK(c, res)
}

// POST /api/posts/:id/development/save
func (h *DevelopmentHandler) Save(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.Save(c.Request.Context())
	h.respondView(c, v, err, "save_failed")
}

// PATCH /api/posts/:id/development/prompts
func (h *DevelopmentHandler) UpdatePrompts(c *gin.Context) {
	var req promptsRequest
	if !bindJSON(c, &req) {
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.UpdatePrompts(req.Original, req.SystemPrompt)
	h.respondView(c, v, err, "update_prompts_failed")
}

// PUT /api/posts/:id/development/provider
func (h *DevelopmentHandler) SetProvider(c *gin.Context) {
	var req providerRequest
	if !bindJSON(c, &req) {
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.SetProvider(req.Provider)
	h.respondView(c, v, err, "set_provider_failed")
}

// POST /api/posts/:id/development/items
func (h *DevelopmentHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.AddItem(req.Category, req.Text)
	h.respondView(c, v, err, "add_item_failed")
}

// DELETE /api/posts/:id/development/items/:category/:index
func (h *DevelopmentHandler) DeleteItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_index", err)
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.DeleteItem(c.Param("category"), index)
	h.respondView(c, v, err, "delete_item_failed")
}

// POST /api/posts/:id/development/items/move
func (h *DevelopmentHandler) MoveItem(c *gin.Context) {
	var req moveItemRequest
	if !bindJSON(c, &req) {
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	v, err := w.MoveItem(req.From, *req.Index, req.To)
	h.respondView(c, v, err, "move_item_failed")
}
