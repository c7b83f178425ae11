package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type PostHandlerDeps struct {
	Log       *logger.Logger
	Posts     lineage.Service
	Images    services.ImageService
	Workflows *authoring.Manager
}

type PostHandler struct {
	log       *logger.Logger
	posts     lineage.Service
	images    services.ImageService
	workflows *authoring.Manager
}

func NewPostHandlerWithDeps(d PostHandlerDeps) *PostHandler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &PostHandler{
		log:       log.With("handler", "PostHandler"),
		posts:     d.Posts,
		images:    d.Images,
		workflows: d.Workflows,
	}
}

// GET /api/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		respondErr(c, err, "load_post_failed")
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// GET /api/posts/:id/children
func (h *PostHandler) ListChildren(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	kids, err := h.posts.ListChildren(c.Request.Context(), postID)
	if err != nil {
		respondErr(c, err, "list_children_failed")
		return
	}
	response.RespondOK(c, gin.H{"children": kids})
}

// POST /api/posts
func (h *PostHandler) CreateRoot(c *gin.Context) {
	var req lineage.PostFields
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.posts.CreateRoot(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		respondErr(c, err, "create_post_failed")
		return
	}
	response.RespondCreated(c, gin.H{"post": post})
}

// POST /api/posts/:id/children
func (h *PostHandler) CreateChild(c *gin.Context) {
	parentID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	var req lineage.PostFields
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.posts.CreateChild(c.Request.Context(), sessionFrom(c), parentID, req)
	if err != nil {
		respondErr(c, err, "create_post_failed")
		return
	}
	response.RespondCreated(c, gin.H{"post": post})
}

// PATCH /api/posts/:id
func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	var req lineage.PostPatch
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.posts.UpdatePost(c.Request.Context(), sessionFrom(c), postID, req)
	if err != nil {
		respondErr(c, err, "update_post_failed")
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	s := sessionFrom(c)
	if err := h.posts.DeletePost(c.Request.Context(), s, postID); err != nil {
		respondErr(c, err, "delete_post_failed")
		return
	}
	if h.workflows != nil {
		if err := h.workflows.Close(context.WithoutCancel(c.Request.Context()), s, postID, false); err != nil {
			h.log.Warn("Closing workflow of deleted post", "post_id", postID.String(), "error", err)
		}
	}
	response.RespondNoContent(c)
}

// POST /api/posts/:id/images
//
// Accepts a multipart "image" field or a raw image body.
func (h *PostHandler) UploadImage(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	raw, err := readUpload(c, "image")
	if err != nil {
		respondErr(c, err, "read_upload_failed")
		return
	}
	up, err := h.images.UploadPostImage(c.Request.Context(), sessionFrom(c), postID, raw)
	if err != nil {
		respondErr(c, err, "upload_image_failed")
		return
	}
	response.RespondCreated(c, gin.H{"image": up})
}

func readUpload(c *gin.Context, field string) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", services.ErrUnsupportedImage, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}
