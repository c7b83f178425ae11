package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/arcblog-backend/internal/http/response"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type BlogHandlerDeps struct {
	Log   *logger.Logger
	Blogs services.BlogService
	Posts lineage.Service
}

type BlogHandler struct {
	log   *logger.Logger
	blogs services.BlogService
	posts lineage.Service
}

func NewBlogHandlerWithDeps(d BlogHandlerDeps) *BlogHandler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &BlogHandler{log: log.With("handler", "BlogHandler"), blogs: d.Blogs, posts: d.Posts}
}

// GET /api/blogs/:username
func (h *BlogHandler) GetBlog(c *gin.Context) {
	ctx := c.Request.Context()
	blog, err := h.blogs.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		respondErr(c, err, "load_blog_failed")
		return
	}
	arcs, err := h.posts.ListArcs(ctx, blog.UserID)
	if err != nil {
		respondErr(c, err, "list_arcs_failed")
		return
	}
	response.RespondOK(c, gin.H{"blog": blog, "arcs": arcs})
}

// GET /api/blogs/:username/arcs/:arcId
func (h *BlogHandler) GetArc(c *gin.Context) {
	ctx := c.Request.Context()
	arcID, ok := uuidParam(c, "arcId", "invalid_arc_id")
	if !ok {
		return
	}
	blog, err := h.blogs.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		respondErr(c, err, "load_blog_failed")
		return
	}
	tree, err := h.posts.BuildTree(ctx, arcID)
	var warnings []string
	var orphaned *lineage.OrphanedPostsError
	if errors.As(err, &orphaned) && tree != nil {
		warnings = append(warnings, orphaned.Error())
		err = nil
	}
	if err != nil {
		respondErr(c, err, "load_arc_failed")
		return
	}
	if tree.Post.UserID != blog.UserID {
		respondErr(c, lineage.ErrRootNotFound, "load_arc_failed")
		return
	}
	response.RespondOK(c, gin.H{"blog": blog, "tree": tree, "size": tree.Size(), "warnings": warnings})
}

// GET /api/me/blog
func (h *BlogHandler) GetMine(c *gin.Context) {
	blog, err := h.blogs.GetMine(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondErr(c, err, "load_blog_failed")
		return
	}
	response.RespondOK(c, gin.H{"blog": blog})
}

// PUT /api/me/blog
func (h *BlogHandler) UpsertMine(c *gin.Context) {
	var req services.ProfileInput
	if !bindJSON(c, &req) {
		return
	}
	blog, err := h.blogs.UpsertProfile(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		respondErr(c, err, "save_blog_failed")
		return
	}
	response.RespondOK(c, gin.H{"blog": blog})
}

// PUT /api/me/logo
func (h *BlogHandler) UpdateLogo(c *gin.Context) {
	raw, err := readUpload(c, "logo")
	if err != nil {
		respondErr(c, err, "read_upload_failed")
		return
	}
	blog, err := h.blogs.UpdateLogo(c.Request.Context(), sessionFrom(c), raw)
	if err != nil {
		respondErr(c, err, "update_logo_failed")
		return
	}
	response.RespondOK(c, gin.H{"blog": blog})
}
