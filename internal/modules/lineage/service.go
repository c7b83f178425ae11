// Package lineage creates, edits and traverses post arcs.
package lineage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/htmltext"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

const briefMaxRunes = 200

// PostFields are the author-supplied fields of a new post.
type PostFields struct {
	Title            string   `json:"title"`
	BriefDescription string   `json:"brief_description"`
	Content          string   `json:"content"`
	Tags             []string `json:"tag_names"`
	Interests        []string `json:"interest_names"`
}

// PostPatch edits a post. Nil fields are left alone.
type PostPatch struct {
	Title            *string   `json:"title"`
	BriefDescription *string   `json:"brief_description"`
	Content          *string   `json:"content"`
	Tags             *[]string `json:"tag_names"`
	Interests        *[]string `json:"interest_names"`
}

type Service interface {
	CreateRoot(ctx context.Context, s types.Session, f PostFields) (*types.Post, error)
	CreateChild(ctx context.Context, s types.Session, parentID uuid.UUID, f PostFields) (*types.Post, error)
	GetPost(ctx context.Context, postID uuid.UUID) (*types.Post, error)
	// BuildTree returns the arc's tree. A non-nil tree may come with an
	// *OrphanedPostsError describing posts left out of it.
	BuildTree(ctx context.Context, arcID uuid.UUID) (*TreeNode, error)
	ListChildren(ctx context.Context, postID uuid.UUID) ([]*types.Post, error)
	ListArcs(ctx context.Context, userID uuid.UUID) ([]*types.Post, error)
	UpdatePost(ctx context.Context, s types.Session, postID uuid.UUID, patch PostPatch) (*types.Post, error)
	DeletePost(ctx context.Context, s types.Session, postID uuid.UUID) error
	// OwnedPost loads a post and checks that the session owns it.
	OwnedPost(ctx context.Context, s types.Session, postID uuid.UUID) (*types.Post, error)
	AppendImage(ctx context.Context, s types.Session, postID uuid.UUID, url string) (*types.Post, error)
}

type Config struct {
	// InterestVocabulary is the allowed set of interests. Empty allows any.
	InterestVocabulary []string
}

type service struct {
	db        *gorm.DB
	log       *logger.Logger
	posts     repos.PostRepo
	dev       repos.DevelopmentRepo
	interests types.Vocabulary
	now       func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, posts repos.PostRepo, dev repos.DevelopmentRepo, cfg Config) Service {
	return &service{
		db:        db,
		log:       log.With("service", "LineageService"),
		posts:     posts,
		dev:       dev,
		interests: types.NewVocabulary(cfg.InterestVocabulary),
		now:       time.Now,
	}
}

func (s *service) CreateRoot(ctx context.Context, sess types.Session, f PostFields) (*types.Post, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	post, err := s.newPost(sess.UserID, f)
	if err != nil {
		return nil, err
	}
	post.ArcID = post.ID
	if _, err := s.posts.Create(ctx, nil, []*types.Post{post}); err != nil {
		return nil, fmt.Errorf("create root post: %w", err)
	}
	s.log.Info("Created arc", "post_id", post.ID.String(), "user_id", sess.UserID.String())
	return post, nil
}

func (s *service) CreateChild(ctx context.Context, sess types.Session, parentID uuid.UUID, f PostFields) (*types.Post, error) {
	parent, err := s.OwnedPost(ctx, sess, parentID)
	if err != nil {
		return nil, err
	}
	post, err := s.newPost(sess.UserID, f)
	if err != nil {
		return nil, err
	}
	pid := parent.ID
	post.ArcID = parent.ArcID
	post.ParentID = &pid
	// siblings are ordered by creation time; keep a child strictly after its parent
	if !post.CreatedAt.After(parent.CreatedAt) {
		post.CreatedAt = parent.CreatedAt.Add(time.Microsecond)
		post.UpdatedAt = post.CreatedAt
	}
	if _, err := s.posts.Create(ctx, nil, []*types.Post{post}); err != nil {
		return nil, fmt.Errorf("create child post: %w", err)
	}
	s.log.Info("Created child post", "post_id", post.ID.String(), "parent_id", pid.String(), "arc_id", post.ArcID.String())
	return post, nil
}

func (s *service) newPost(userID uuid.UUID, f PostFields) (*types.Post, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	interests, err := s.normalizeInterests(f.Interests)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return &types.Post{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            title,
		BriefDescription: s.brief(f.BriefDescription, f.Content),
		Content:          f.Content,
		TagNames:         datatypes.JSONSlice[string](types.NormalizeNames(f.Tags)),
		InterestNames:    datatypes.JSONSlice[string](interests),
		Images:           datatypes.JSONSlice[string]{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *service) brief(brief, content string) string {
	if b := strings.TrimSpace(brief); b != "" {
		return b
	}
	return htmltext.Excerpt(content, briefMaxRunes)
}

func (s *service) normalizeInterests(in []string) ([]string, error) {
	return s.interests.Canonicalize(in)
}

func (s *service) GetPost(ctx context.Context, postID uuid.UUID) (*types.Post, error) {
	post, err := s.posts.GetByID(ctx, nil, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *service) OwnedPost(ctx context.Context, sess types.Session, postID uuid.UUID) (*types.Post, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != sess.UserID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *service) BuildTree(ctx context.Context, arcID uuid.UUID) (*TreeNode, error) {
	posts, err := s.posts.ListByArc(ctx, nil, arcID)
	if err != nil {
		return nil, fmt.Errorf("list arc posts: %w", err)
	}
	root, orphans, err := assembleTree(arcID, posts)
	if err != nil {
		s.log.Warn("Arc has no root", "arc_id", arcID.String(), "posts", len(posts))
		return nil, err
	}
	if len(orphans) > 0 {
		s.log.Warn("Orphaned posts excluded from arc", "arc_id", arcID.String(), "count", len(orphans))
		return root, &OrphanedPostsError{ArcID: arcID, PostIDs: orphans}
	}
	return root, nil
}

func (s *service) ListChildren(ctx context.Context, postID uuid.UUID) ([]*types.Post, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	kids, err := s.posts.ListChildren(ctx, nil, postID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return kids, nil
}

func (s *service) ListArcs(ctx context.Context, userID uuid.UUID) ([]*types.Post, error) {
	roots, err := s.posts.ListRootsByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list arcs: %w", err)
	}
	return roots, nil
}

func (s *service) UpdatePost(ctx context.Context, sess types.Session, postID uuid.UUID, patch PostPatch) (*types.Post, error) {
	post, err := s.OwnedPost(ctx, sess, postID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		updates["title"] = title
		post.Title = title
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
		post.Content = *patch.Content
	}
	if patch.BriefDescription != nil {
		post.BriefDescription = strings.TrimSpace(*patch.BriefDescription)
		updates["brief_description"] = post.BriefDescription
	}
	if patch.BriefDescription != nil || patch.Content != nil {
		if post.BriefDescription == "" {
			post.BriefDescription = s.brief("", post.Content)
			updates["brief_description"] = post.BriefDescription
		}
	}
	if patch.Tags != nil {
		post.TagNames = datatypes.JSONSlice[string](types.NormalizeNames(*patch.Tags))
		updates["tag_names"] = post.TagNames
	}
	if patch.Interests != nil {
		interests, err := s.normalizeInterests(*patch.Interests)
		if err != nil {
			return nil, err
		}
		post.InterestNames = datatypes.JSONSlice[string](interests)
		updates["interest_names"] = post.InterestNames
	}
	if len(updates) == 0 {
		return post, nil
	}
	post.UpdatedAt = s.now().UTC()
	updates["updated_at"] = post.UpdatedAt
	if err := s.posts.UpdateFields(ctx, nil, postID, updates); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

// DeletePost removes a leaf post and its development records. Posts with
// children are refused so no arc is left with dangling parents.
func (s *service) DeletePost(ctx context.Context, sess types.Session, postID uuid.UUID) error {
	if _, err := s.OwnedPost(ctx, sess, postID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.posts.CountChildren(ctx, tx, postID)
		if err != nil {
			return fmt.Errorf("count children: %w", err)
		}
		if n > 0 {
			return ErrPostHasChildren
		}
		if err := s.dev.DeleteByPostID(ctx, tx, postID); err != nil {
			return fmt.Errorf("delete development records: %w", err)
		}
		if err := s.posts.Delete(ctx, tx, postID); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		s.log.Info("Deleted post", "post_id", postID.String())
		return nil
	})
}

func (s *service) AppendImage(ctx context.Context, sess types.Session, postID uuid.UUID, url string) (*types.Post, error) {
	post, err := s.OwnedPost(ctx, sess, postID)
	if err != nil {
		return nil, err
	}
	images := append(datatypes.JSONSlice[string]{}, post.Images...)
	images = append(images, url)
	now := s.now().UTC()
	if err := s.posts.UpdateFields(ctx, nil, postID, map[string]any{"images": images, "updated_at": now}); err != nil {
		return nil, fmt.Errorf("append post image: %w", err)
	}
	post.Images = images
	post.UpdatedAt = now
	return post, nil
}
