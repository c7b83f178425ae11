package blog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type PostRepo interface {
	Create(ctx context.Context, tx *gorm.DB, posts []*types.Post) ([]*types.Post, error)
	GetByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.Post, error)
	ListByArc(ctx context.Context, tx *gorm.DB, arcID uuid.UUID) ([]*types.Post, error)
	ListChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Post, error)
	CountChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error)
	ListRootsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Post, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, postID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return &postRepo{db: db, log: baseLog.With("repo", "PostRepo")}
}

func (r *postRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *postRepo) Create(ctx context.Context, tx *gorm.DB, posts []*types.Post) ([]*types.Post, error) {
	if len(posts) == 0 {
		return []*types.Post{}, nil
	}
	if err := r.tx(tx).WithContext(ctx).Create(&posts).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return posts, nil
}

// GetByID returns nil, nil when the post does not exist.
func (r *postRepo) GetByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.Post, error) {
	var p types.Post
	err := r.tx(tx).WithContext(ctx).Where("id = ?", postID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByArc returns every post of an arc in creation order.
func (r *postRepo) ListByArc(ctx context.Context, tx *gorm.DB, arcID uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	if err := r.tx(tx).WithContext(ctx).
		Where("arc_id = ?", arcID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	if err := r.tx(tx).WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) CountChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error) {
	var n int64
	err := r.tx(tx).WithContext(ctx).Model(&types.Post{}).Where("parent_id = ?", parentID).Count(&n).Error
	return n, err
}

// ListRootsByUser lists a user's arcs, newest first.
func (r *postRepo) ListRootsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	if err := r.tx(tx).WithContext(ctx).
		Where("user_id = ? AND parent_id IS NULL", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) UpdateFields(ctx context.Context, tx *gorm.DB, postID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return mapWriteError(r.tx(tx).WithContext(ctx).
		Model(&types.Post{}).
		Where("id = ?", postID).
		Updates(updates).Error)
}

func (r *postRepo) Delete(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Where("id = ?", postID).Delete(&types.Post{}).Error
}
