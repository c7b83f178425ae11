package blog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type BlogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, b *types.Blog) (*types.Blog, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Blog, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.Blog, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]any) error
}

type blogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlogRepo(db *gorm.DB, baseLog *logger.Logger) BlogRepo {
	return &blogRepo{db: db, log: baseLog.With("repo", "BlogRepo")}
}

func (r *blogRepo) Create(ctx context.Context, tx *gorm.DB, b *types.Blog) (*types.Blog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	b.Username = strings.ToLower(strings.TrimSpace(b.Username))
	if err := transaction.WithContext(ctx).Create(b).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return b, nil
}

func (r *blogRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Blog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var b types.Blog
	err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByUsername matches case-insensitively; usernames are stored lowercased.
func (r *blogRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.Blog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var b types.Blog
	err := transaction.WithContext(ctx).
		Where("username = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *blogRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return mapWriteError(transaction.WithContext(ctx).
		Model(&types.Blog{}).
		Where("user_id = ?", userID).
		Updates(updates).Error)
}
