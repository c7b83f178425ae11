package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/arcblog-backend/internal/domain"
)

func SeedBlog(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.Blog {
	tb.Helper()
	b := &types.Blog{UserID: uuid.New(), Username: username, DisplayName: username}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed blog: %v", err)
	}
	return b
}

// SeedPost inserts a post directly. A nil parent makes a root; createdAt
// orders siblings deterministically.
func SeedPost(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, parent *types.Post, title string, createdAt time.Time) *types.Post {
	tb.Helper()
	p := &types.Post{ID: uuid.New(), UserID: userID, Title: title, CreatedAt: createdAt, UpdatedAt: createdAt}
	if parent == nil {
		p.ArcID = p.ID
	} else {
		pid := parent.ID
		p.ArcID = parent.ArcID
		p.ParentID = &pid
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed post: %v", err)
	}
	return p
}
