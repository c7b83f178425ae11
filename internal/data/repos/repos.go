package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos/blog"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type PostRepo = blog.PostRepo
type DevelopmentRepo = blog.DevelopmentRepo
type BlogRepo = blog.BlogRepo
type ProviderCredentialRepo = blog.ProviderCredentialRepo

var ErrConflict = blog.ErrConflict

func IsUniqueViolation(err error) bool { return blog.IsUniqueViolation(err) }

type Repos struct {
	Post               PostRepo
	Development        DevelopmentRepo
	Blog               BlogRepo
	ProviderCredential ProviderCredentialRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Post:               blog.NewPostRepo(db, log),
		Development:        blog.NewDevelopmentRepo(db, log),
		Blog:               blog.NewBlogRepo(db, log),
		ProviderCredential: blog.NewProviderCredentialRepo(db, log),
	}
}
