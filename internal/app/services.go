package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type Services struct {
	Lineage   lineage.Service
	Blogs     services.BlogService
	Images    services.ImageService
	Providers services.ProviderService
	Workflows *authoring.Manager
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	posts := lineage.NewService(db, log, r.Post, r.Development, lineage.Config{
		InterestVocabulary: cfg.InterestVocabulary,
	})
	blogs, err := services.NewBlogService(db, log, r.Blog, clients.Bucket, cfg.Logo, cfg.InterestVocabulary)
	if err != nil {
		return Services{}, fmt.Errorf("init blog service: %w", err)
	}
	images := services.NewImageService(log, cfg.Images, posts, clients.Bucket)
	providers := services.NewProviderService(db, log, r.ProviderCredential, clients.LLMFactory)

	workflows := authoring.NewManager(authoring.ManagerDeps{
		Log: log,
		Config: authoring.Config{
			ProviderTimeout: cfg.Authoring.ProviderTimeout,
			AutosaveDelay:   cfg.Authoring.AutosaveDelay,
			LockTTL:         cfg.Authoring.LockTTL,
			IdleTTL:         cfg.Authoring.IdleTTL,
		},
		Dev:        r.Development,
		Posts:      r.Post,
		Locker:     clients.Locker,
		Registries: providers,
		Metrics:    metrics,
	})

	return Services{
		Lineage:   posts,
		Blogs:     blogs,
		Images:    images,
		Providers: providers,
		Workflows: workflows,
	}, nil
}
