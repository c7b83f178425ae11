package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/arcblog-backend/internal/http/handlers"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	Blog        *httpH.BlogHandler
	Post        *httpH.PostHandler
	Development *httpH.DevelopmentHandler
	Provider    *httpH.ProviderHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Blog: httpH.NewBlogHandlerWithDeps(httpH.BlogHandlerDeps{
			Log:   log,
			Blogs: services.Blogs,
			Posts: services.Lineage,
		}),
		Post: httpH.NewPostHandlerWithDeps(httpH.PostHandlerDeps{
			Log:       log,
			Posts:     services.Lineage,
			Images:    services.Images,
			Workflows: services.Workflows,
		}),
		Development: httpH.NewDevelopmentHandlerWithDeps(httpH.DevelopmentHandlerDeps{
			Log:       log,
			Workflows: services.Workflows,
		}),
		Provider: httpH.NewProviderHandlerWithDeps(httpH.ProviderHandlerDeps{
			Log:       log,
			Providers: services.Providers,
			Workflows: services.Workflows,
		}),
	}
}
