package app

import (
	"strings"

	internhttp "github.com/yungbote/arcblog-backend/internal/http"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *internhttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	// the request body cap leaves room for multipart framing around the image
	maxUpload := cfg.Images.MaxBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return internhttp.NewServer(internhttp.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        serviceName,
		AllowOrigins:       cfg.AllowOrigins,
		MaxUploadBytes:     maxUpload + 1<<20,
		ServeMetrics:       strings.TrimSpace(cfg.Metrics.Addr) == "",
		AuthMiddleware:     middleware.Auth,
		HealthHandler:      handlers.Health,
		BlogHandler:        handlers.Blog,
		PostHandler:        handlers.Post,
		DevelopmentHandler: handlers.Development,
		ProviderHandler:    handlers.Provider,
	})
}
