package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/arcblog-backend/internal/http/handlers"
	httpMW "github.com/yungbote/arcblog-backend/internal/http/middleware"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowOrigins   []string
	MaxUploadBytes int64
	// ServeMetrics mounts GET /metrics on the API router.
	ServeMetrics bool

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler      *httpH.HealthHandler
	BlogHandler        *httpH.BlogHandler
	PostHandler        *httpH.PostHandler
	DevelopmentHandler *httpH.DevelopmentHandler
	ProviderHandler    *httpH.ProviderHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.ServeMetrics && cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Public reads
		if cfg.BlogHandler != nil {
			api.GET("/blogs/:username", cfg.BlogHandler.GetBlog)
			api.GET("/blogs/:username/arcs/:arcId", cfg.BlogHandler.GetArc)
		}
		if cfg.PostHandler != nil {
			api.GET("/posts/:id", cfg.PostHandler.GetPost)
			api.GET("/posts/:id/children", cfg.PostHandler.ListChildren)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Posts
		if cfg.PostHandler != nil {
			protected.POST("/posts", cfg.PostHandler.CreateRoot)
			protected.POST("/posts/:id/children", cfg.PostHandler.CreateChild)
			protected.PATCH("/posts/:id", cfg.PostHandler.UpdatePost)
			protected.DELETE("/posts/:id", cfg.PostHandler.DeletePost)
			protected.POST("/posts/:id/images", httpMW.LimitBody(cfg.MaxUploadBytes), cfg.PostHandler.UploadImage)
		}

		// Development workflow
		if cfg.DevelopmentHandler != nil {
			dev := protected.Group("/posts/:id/development")
			dev.POST("", cfg.DevelopmentHandler.Open)
			dev.GET("", cfg.DevelopmentHandler.Get)
			dev.DELETE("", cfg.DevelopmentHandler.Close)
			dev.POST("/advance", cfg.DevelopmentHandler.Advance)
			dev.POST("/retreat", cfg.DevelopmentHandler.Retreat)
			dev.POST("/generate", cfg.DevelopmentHandler.Generate)
			dev.POST("/save", cfg.DevelopmentHandler.Save)
			dev.PATCH("/prompts", cfg.DevelopmentHandler.UpdatePrompts)
			dev.PUT("/provider", cfg.DevelopmentHandler.SetProvider)
			dev.POST("/items", cfg.DevelopmentHandler.AddItem)
			dev.POST("/items/move", cfg.DevelopmentHandler.MoveItem)
			dev.DELETE("/items/:category/:index", cfg.DevelopmentHandler.DeleteItem)
		}

		// Me
		if cfg.BlogHandler != nil {
			protected.GET("/me/blog", cfg.BlogHandler.GetMine)
			protected.PUT("/me/blog", cfg.BlogHandler.UpsertMine)
			protected.PUT("/me/logo", httpMW.LimitBody(cfg.MaxUploadBytes), cfg.BlogHandler.UpdateLogo)
		}
		if cfg.ProviderHandler != nil {
			protected.GET("/me/providers", cfg.ProviderHandler.List)
			protected.PUT("/me/providers/:provider", cfg.ProviderHandler.Put)
			protected.DELETE("/me/providers/:provider", cfg.ProviderHandler.Delete)
		}
	}

	return r
}
