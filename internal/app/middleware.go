package app

import (
	"fmt"

	httpMW "github.com/yungbote/arcblog-backend/internal/http/middleware"
	"github.com/yungbote/arcblog-backend/internal/platform/authtoken"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) (Middleware, error) {
	log.Info("Wiring middleware...")
	verifier, err := authtoken.NewVerifier(cfg.JWTSecretKey, cfg.JWTIssuer)
	if err != nil {
		return Middleware{}, fmt.Errorf("init token verifier: %w", err)
	}
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, verifier),
	}, nil
}
