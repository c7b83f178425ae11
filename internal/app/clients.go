package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/lock"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type Clients struct {
	Bucket     gcp.BucketService
	Redis      *goredis.Client
	Locker     lock.Locker
	LLMFactory *llm.Factory
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	bucket, err := resolveBucketService(ctx, log, cfg.Storage)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	// Redis is optional; without it generation locks only span this process.
	var (
		rdb    *goredis.Client
		locker lock.Locker
	)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err = lock.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		locker, err = lock.NewRedisLocker(log, rdb, "")
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis locker: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set; using in-process generation locks")
		locker = lock.NewMemoryLocker()
	}

	factory := llm.NewFactory(log, llm.FactoryConfig{
		BaseURLs:    cfg.LLM.BaseURLs,
		MaxRetries:  cfg.LLM.MaxRetries,
		HTTPTimeout: cfg.LLM.HTTPTimeout,
	})

	return Clients{
		Bucket:     bucket,
		Redis:      rdb,
		Locker:     locker,
		LLMFactory: factory,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
