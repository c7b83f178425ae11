package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

// compare-and-delete so an expired holder never frees a newer lease.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisLocker(log *logger.Logger, rdb goredis.UniversalClient, prefix string) (Locker, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "arcblog:lock:"
	}
	return &redisLocker{log: log.With("service", "RedisLocker"), rdb: rdb, prefix: prefix}, nil
}

// DialRedis connects and pings, the way every redis consumer here starts.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	tok := newToken()
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, tok, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return &Lease{Key: key, token: tok, free: r.release}, nil
}

func (r *redisLocker) release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{r.prefix + key}, token).Err(); err != nil && err != goredis.Nil {
		r.log.Warn("Lock release failed", "key", key, "error", err)
		return err
	}
	return nil
}
