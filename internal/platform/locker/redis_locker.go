package locker

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
)

const lockKeyPrefix = "catalog:lock:"

type redisLocker struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisLocker(log *logger.Logger, rdb *goredis.Client) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisLocker{
		log: log.With("service", "RedisLocker"),
		rdb: rdb,
	}, nil
}

func (l *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := lockKeyPrefix + key

	ok, err := l.rdb.SetNX(ctx, redisKey, "1", ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release with a detached context: the caller's context may be
		// done by the time the critical section ends. TTL backstops a
		// crashed holder either way.
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.rdb.Del(ctx2, redisKey).Err(); err != nil {
			l.log.Warn("lock release failed, ttl will reap it", "lock_key", redisKey, "error", err)
		}
	}
	return release, true, nil
}
