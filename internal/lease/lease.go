// Package lease guards the tracker tick so only one replica processes the
// queue at a time.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sdbooth/internal/pkg/logger"
)

// Locker hands out a short exclusive lease. When ok is false another holder
// owns it and release is nil.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Noop always grants the lease. Used when Redis is not configured.
type Noop struct{}

func (Noop) TryAcquire(ctx context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

// compare-and-delete so a holder never frees a lease that expired and was
// taken by someone else
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLock is a SET NX PX lease.
type RedisLock struct {
	rdb Scripter
	key string
	ttl time.Duration
	log *logger.Logger
}

// Scripter covers SetNX plus script evaluation.
type Scripter interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

func NewRedisLock(rdb Scripter, key string, ttl time.Duration, log *logger.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl, log: log.WithComponent("lease")}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release must run even after the tick ctx timed out
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		deleted, err := releaseScript.Run(rctx, l.rdb, []string{l.key}, token).Int64()
		switch {
		case err != nil:
			l.log.WithError(err).Warn("lease release failed", "key", l.key)
		case deleted == 0:
			l.log.Warn("lease expired before release", "key", l.key, "ttl", l.ttl.String())
		}
	}
	return release, true, nil
}
