package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	redisKeyPrefix   = "tradeway:lock:"
	minRetryInterval = 5 * time.Millisecond
	maxRetryInterval = 100 * time.Millisecond
)

// RedisLocker holds keys with SET NX and a random token; only the token
// holder can delete the key.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, log *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		log:    log.Named("lock.redis"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	redisKey := redisKeyPrefix + key
	token := uuid.NewString()
	wait := minRetryInterval
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrNotAcquired
		case <-timer.C:
		}
		wait = min(wait*2, maxRetryInterval)
	}
}

func (l *RedisLocker) releaser(key, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
			}
		})
	}
}
