// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ repository.JobLocker = (*RedisLocker)(nil)

// RedisLocker serializes work on a job across processes sharing one Redis.
// The TTL bounds how long a crashed holder can keep a job locked.
type RedisLocker struct {
	cli  *redis.Client
	ttl  time.Duration
	poll time.Duration
	log  *zerolog.Logger
}

func NewLocker(c *Client, ttl time.Duration, log *zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{cli: c.cli, ttl: ttl, poll: 100 * time.Millisecond, log: log}
}

func JobLockKey(jobID string) string { return "d2d:lock:job:" + jobID }

// TryLock makes a single SET NX attempt. ok is false when someone else holds the key.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.cli.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Lock polls until the key is acquired or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, jobID string) (func(), error) {
	key := JobLockKey(jobID)
	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("redis lock attempt failed")
		}
		if ok {
			return func() {
				// Background: the holder's ctx may already be gone.
				if err := l.Unlock(context.Background(), key, token); err != nil {
					l.log.Warn().Err(err).Str("key", key).Msg("redis unlock failed")
				}
			}, nil
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, domain.ErrLockTimeout
		case <-t.C:
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
