//go:build integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"dream2design/internal/config"
	"dream2design/internal/domain"
	"dream2design/internal/infra/logging"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: url})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLocker_Exclusive(t *testing.T) {
	c := newTestClient(t)
	l := NewLocker(c, 5*time.Second, logging.Nop())
	job := "it-" + time.Now().Format("150405.000000000")

	unlock, err := l.Lock(context.Background(), job)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, job); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("want ErrLockTimeout, got %v", err)
	}

	unlock()
	unlock2, err := l.Lock(context.Background(), job)
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	unlock2()
}

func TestRedisLocker_UnlockIgnoresForeignToken(t *testing.T) {
	c := newTestClient(t)
	l := NewLocker(c, 5*time.Second, logging.Nop())
	key := JobLockKey("it-foreign-" + time.Now().Format("150405.000000000"))

	token, ok, err := l.TryLock(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("trylock: ok=%v err=%v", ok, err)
	}
	defer l.Unlock(context.Background(), key, token)

	if err := l.Unlock(context.Background(), key, "not-mine"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.TryLock(context.Background(), key); ok {
		t.Fatal("foreign token must not release the lock")
	}
}
