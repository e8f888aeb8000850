//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRedis struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeRedis) Expire(ctx context.Context, key string, d time.Duration) error {
	f.expires[key] = d
	return nil
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.counts, k)
	}
	return nil
}
func (f *fakeRedis) Close() error { return nil }

func TestRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	rl := NewRateLimiter(f)
	key := ClientCommandKey("10.0.0.1", "generate")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d should pass: ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil || ok {
		t.Fatalf("4th hit should be limited: ok=%v err=%v", ok, err)
	}
	if f.expires[key] != time.Minute {
		t.Fatalf("window not set on first hit: %v", f.expires[key])
	}
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	f := newFakeRedis()
	f.incrErr = errors.New("down")
	if _, err := NewRateLimiter(f).Allow(context.Background(), "k", 1, time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobLockKey(t *testing.T) {
	if got := JobLockKey("abc"); got != "d2d:lock:job:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}
