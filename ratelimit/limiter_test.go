package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type backend struct {
	name    string
	limiter Limiter
	clock   *fakeClock
}

func backends(t *testing.T) []backend {
	t.Helper()
	memClock := newFakeClock()
	redisClock := newFakeClock()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return []backend{
		{name: "memory", limiter: NewMemoryLimiterWithClock(memClock.Now, nil), clock: memClock},
		{name: "redis", limiter: NewRedisLimiter(rdb, "").WithClock(redisClock.Now), clock: redisClock},
	}
}

func TestBurstThenDeny(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 65; i++ {
				res, err := b.limiter.Check(ctx, "ip:1.2.3.4", Default)
				if err != nil {
					t.Fatalf("request %d: %v", i, err)
				}
				if res.Limit != 60 {
					t.Fatalf("request %d: limit = %d", i, res.Limit)
				}
				if i <= 60 {
					if !res.Allowed {
						t.Fatalf("request %d should be allowed", i)
					}
					if res.Remaining != 60-i {
						t.Fatalf("request %d: remaining = %d, want %d", i, res.Remaining, 60-i)
					}
					continue
				}
				if res.Allowed {
					t.Fatalf("request %d should be denied", i)
				}
				if res.Remaining != 0 {
					t.Fatalf("request %d: remaining = %d", i, res.Remaining)
				}
				if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
					t.Fatalf("request %d: retry after = %v", i, res.RetryAfter)
				}
				if res.RetryAfterSeconds() < 1 {
					t.Fatalf("request %d: header value %d", i, res.RetryAfterSeconds())
				}
			}

			other, err := b.limiter.Check(ctx, "ip:5.6.7.8", Default)
			if err != nil {
				t.Fatalf("second identity: %v", err)
			}
			if !other.Allowed || other.Remaining != 59 {
				t.Fatalf("second identity must be unaffected, got %+v", other)
			}
		})
	}
}

func TestRefillAfterWait(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < Strict.Capacity; i++ {
				if res, _ := b.limiter.Check(ctx, "user:1", Strict); !res.Allowed {
					t.Fatalf("request %d should be allowed", i+1)
				}
			}
			denied, _ := b.limiter.Check(ctx, "user:1", Strict)
			if denied.Allowed {
				t.Fatal("expected denial after strict burst")
			}
			wantRetry := time.Duration(float64(time.Second) / Strict.RefillRate)
			if diff := denied.RetryAfter - wantRetry; diff < -time.Millisecond || diff > time.Millisecond {
				t.Fatalf("retry after = %v, want about %v", denied.RetryAfter, wantRetry)
			}

			b.clock.Advance(denied.RetryAfter)
			if res, _ := b.limiter.Check(ctx, "user:1", Strict); !res.Allowed {
				t.Fatalf("expected a token after waiting retry-after, got %+v", res)
			}
		})
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := Config{Capacity: 5, RefillRate: 2}
			_, _ = b.limiter.Check(ctx, "k", cfg)
			b.clock.Advance(24 * time.Hour)
			res, err := b.limiter.Check(ctx, "k", cfg)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Remaining != cfg.Capacity-1 {
				t.Fatalf("remaining = %d, want %d", res.Remaining, cfg.Capacity-1)
			}
		})
	}
}

func TestConcurrentChecksGrantExactlyCapacity(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			const n = 100
			var allowed atomic.Int64
			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					res, err := b.limiter.Check(ctx, "hot", Default)
					if err != nil {
						t.Errorf("Check: %v", err)
						return
					}
					if res.Allowed {
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()
			if got := allowed.Load(); got != int64(Default.Capacity) {
				t.Fatalf("allowed %d, want %d", got, Default.Capacity)
			}
		})
	}
}

func TestResetRestoresBucket(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := Config{Capacity: 1, RefillRate: 0.01}
			_, _ = b.limiter.Check(ctx, "r", cfg)
			if res, _ := b.limiter.Check(ctx, "r", cfg); res.Allowed {
				t.Fatal("expected denial")
			}
			if err := b.limiter.Reset(ctx, "r", cfg); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if res, _ := b.limiter.Check(ctx, "r", cfg); !res.Allowed {
				t.Fatal("expected fresh bucket after reset")
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, b := range backends(t) {
		if _, err := b.limiter.Check(context.Background(), "k", Config{Capacity: 0, RefillRate: 1}); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", b.name, err)
		}
		if _, err := b.limiter.Check(context.Background(), "k", Config{Capacity: 1, RefillRate: 0}); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", b.name, err)
		}
	}
}

func TestRedisKeyTTLAndClockStep(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	clock := newFakeClock()
	l := NewRedisLimiter(rdb, "").WithClock(clock.Now)
	ctx := context.Background()

	if _, err := l.Check(ctx, "ip:9.9.9.9", Default); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if ttl := mr.TTL("ratelimit:default:ip:9.9.9.9"); ttl != 120*time.Second {
		t.Fatalf("ttl = %v, want 120s", ttl)
	}

	clock.Advance(-time.Hour)
	res, err := l.Check(ctx, "ip:9.9.9.9", Default)
	if err != nil {
		t.Fatalf("Check after clock step: %v", err)
	}
	if !res.Allowed || res.Remaining != 58 {
		t.Fatalf("backwards clock must not refill or drain, got %+v", res)
	}
}

func TestRedisBackendError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l := NewRedisLimiter(rdb, "")
	mr.Close()

	if _, err := l.Check(context.Background(), "k", Default); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestMemorySweepDropsOnlyFullBuckets(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiterWithClock(clock.Now, nil)
	ctx := context.Background()
	cfg := Config{Capacity: 2, RefillRate: 1}

	_, _ = l.Check(ctx, "a", cfg)
	clock.Advance(500 * time.Millisecond)
	_, _ = l.Check(ctx, "b", cfg)

	clock.Advance(600 * time.Millisecond)
	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected only the refilled bucket to be swept, removed %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected one live bucket, got %d", l.Len())
	}
}

func TestMemoryJanitorStops(t *testing.T) {
	l := NewMemoryLimiter(nil)
	l.StartJanitor(5 * time.Millisecond)
	_, _ = l.Check(context.Background(), "x", Config{Capacity: 1, RefillRate: 1000})
	time.Sleep(30 * time.Millisecond)
	l.Stop()
	l.Stop()
	if l.Len() != 0 {
		t.Fatalf("janitor should have swept refilled bucket, len=%d", l.Len())
	}
}

func TestKeyFor(t *testing.T) {
	if got := KeyFor("42", "1.2.3.4"); got != "user:42" {
		t.Fatalf("KeyFor = %q", got)
	}
	if got := KeyFor("", "1.2.3.4"); got != "ip:1.2.3.4" {
		t.Fatalf("KeyFor = %q", got)
	}
	if got := KeyFor("", ""); got != "ip:unknown" {
		t.Fatalf("KeyFor = %q", got)
	}
}

func TestPresetsDoNotShareBuckets(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			strictOnly, interleaved := 0, 0
			for i := 0; i < 600; i++ {
				if res, err := b.limiter.Check(ctx, "ip:203.0.113.1", Strict); err != nil {
					t.Fatalf("Check: %v", err)
				} else if res.Allowed {
					strictOnly++
				}

				if res, err := b.limiter.Check(ctx, "ip:203.0.113.9", Strict); err != nil {
					t.Fatalf("Check: %v", err)
				} else if res.Allowed {
					interleaved++
				}
				if _, err := b.limiter.Check(ctx, "ip:203.0.113.9", Default); err != nil {
					t.Fatalf("Check: %v", err)
				}
				b.clock.Advance(time.Second)
			}

			if interleaved != strictOnly {
				t.Fatalf("default checks changed the strict budget: %d allowed, want %d", interleaved, strictOnly)
			}
			if ceiling := Strict.Capacity + int(Strict.RefillRate*600) + 1; strictOnly > ceiling {
				t.Fatalf("strict allowed %d in 600s, want at most %d", strictOnly, ceiling)
			}
		})
	}
}

func TestResetIsScopedToPreset(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < Strict.Capacity; i++ {
				_, _ = b.limiter.Check(ctx, "user:7", Strict)
			}
			if err := b.limiter.Reset(ctx, "user:7", Default); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if res, _ := b.limiter.Check(ctx, "user:7", Strict); res.Allowed {
				t.Fatal("resetting the default bucket must not refill the strict one")
			}
		})
	}
}
