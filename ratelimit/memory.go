package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type bucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	cfg     Config
	dead    bool
}

// MemoryLimiter keeps buckets in process memory. Callers of distinct keys
// never contend on a shared lock.
type MemoryLimiter struct {
	buckets sync.Map // scoped key -> *bucket
	now     func() time.Time
	logger  *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewMemoryLimiter returns a limiter on the wall clock. The default
// time.Now carries a monotonic reading, so wall clock steps do not move
// bucket math.
func NewMemoryLimiter(logger *zap.Logger) *MemoryLimiter {
	return NewMemoryLimiterWithClock(time.Now, logger)
}

// NewMemoryLimiterWithClock is NewMemoryLimiter with an injected clock.
func NewMemoryLimiterWithClock(now func() time.Time, logger *zap.Logger) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLimiter{now: now, logger: logger, stop: make(chan struct{})}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	for {
		b := l.bucketFor(cfg.bucketKey(key), cfg)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		// A named preset reconfigured since the bucket was created.
		if b.cfg != cfg {
			now := l.now()
			b.limiter.SetLimitAt(now, rate.Limit(cfg.RefillRate))
			b.limiter.SetBurstAt(now, cfg.Capacity)
			b.cfg = cfg
		}

		now := l.now()
		allowed := b.limiter.AllowN(now, 1)
		tokens := b.limiter.TokensAt(now)
		b.mu.Unlock()

		res := Result{
			Allowed:   allowed,
			Remaining: remaining(tokens),
			Limit:     cfg.Capacity,
		}
		if !allowed {
			res.Remaining = 0
			res.RetryAfter = retryAfter(tokens, cfg.RefillRate)
		}
		return res, nil
	}
}

func (l *MemoryLimiter) bucketFor(key string, cfg Config) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}
	fresh := &bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RefillRate), cfg.Capacity),
		cfg:     cfg,
	}
	v, _ := l.buckets.LoadOrStore(key, fresh)
	return v.(*bucket)
}

func (l *MemoryLimiter) Reset(_ context.Context, key string, cfg Config) error {
	if v, ok := l.buckets.LoadAndDelete(cfg.bucketKey(key)); ok {
		b := v.(*bucket)
		b.mu.Lock()
		b.dead = true
		b.mu.Unlock()
	}
	return nil
}

// Sweep drops buckets that have refilled completely; such a bucket is
// indistinguishable from one that was never created.
func (l *MemoryLimiter) Sweep() int {
	removed := 0
	l.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		if !b.dead && b.limiter.TokensAt(l.now()) >= float64(b.cfg.Capacity) {
			b.dead = true
			l.buckets.Delete(k)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of live buckets.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartJanitor runs Sweep every interval until Stop is called.
func (l *MemoryLimiter) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					l.logger.Debug("rate limit buckets swept",
						zap.Int("removed", removed),
						zap.Int("remaining", l.Len()))
				}
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop terminates the janitor, if running.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
}
