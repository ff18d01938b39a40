package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

var (
	// ErrBackend wraps storage failures.
	ErrBackend = errors.New("rate limit backend unavailable")
	// ErrInvalidConfig is returned for non-positive capacity or refill rate.
	ErrInvalidConfig = errors.New("invalid rate limit config")
)

// Config describes one bucket shape. RefillRate is in tokens per second.
//
// Name scopes the bucket: checks for the same key under differently named
// configs draw from separate buckets. An unnamed config is scoped by its
// capacity and refill rate.
type Config struct {
	Name       string
	Capacity   int
	RefillRate float64
}

var (
	// Strict protects credential-checking endpoints (about 10 per minute).
	Strict = Config{Name: "strict", Capacity: 10, RefillRate: 0.17}
	// Default is the general API budget.
	Default = Config{Name: "default", Capacity: 60, RefillRate: 1.0}
)

// Validate rejects unusable shapes.
func (c Config) Validate() error {
	if c.Capacity < 1 || c.RefillRate <= 0 || math.IsNaN(c.RefillRate) || math.IsInf(c.RefillRate, 0) {
		return ErrInvalidConfig
	}
	return nil
}

// Scope names the bucket family this config draws from.
func (c Config) Scope() string {
	if c.Name != "" {
		return c.Name
	}
	return strconv.Itoa(c.Capacity) + "/" + strconv.FormatFloat(c.RefillRate, 'f', -1, 64)
}

func (c Config) bucketKey(key string) string {
	return c.Scope() + ":" + key
}

// idleTTL is how long an untouched bucket must be kept before dropping it
// is indistinguishable from keeping it: long enough to refill completely,
// plus a minute of slack.
func (c Config) idleTTL() time.Duration {
	full := math.Ceil(float64(c.Capacity) / c.RefillRate)
	return time.Duration(full)*time.Second + time.Minute
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
}

// RetryAfterSeconds is the Retry-After header value: whole seconds,
// rounded so a client that waits that long will find a token.
func (r Result) RetryAfterSeconds() int {
	return int(r.RetryAfter.Seconds()) + 1
}

// Limiter is implemented by every backend.
type Limiter interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
	Reset(ctx context.Context, key string, cfg Config) error
}

// KeyFor prefers the authenticated identity over the network address.
func KeyFor(userID, ip string) string {
	if userID != "" {
		return "user:" + userID
	}
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func retryAfter(tokens, refillRate float64) time.Duration {
	if tokens >= 1 {
		return 0
	}
	secs := (1 - tokens) / refillRate
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}

func remaining(tokens float64) int {
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}
