package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ratelimit:"

// KEYS[1] bucket hash
// ARGV[1] capacity, ARGV[2] refill per second, ARGV[3] now in ms, ARGV[4] ttl seconds
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

local elapsed = (now - ts) / 1000
if elapsed < 0 then
	elapsed = 0
end
if now > ts then
	ts = now
end

tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("EXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), retry}
`)

// RedisLimiter shares buckets across instances through Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a limiter on rdb. An empty prefix defaults to
// "ratelimit:".
func NewRedisLimiter(rdb redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{redis: rdb, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source used for refill math.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *RedisLimiter) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	raw, err := tokenBucketScript.Run(ctx, l.redis,
		[]string{l.prefix + cfg.bucketKey(key)},
		cfg.Capacity,
		strconv.FormatFloat(cfg.RefillRate, 'f', -1, 64),
		l.now().UnixMilli(),
		int64(cfg.idleTTL()/time.Second),
	).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrBackend)
	}

	allowed, _ := raw[0].(int64)
	tokensStr, _ := raw[1].(string)
	retryMs, _ := raw[2].(int64)
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad token count %q", ErrBackend, tokensStr)
	}

	res := Result{
		Allowed:   allowed == 1,
		Remaining: remaining(tokens),
		Limit:     cfg.Capacity,
	}
	if !res.Allowed {
		res.Remaining = 0
		res.RetryAfter = time.Duration(retryMs) * time.Millisecond
	}
	return res, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string, cfg Config) error {
	if err := l.redis.Del(ctx, l.prefix+cfg.bucketKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
