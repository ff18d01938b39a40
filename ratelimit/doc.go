// Package ratelimit implements token-bucket rate limiting keyed by caller
// identity.
//
// A bucket starts full at Capacity tokens and refills continuously at
// RefillRate tokens per second, never exceeding Capacity. Each check
// refills, then consumes one token if at least one is available. Refill and
// consume happen as one atomic step per key: the in-memory limiter holds a
// per-key lock around a golang.org/x/time/rate limiter, and the Redis
// limiter runs a single Lua script.
//
// Buckets are scoped by Config: the same caller key under Strict and
// Default draws from two independent buckets, so cheap requests never
// refill the budget of credential checks.
//
// Redis keys:
//   - ratelimit:<scope>:user:<id> for authenticated callers
//   - ratelimit:<scope>:ip:<addr> otherwise
package ratelimit
