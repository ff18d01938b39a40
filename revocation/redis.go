package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "blacklist:jti:"

// RedisStore keeps one key per revoked jti with a matching TTL.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore builds a store on rdb. An empty prefix defaults to
// "blacklist:jti:".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) ttl(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(s.now()).Truncate(time.Millisecond)
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := s.ttl(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.prefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (s *RedisStore) RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := s.ttl(expiresAt)
	if jti == "" || ttl <= 0 {
		return false, nil
	}
	ok, err := s.redis.SetNX(ctx, s.prefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return ok, nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}
