package codes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "ac"
	// Records outlive their expiry briefly so a late redemption reports
	// "expired" rather than "not found"; both map to the same client error.
	redisRetentionGrace = time.Minute
)

// KEYS[1] record hash
// ARGV[1] expire-at unix seconds, ARGV[2..] field/value pairs
var saveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("EXPIREAT", KEYS[1], ARGV[1])
return 1
`)

var markUsedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local used = redis.call("HGET", KEYS[1], "used_at")
if used and used ~= "0" then
	return 0
end
redis.call("HSET", KEYS[1], "used_at", ARGV[1])
return 1
`)

// RedisStore keeps codes in Redis hashes under "<prefix>:<codeHash>".
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore builds a store on rdb. An empty prefix defaults to "ac".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: rdb, prefix: prefix}
}

func (s *RedisStore) key(codeHash string) string {
	return s.prefix + ":" + codeHash
}

func (s *RedisStore) Save(ctx context.Context, code *AuthorizationCode) error {
	if code == nil || code.CodeHash == "" {
		return ErrNotFound
	}
	key := s.key(code.CodeHash)
	expireAt := time.Unix(code.ExpiresAt, 0).Add(redisRetentionGrace)

	created, err := saveScript.Run(ctx, s.redis, []string{key},
		expireAt.Unix(),
		"id", code.ID,
		"client_id", code.ClientID,
		"redirect_uri", code.RedirectURI,
		"scope", code.Scope,
		"code_challenge", code.CodeChallenge,
		"code_challenge_method", code.CodeChallengeMethod,
		"user_id", code.UserID,
		"expires_at", code.ExpiresAt,
		"used_at", code.UsedAt,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if created == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, codeHash string) (*AuthorizationCode, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(codeHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at", ErrBackend)
	}
	usedAt, err := strconv.ParseInt(fields["used_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt used_at", ErrBackend)
	}

	return &AuthorizationCode{
		ID:                  fields["id"],
		CodeHash:            codeHash,
		ClientID:            fields["client_id"],
		RedirectURI:         fields["redirect_uri"],
		Scope:               fields["scope"],
		CodeChallenge:       fields["code_challenge"],
		CodeChallengeMethod: fields["code_challenge_method"],
		UserID:              fields["user_id"],
		ExpiresAt:           expiresAt,
		UsedAt:              usedAt,
	}, nil
}

func (s *RedisStore) MarkUsed(ctx context.Context, codeHash string, usedAt time.Time) error {
	ts := usedAt.Unix()
	if ts <= 0 {
		ts = 1
	}
	res, err := markUsedScript.Run(ctx, s.redis, []string{s.key(codeHash)}, ts).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrAlreadyUsed
	default:
		return ErrNotFound
	}
}
