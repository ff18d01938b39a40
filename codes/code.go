package codes

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a code hash.
	ErrNotFound = errors.New("authorization code not found")
	// ErrAlreadyUsed is returned by MarkUsed when another caller won the race
	// or the code was consumed earlier.
	ErrAlreadyUsed = errors.New("authorization code already used")
	// ErrDuplicate is returned by Save when a record already exists for the
	// code hash. The existing record is left untouched.
	ErrDuplicate = errors.New("authorization code already stored")
	// ErrBackend wraps transport or storage failures.
	ErrBackend = errors.New("authorization code backend unavailable")
)

// AuthorizationCode is a one-time grant bound to a client, redirect URI,
// user and PKCE challenge. Timestamps are unix seconds; UsedAt of zero
// means the code has not been redeemed.
type AuthorizationCode struct {
	ID                  string `gorm:"primaryKey;size:36"`
	CodeHash            string `gorm:"uniqueIndex;size:64;not null"`
	ClientID            string `gorm:"index;size:128;not null"`
	RedirectURI         string `gorm:"size:2048;not null"`
	Scope               string `gorm:"size:512"`
	CodeChallenge       string `gorm:"size:128;not null"`
	CodeChallengeMethod string `gorm:"size:8;not null"`
	UserID              string `gorm:"index;size:128;not null"`
	ExpiresAt           int64  `gorm:"index;not null"`
	UsedAt              int64  `gorm:"not null;default:0"`
}

// TableName pins the SQL table name.
func (AuthorizationCode) TableName() string { return "authorization_codes" }

// Expired reports whether now is strictly past ExpiresAt.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}

// Used reports whether the code has been redeemed.
func (c *AuthorizationCode) Used() bool { return c.UsedAt != 0 }

// Store is implemented by every authorization code backend.
type Store interface {
	Save(ctx context.Context, code *AuthorizationCode) error
	Get(ctx context.Context, codeHash string) (*AuthorizationCode, error)
	// MarkUsed sets UsedAt iff it is still zero. Exactly one concurrent
	// caller per code observes a nil error.
	MarkUsed(ctx context.Context, codeHash string, usedAt time.Time) error
}
