package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrBackend wraps storage failures.
var ErrBackend = errors.New("revocation backend unavailable")

// Store is implemented by every revocation backend.
type Store interface {
	// Revoke records jti until expiresAt. A non-positive remaining lifetime
	// is a no-op.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// RevokeOnce records jti only if it is not already revoked and reports
	// whether this call did so. Exactly one concurrent caller per jti wins.
	RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
