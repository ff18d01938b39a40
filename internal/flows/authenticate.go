package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
)

// AuthenticateFailureKind classifies bearer validation failures.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureToken
	AuthenticateFailureRevoked
	AuthenticateFailureBackend
)

// AuthenticateResult carries verified access claims on success.
type AuthenticateResult struct {
	Failure    AuthenticateFailureKind
	Err        error
	Claims     *jwt.Claims
	FailedOpen bool
}

// AuthenticateDeps captures bearer validation dependencies.
type AuthenticateDeps struct {
	DecodeAccess func(string) (*jwt.Claims, error)
	Revocations  revocation.Store
	FailOpen     bool
}

// RunAuthenticate verifies an access token and checks its jti against the
// revocation store. Signature and claim checks come first so the store is
// never queried for forged tokens.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) AuthenticateResult {
	claims, err := deps.DecodeAccess(token)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureToken, Err: err}
	}

	revoked, err := deps.Revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		if !deps.FailOpen {
			return AuthenticateResult{Failure: AuthenticateFailureBackend, Err: err, Claims: claims}
		}
		return AuthenticateResult{Claims: claims, FailedOpen: true}
	}
	if revoked {
		return AuthenticateResult{Failure: AuthenticateFailureRevoked, Claims: claims}
	}
	return AuthenticateResult{Claims: claims}
}
