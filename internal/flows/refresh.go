package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/users"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRevocationBackend
	RefreshFailureReuse
	RefreshFailureUser
	RefreshFailureUserBackend
	RefreshFailureRotate
	RefreshFailureIssue
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	TokenID      string
	User         *users.User
	AccessToken  string
	RefreshToken string
	// FailedOpen is set when the revocation check errored and the
	// configured policy let the request through.
	FailedOpen bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefresh      func(string) (*jwt.Claims, error)
	Revocations        revocation.Store
	Users              users.Lookup
	IssueAccess        func(sub, scope string, roles []string) (string, error)
	IssueRefresh       func(sub string) (string, error)
	DefaultScope       string
	RevocationFailOpen bool
	StoreContext       StoreContext
}

// RunRefresh rotates a refresh token. The old jti is claimed with
// RevokeOnce, so of several concurrent presentations of the same token
// exactly one receives a new pair.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	res := RefreshResult{UserID: claims.Subject(), TokenID: claims.TokenID()}

	revoked, err := deps.Revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		if !deps.RevocationFailOpen {
			res.Failure, res.Err = RefreshFailureRevocationBackend, err
			return res
		}
		res.FailedOpen = true
	}
	if revoked {
		res.Failure = RefreshFailureReuse
		return res
	}

	user, err := deps.Users.GetByID(ctx, claims.Subject())
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			res.Failure, res.Err = RefreshFailureUser, err
		} else {
			res.Failure, res.Err = RefreshFailureUserBackend, err
		}
		return res
	}
	if !user.Active {
		res.Failure = RefreshFailureUser
		return res
	}
	res.User = user

	sctx, cancel := storeContext(ctx, deps.StoreContext)
	defer cancel()

	won, err := deps.Revocations.RevokeOnce(sctx, claims.TokenID(), claims.Expiry())
	if err != nil {
		res.Failure, res.Err = RefreshFailureRotate, err
		return res
	}
	if !won {
		res.Failure = RefreshFailureReuse
		return res
	}

	access, err := deps.IssueAccess(user.ID, deps.DefaultScope, user.Roles)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}
	refresh, err := deps.IssueRefresh(user.ID)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}

	res.AccessToken = access
	res.RefreshToken = refresh
	return res
}
