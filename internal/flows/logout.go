package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DecodeAccess  func(string) (*jwt.Claims, error)
	DecodeRefresh func(string) (*jwt.Claims, error)
	Revocations   revocation.Store
	StoreContext  StoreContext
}

// LogoutResult reports what was revoked. Errors are informational only;
// logout always succeeds from the caller's point of view.
type LogoutResult struct {
	UserID         string
	AccessRevoked  bool
	RefreshRevoked bool
	Errs           []error
}

// RunLogout revokes whichever of the presented tokens still verify. A token
// that no longer verifies is already unusable and is skipped.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	sctx, cancel := storeContext(ctx, deps.StoreContext)
	defer cancel()

	if accessToken != "" {
		if claims, err := deps.DecodeAccess(accessToken); err == nil {
			res.UserID = claims.Subject()
			if err := deps.Revocations.Revoke(sctx, claims.TokenID(), claims.Expiry()); err != nil {
				res.Errs = append(res.Errs, err)
			} else {
				res.AccessRevoked = true
			}
		}
	}

	if refreshToken != "" && deps.DecodeRefresh != nil {
		if claims, err := deps.DecodeRefresh(refreshToken); err == nil {
			if res.UserID == "" {
				res.UserID = claims.Subject()
			}
			if err := deps.Revocations.Revoke(sctx, claims.TokenID(), claims.Expiry()); err != nil {
				res.Errs = append(res.Errs, err)
			} else {
				res.RefreshRevoked = true
			}
		}
	}

	return res
}
