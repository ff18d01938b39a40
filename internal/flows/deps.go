package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Authorize    AuthorizeDeps
	Token        TokenDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Login        LoginDeps
	Authenticate AuthenticateDeps
}

// StoreContext detaches a mutating store call from the caller's
// cancellation and bounds it with its own timeout.
type StoreContext func(context.Context) (context.Context, context.CancelFunc)

// DetachedContext returns a StoreContext with the given timeout. A zero
// timeout keeps the caller's deadline.
func DetachedContext(timeout time.Duration) StoreContext {
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		if timeout <= 0 {
			return ctx, func() {}
		}
		return context.WithTimeout(context.WithoutCancel(ctx), timeout)
	}
}

func storeContext(ctx context.Context, sc StoreContext) (context.Context, context.CancelFunc) {
	if sc == nil {
		return ctx, func() {}
	}
	return sc(ctx)
}
