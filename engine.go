package authcore

import (
	"sync"
	"time"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/ratelimit"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine runs the authorization server flows. It is built once by Builder
// and is safe for concurrent use.
type Engine struct {
	config      Config
	logger      *zap.Logger
	tokens      *jwt.Manager
	passwords   *password.Argon2
	codes       codes.Store
	clients     clients.Registry
	revocations revocation.Store
	limiter     ratelimit.Limiter
	users       users.Lookup
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	now         func() time.Time
	flows       flows.Deps

	closers   []func()
	closeOnce sync.Once
}

func (e *Engine) initFlows() {
	storeCtx := flows.DetachedContext(e.config.StoreTimeout)
	decodeSession := func(token string) (string, error) {
		claims, err := e.tokens.DecodeSessionToken(token)
		if err != nil {
			return "", err
		}
		return claims.Subject(), nil
	}

	e.flows = flows.Deps{
		Authorize: flows.AuthorizeDeps{
			Clients:       e.clients,
			Codes:         e.codes,
			DecodeSession: decodeSession,
			NewCode:       internal.NewAuthorizationCode,
			HashCode:      internal.HashCode,
			NewID:         uuid.NewString,
			Now:           e.now,
			CodeTTL:       e.config.OAuth.CodeTTL,
			DefaultScope:  e.config.OAuth.DefaultScope,
			StoreContext:  storeCtx,
		},
		Token: flows.TokenDeps{
			Codes:             e.codes,
			Users:             e.users,
			HashCode:          internal.HashCode,
			ValidCodeFormat:   internal.ValidCodeFormat,
			Now:               e.now,
			IssueAccess:       e.tokens.CreateAccessToken,
			IssueRefresh:      e.tokens.CreateRefreshToken,
			AccessTTL:         e.tokens.TTL(jwt.KindAccess),
			IssueRefreshToken: e.config.OAuth.IssueRefreshToken,
			StoreContext:      storeCtx,
		},
		Refresh: flows.RefreshDeps{
			DecodeRefresh:      e.tokens.DecodeRefreshToken,
			Revocations:        e.revocations,
			Users:              e.users,
			IssueAccess:        e.tokens.CreateAccessToken,
			IssueRefresh:       e.tokens.CreateRefreshToken,
			DefaultScope:       e.config.OAuth.DefaultScope,
			RevocationFailOpen: e.config.Revocation.FailOpen,
			StoreContext:       storeCtx,
		},
		Logout: flows.LogoutDeps{
			DecodeAccess:  e.tokens.DecodeAccessToken,
			DecodeRefresh: e.tokens.DecodeRefreshToken,
			Revocations:   e.revocations,
			StoreContext:  storeCtx,
		},
		Login: flows.LoginDeps{
			Users:          e.users,
			VerifyPassword: e.passwords.Verify,
			VerifyDummy:    e.passwords.VerifyDummy,
		},
		Authenticate: flows.AuthenticateDeps{
			DecodeAccess: e.tokens.DecodeAccessToken,
			Revocations:  e.revocations,
			FailOpen:     e.config.Revocation.FailOpen,
		},
	}
}

// startSweeper prunes expired entries from in-process stores.
func (e *Engine) startSweeper(interval time.Duration, sweep []func()) {
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, fn := range sweep {
					fn()
				}
			case <-stop:
				return
			}
		}
	}()
	e.closers = append(e.closers, func() {
		close(stop)
		wg.Wait()
	})
}

// Close stops background goroutines and drains the audit buffer. It is
// safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		for _, fn := range e.closers {
			fn()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Config returns a copy of the engine configuration without key material.
func (e *Engine) Config() Config {
	cfg := cloneConfig(e.config)
	cfg.JWT.PrivateKey = nil
	cfg.JWT.PublicKey = nil
	return cfg
}

func (e *Engine) Logger() *zap.Logger { return e.logger }

// SessionTTL is the lifetime of the login cookie.
func (e *Engine) SessionTTL() time.Duration { return e.tokens.TTL(jwt.KindSession) }

func (e *Engine) SecureCookies() bool { return e.config.Security.SecureCookies }

// RateLimits returns the strict and default bucket shapes.
func (e *Engine) RateLimits() (strict, def ratelimit.Config) {
	return e.config.RateLimit.Strict, e.config.RateLimit.Default
}
