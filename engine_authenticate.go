package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/ratelimit"
	"go.uber.org/zap"
)

// Authenticate verifies a bearer access token and checks it has not been
// revoked. Revocation store errors reject the token unless
// Revocation.FailOpen is set.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.metricObserve(MetricAuthenticateLatency, start)

	res := flows.RunAuthenticate(ctx, token, e.flows.Authenticate)

	if res.FailedOpen {
		e.noteFailOpen(ctx, "authenticate", auditFields{
			userID:  res.Claims.Subject(),
			tokenID: res.Claims.TokenID(),
		})
	}

	switch res.Failure {
	case flows.AuthenticateFailureNone:
		e.metricInc(MetricAuthenticateSuccess)
		c := res.Claims
		return &Principal{
			UserID:    c.Subject(),
			Roles:     append([]string(nil), c.Roles...),
			Scope:     c.Scope,
			TokenID:   c.TokenID(),
			ExpiresAt: c.Expiry(),
		}, nil

	case flows.AuthenticateFailureRevoked:
		e.metricInc(MetricAuthenticateFailure)
		e.metricInc(MetricRevokedTokenRejected)
		e.emitAudit(ctx, auditEventRevokedTokenUsed, false, auditFields{
			userID:  res.Claims.Subject(),
			tokenID: res.Claims.TokenID(),
		}, ErrUnauthenticated, nil)
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)

	case flows.AuthenticateFailureBackend:
		e.metricInc(MetricAuthenticateFailure)
		e.metricInc(MetricBackendError)
		e.logger.Error("revocation check failed", zap.String("jti", res.Claims.TokenID()), zap.Error(res.Err))
		return nil, fmt.Errorf("%w: revocation store unavailable", ErrUnauthenticated)

	default:
		e.metricInc(MetricAuthenticateFailure)
		return nil, fmt.Errorf("%w: %s access token", ErrUnauthenticated, tokenErrorReason(res.Err))
	}
}

// RateLimitSubject returns the subject of a bearer access token whose
// signature and claims verify, or "" otherwise. Revocation is not checked;
// the result only selects a rate limit bucket.
func (e *Engine) RateLimitSubject(token string) string {
	if e == nil || e.tokens == nil || token == "" {
		return ""
	}
	claims, err := e.tokens.DecodeAccessToken(token)
	if err != nil {
		return ""
	}
	return claims.Subject()
}

// CheckRateLimit consumes one token from the bucket at key. A denied
// request returns the result together with ErrRateLimited so callers can
// still emit limit headers.
func (e *Engine) CheckRateLimit(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	if e == nil || e.limiter == nil {
		return ratelimit.Result{}, ErrEngineNotReady
	}
	if !e.config.RateLimit.Enabled {
		return ratelimit.Result{Allowed: true, Limit: cfg.Capacity, Remaining: cfg.Capacity}, nil
	}

	res, err := e.limiter.Check(ctx, key, cfg)
	if err != nil {
		e.metricInc(MetricBackendError)
		if e.config.RateLimit.FailOpen {
			e.metricInc(MetricFailOpen)
			e.logger.Warn("rate limiter unavailable, failing open", zap.String("key", key), zap.Error(err))
			e.emitAudit(ctx, auditEventFailOpen, true, auditFields{}, nil, func() map[string]string {
				return map[string]string{"op": "rate_limit"}
			})
			return ratelimit.Result{Allowed: true, Limit: cfg.Capacity, Remaining: cfg.Capacity}, nil
		}
		e.logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return ratelimit.Result{Limit: cfg.Capacity}, fmt.Errorf("%w: rate limiter", ErrBackendUnavailable)
	}
	if !res.Allowed {
		e.emitRateLimit(ctx, key, res.RetryAfter)
		return res, ErrRateLimited
	}
	return res, nil
}
