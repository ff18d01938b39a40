package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"go.uber.org/zap"
)

// Refresh rotates a refresh token: the presented token is revoked and a
// new access/refresh pair is minted. A token that was already rotated
// yields ErrRefreshReuse, as does every loser of a concurrent race on the
// same token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	f := auditFields{userID: res.UserID, tokenID: res.TokenID}

	if res.FailedOpen {
		e.noteFailOpen(ctx, "refresh", f)
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, f, nil, nil)
		return &RefreshResult{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			User:         userInfo(res.User),
		}, nil

	case flows.RefreshFailureDecode:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, f, ErrUnauthenticated, func() map[string]string {
			return map[string]string{"reason": tokenErrorReason(res.Err)}
		})
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthenticated)

	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn("refresh token reuse detected",
			zap.String("user_id", res.UserID),
			zap.String("jti", res.TokenID))
		e.emitAudit(ctx, auditEventRefreshReuse, false, f, ErrRefreshReuse, nil)
		return nil, ErrRefreshReuse

	case flows.RefreshFailureUser:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, f, ErrUnauthenticated, func() map[string]string {
			return map[string]string{"reason": "user_unavailable"}
		})
		return nil, fmt.Errorf("%w: user missing or inactive", ErrUnauthenticated)

	case flows.RefreshFailureRevocationBackend:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricBackendError)
		e.logger.Error("revocation check failed", zap.String("jti", res.TokenID), zap.Error(res.Err))
		e.emitAudit(ctx, auditEventRefreshInvalid, false, f, ErrUnauthenticated, func() map[string]string {
			return map[string]string{"reason": "revocation_backend"}
		})
		return nil, fmt.Errorf("%w: revocation store unavailable", ErrUnauthenticated)

	case flows.RefreshFailureUserBackend, flows.RefreshFailureRotate:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricBackendError)
		e.logger.Error("refresh store failure", zap.String("jti", res.TokenID), zap.Error(res.Err))
		e.emitAudit(ctx, auditEventRefreshInvalid, false, f, ErrBackendUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, res.Err)

	default:
		e.metricInc(MetricRefreshFailure)
		e.logger.Error("refresh issuance failed", zap.Error(res.Err))
		return nil, fmt.Errorf("issue tokens: %w", res.Err)
	}
}

// Logout revokes the access token and, when supplied, the refresh token.
// It never fails; store errors are logged.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	if e == nil || e.tokens == nil {
		return
	}

	res := flows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	for _, err := range res.Errs {
		e.metricInc(MetricBackendError)
		e.logger.Warn("logout revocation failed", zap.String("user_id", res.UserID), zap.Error(err))
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, len(res.Errs) == 0, auditFields{userID: res.UserID}, nil, func() map[string]string {
		return map[string]string{
			"access_revoked":  fmt.Sprint(res.AccessRevoked),
			"refresh_revoked": fmt.Sprint(res.RefreshRevoked),
		}
	})
}

// Login checks an email and password. Unknown emails and wrong passwords
// cost the same and return the same error.
func (e *Engine) Login(ctx context.Context, email, password string) (*UserInfo, error) {
	if e == nil || e.passwords == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, email, password, e.flows.Login)

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, auditFields{userID: res.User.ID}, nil, nil)
		info := userInfo(res.User)
		return &info, nil

	case flows.LoginFailureBackend:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricBackendError)
		e.logger.Error("user lookup failed", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventLoginFailure, false, auditFields{}, ErrBackendUnavailable, nil)
		return nil, fmt.Errorf("%w: user store", ErrBackendUnavailable)

	default:
		var userID string
		if res.User != nil {
			userID = res.User.ID
		}
		reason := "invalid_credentials"
		if res.Failure == flows.LoginFailureInactive {
			reason = "inactive"
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, auditFields{userID: userID}, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, ErrInvalidCredentials
	}
}

// NewSession mints the token carried by the login cookie.
func (e *Engine) NewSession(userID string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	return e.tokens.CreateSessionToken(userID)
}

// IssueTokenPair mints an access and refresh token for an already
// authenticated user.
func (e *Engine) IssueTokenPair(user *UserInfo) (*RefreshResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	access, err := e.tokens.CreateAccessToken(user.ID, e.config.OAuth.DefaultScope, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := e.tokens.CreateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &RefreshResult{AccessToken: access, RefreshToken: refresh, User: *user}, nil
}

func (e *Engine) noteFailOpen(ctx context.Context, op string, f auditFields) {
	e.metricInc(MetricFailOpen)
	e.logger.Warn("revocation store unavailable, failing open",
		zap.String("op", op),
		zap.String("jti", f.tokenID))
	e.emitAudit(ctx, auditEventFailOpen, true, f, nil, func() map[string]string {
		return map[string]string{"op": op}
	})
}

func tokenErrorReason(err error) string {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
