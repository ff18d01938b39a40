package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"go.uber.org/zap"
)

// Authorize validates an authorization request and, when sessionToken
// identifies a logged-in user, issues a single-use code. Parameter errors
// are reported before the session is looked at, so a bad client never
// triggers a login redirect.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest, sessionToken string) (*AuthorizeResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunAuthorize(ctx, flows.AuthorizeInput{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		ResponseType:        req.ResponseType,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scope:               req.Scope,
		State:               req.State,
		SessionToken:        sessionToken,
	}, e.flows.Authorize)

	f := auditFields{userID: res.UserID, clientID: req.ClientID}

	switch res.Failure {
	case flows.AuthorizeFailureNone:
		e.metricInc(MetricAuthorizeSuccess)
		e.logger.Debug("authorization code issued",
			zap.String("client_id", req.ClientID),
			zap.String("user_id", res.UserID),
			zap.String("code_hash", internal.ShortHash(res.CodeHash)))
		e.emitAudit(ctx, auditEventAuthorizeSuccess, true, f, nil, func() map[string]string {
			return map[string]string{"scope": res.Scope}
		})
		return &AuthorizeResult{RedirectURL: res.RedirectURL, Code: res.Code}, nil

	case flows.AuthorizeFailureLoginRequired:
		e.metricInc(MetricAuthorizeLoginRequired)
		return nil, ErrLoginRequired

	case flows.AuthorizeFailureClientBackend, flows.AuthorizeFailureStore:
		e.metricInc(MetricBackendError)
		e.logger.Error("authorize store failure",
			zap.String("client_id", req.ClientID),
			zap.String("reason", authorizeReason(res.Failure)),
			zap.Error(res.Err))
		e.emitAudit(ctx, auditEventAuthorizeInvalid, false, f, ErrBackendUnavailable, nil)
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, authorizeReason(res.Failure))

	case flows.AuthorizeFailureIssue:
		e.logger.Error("authorization code generation failed", zap.Error(res.Err))
		return nil, fmt.Errorf("issue authorization code: %w", res.Err)

	default:
		reason := authorizeReason(res.Failure)
		e.metricInc(MetricAuthorizeInvalid)
		e.logger.Info("authorize request rejected",
			zap.String("client_id", req.ClientID),
			zap.String("reason", reason))
		e.emitAudit(ctx, auditEventAuthorizeInvalid, false, f, ErrInvalidRequest, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
	}
}

// ExchangeCode redeems an authorization code for tokens. Every failure past
// the grant type check is ErrInvalidGrant or ErrInvalidRequest to the
// caller; the specific reason is only logged.
func (e *Engine) ExchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.metricObserve(MetricTokenExchangeLatency, start)

	res := flows.RunExchangeCode(ctx, flows.TokenInput{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		CodeVerifier: req.CodeVerifier,
	}, e.flows.Token)

	f := auditFields{userID: res.UserID, clientID: req.ClientID}
	fields := []zap.Field{
		zap.String("client_id", req.ClientID),
		zap.String("code_hash", internal.ShortHash(res.CodeHash)),
	}

	switch res.Failure {
	case flows.TokenFailureNone:
		e.metricInc(MetricTokenExchangeSuccess)
		e.logger.Debug("authorization code redeemed", append(fields, zap.String("user_id", res.UserID))...)
		e.emitAudit(ctx, auditEventTokenExchange, true, f, nil, func() map[string]string {
			return map[string]string{
				"scope":   res.Scope,
				"refresh": fmt.Sprint(res.RefreshToken != ""),
			}
		})
		return &TokenResponse{
			AccessToken:  res.AccessToken,
			TokenType:    "bearer",
			ExpiresIn:    int64(res.ExpiresIn / time.Second),
			RefreshToken: res.RefreshToken,
			Scope:        res.Scope,
		}, nil

	case flows.TokenFailureGrantType:
		e.metricInc(MetricTokenExchangeFailure)
		return nil, ErrUnsupportedGrantType

	case flows.TokenFailureMissingParam:
		e.metricInc(MetricTokenExchangeFailure)
		e.emitAudit(ctx, auditEventTokenInvalid, false, f, ErrInvalidRequest, func() map[string]string {
			return map[string]string{"reason": "missing_parameter"}
		})
		return nil, fmt.Errorf("%w: missing parameter", ErrInvalidRequest)

	case flows.TokenFailureReplay:
		e.metricInc(MetricTokenExchangeFailure)
		e.metricInc(MetricCodeReplay)
		e.logger.Warn("authorization code replay", append(fields, zap.String("user_id", res.UserID))...)
		e.emitAudit(ctx, auditEventCodeReplay, false, f, ErrInvalidGrant, nil)
		return nil, fmt.Errorf("%w: code already used", ErrInvalidGrant)

	case flows.TokenFailureBackend:
		e.metricInc(MetricTokenExchangeFailure)
		e.metricInc(MetricBackendError)
		e.logger.Error("token exchange store failure", append(fields, zap.Error(res.Err))...)
		e.emitAudit(ctx, auditEventTokenInvalid, false, f, ErrBackendUnavailable, nil)
		return nil, fmt.Errorf("%w: code store", ErrBackendUnavailable)

	case flows.TokenFailureIssue:
		e.metricInc(MetricTokenExchangeFailure)
		e.logger.Error("token issuance failed", append(fields, zap.Error(res.Err))...)
		return nil, fmt.Errorf("issue tokens: %w", res.Err)

	default:
		reason := tokenReason(res.Failure)
		e.metricInc(MetricTokenExchangeFailure)
		if res.Failure == flows.TokenFailurePKCE {
			e.metricInc(MetricPKCEMismatch)
		}
		e.logger.Info("token exchange rejected", append(fields, zap.String("reason", reason))...)
		e.emitAudit(ctx, auditEventTokenInvalid, false, f, ErrInvalidGrant, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, reason)
	}
}

func authorizeReason(kind flows.AuthorizeFailureKind) string {
	switch kind {
	case flows.AuthorizeFailureResponseType:
		return "unsupported response_type"
	case flows.AuthorizeFailureUnknownClient:
		return "unknown client"
	case flows.AuthorizeFailureClientBackend:
		return "client registry"
	case flows.AuthorizeFailureRedirectURI:
		return "redirect_uri mismatch"
	case flows.AuthorizeFailureMethod:
		return "unsupported code_challenge_method"
	case flows.AuthorizeFailureChallenge:
		return "code_challenge too short"
	case flows.AuthorizeFailureScope:
		return "scope not allowed"
	case flows.AuthorizeFailureStore:
		return "code store"
	default:
		return "invalid request"
	}
}

func tokenReason(kind flows.TokenFailureKind) string {
	switch kind {
	case flows.TokenFailureNotFound:
		return "unknown code"
	case flows.TokenFailureExpired:
		return "code expired"
	case flows.TokenFailureClientMismatch:
		return "client_id mismatch"
	case flows.TokenFailureRedirectMismatch:
		return "redirect_uri mismatch"
	case flows.TokenFailurePKCE:
		return "pkce verification failed"
	case flows.TokenFailureUser:
		return "user missing or inactive"
	default:
		return "invalid grant"
	}
}
