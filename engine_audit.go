package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventAuthorizeSuccess   = "authorize_success"
	auditEventAuthorizeInvalid   = "authorize_invalid"
	auditEventTokenExchange      = "token_exchange"
	auditEventTokenInvalid       = "token_exchange_invalid"
	auditEventCodeReplay         = "code_replay"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshReuse       = "refresh_reuse_detected"
	auditEventLogout             = "logout"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventRevokedTokenUsed   = "revoked_token_used"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventFailOpen           = "backend_fail_open"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidRequest AuditErrorCode = "invalid_request"
	auditErrInvalidGrant   AuditErrorCode = "invalid_grant"
	auditErrRefreshReuse   AuditErrorCode = "refresh_reuse"
	auditErrCredentials    AuditErrorCode = "invalid_credentials"
	auditErrUnauthorized   AuditErrorCode = "unauthenticated"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
)

type auditFields struct {
	userID   string
	clientID string
	tokenID  string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	f auditFields,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    f.userID,
		ClientID:  f.clientID,
		TokenID:   f.tokenID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, key string, retryAfter time.Duration) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, auditFields{}, ErrRateLimited, func() map[string]string {
		return map[string]string{
			"key":         key,
			"retry_after": retryAfter.String(),
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrCredentials
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrInvalidGrant):
		return auditErrInvalidGrant
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrLoginRequired):
		return auditErrUnauthorized
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
