package authcore

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest covers malformed OAuth parameters, unknown clients
	// and redirect URI mismatches.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidGrant covers unknown, expired or reused codes and PKCE
	// mismatches.
	ErrInvalidGrant = errors.New("invalid grant")
	// ErrUnauthenticated covers missing, expired, invalid or revoked tokens,
	// bad credentials and inactive users.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the principal lacks a required role.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when a bucket is empty.
	ErrRateLimited = errors.New("rate limited")
	// ErrLoginRequired is returned by Authorize when no valid session is
	// present. HTTP callers redirect to the login page.
	ErrLoginRequired = errors.New("login required")
	// ErrBackendUnavailable is returned when a store fails and the
	// configured policy is fail-closed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or
	// partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUnsupportedGrantType is an ErrInvalidRequest with its own OAuth
	// error code.
	ErrUnsupportedGrantType = fmt.Errorf("%w: unsupported grant type", ErrInvalidRequest)
	// ErrRefreshReuse marks a refresh token presented after rotation.
	ErrRefreshReuse = fmt.Errorf("%w: refresh token reuse", ErrUnauthenticated)
	// ErrInvalidCredentials is returned by Login for unknown emails and bad
	// passwords alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

// HTTPStatus maps an engine error to a response status. Unknown errors map
// to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrLoginRequired):
		return http.StatusFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidGrant):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OAuthErrorCode returns the RFC 6749 error string for err.
func OAuthErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return "unsupported_grant_type"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrLoginRequired):
		return "login_required"
	case errors.Is(err, ErrUnauthenticated):
		return "invalid_token"
	case errors.Is(err, ErrForbidden):
		return "insufficient_scope"
	case errors.Is(err, ErrRateLimited):
		return "slow_down"
	case errors.Is(err, ErrBackendUnavailable):
		return "temporarily_unavailable"
	default:
		return "server_error"
	}
}

// Description is the generic client-facing message for err. It never names
// the specific check that failed.
func Description(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return "Only the authorization_code grant is supported."
	case errors.Is(err, ErrInvalidRequest):
		return "The request is missing a parameter or has an invalid value."
	case errors.Is(err, ErrInvalidGrant):
		return "The authorization code is invalid, expired or already used."
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required."
	case errors.Is(err, ErrForbidden):
		return "Insufficient permissions."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests."
	case errors.Is(err, ErrBackendUnavailable):
		return "Service temporarily unavailable."
	default:
		return "Internal error."
	}
}
