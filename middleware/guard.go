package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Authenticator verifies bearer access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authcore.Principal, error)
}

// Guard rejects requests without a valid, unrevoked access token and
// stores the resulting principal in the request context.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if authcore.HTTPStatus(err) == http.StatusUnauthorized {
					unauthorized(w)
					return
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithPrincipal(r.Context(), p)))
		})
	}
}

// ClientIP records the remote address on the request context. Put chi's
// RealIP in front of it only when a trusted proxy sets X-Forwarded-For.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(authcore.WithClientIP(r.Context(), ip)))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// WriteError renders err as an OAuth-style JSON error with a generic
// description.
func WriteError(w http.ResponseWriter, err error) {
	status := authcore.HTTPStatus(err)
	if status == http.StatusFound {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:            authcore.OAuthErrorCode(err),
		ErrorDescription: authcore.Description(err),
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, authcore.ErrUnauthenticated)
}
