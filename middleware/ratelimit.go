package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/ratelimit"
)

// Limiter consumes rate limit tokens.
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error)
}

// SubjectResolver names the user behind a bearer token, or returns "" when
// the token does not verify.
type SubjectResolver interface {
	RateLimitSubject(token string) string
}

// RateLimit charges one token per request. The bucket is keyed by the
// authenticated user when a Guard ran earlier in the chain. Otherwise, if l
// is also a SubjectResolver, a verifiable bearer token names the user.
// Everything else is keyed by client address.
func RateLimit(l Limiter, cfg ratelimit.Config) func(http.Handler) http.Handler {
	resolver, _ := l.(SubjectResolver)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := ratelimit.KeyFor(requestSubject(r, resolver), authcore.ClientIPFromContext(ctx))

			res, err := l.CheckRateLimit(ctx, key, cfg)
			setLimitHeaders(w, res)
			if err != nil {
				if errors.Is(err, authcore.ErrRateLimited) {
					w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
				}
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestSubject(r *http.Request, resolver SubjectResolver) string {
	if p, ok := authcore.PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	if resolver == nil {
		return ""
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return ""
	}
	return resolver.RateLimitSubject(token)
}

func setLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
}
