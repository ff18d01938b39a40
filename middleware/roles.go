package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// RequireRole admits principals holding role. It must run after Guard.
func RequireRole(role string) func(http.Handler) http.Handler {
	return RequireAnyRole(role)
}

// RequireAnyRole admits principals holding at least one of roles.
func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authcore.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !p.HasAnyRole(roles...) {
				WriteError(w, authcore.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OrgHeader carries the organization a request is scoped to.
const OrgHeader = "X-Org-ID"

// MembershipLookup resolves a user's role inside an organization. A
// non-member yields an empty role and a nil error.
type MembershipLookup interface {
	OrgRole(ctx context.Context, orgID, userID string) (string, error)
}

// MembershipFunc adapts a function to MembershipLookup.
type MembershipFunc func(ctx context.Context, orgID, userID string) (string, error)

func (f MembershipFunc) OrgRole(ctx context.Context, orgID, userID string) (string, error) {
	return f(ctx, orgID, userID)
}

// OrgScope attaches the organization named by X-Org-ID to the principal.
// Requests without the header pass through unscoped. Platform admins are
// admitted to any organization.
func OrgScope(members MembershipLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(r.Header.Get(OrgHeader))
			if orgID == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := authcore.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			role, err := members.OrgRole(r.Context(), orgID, p.UserID)
			if err != nil {
				WriteError(w, authcore.ErrBackendUnavailable)
				return
			}
			if role == "" && !p.IsPlatformAdmin() {
				WriteError(w, authcore.ErrForbidden)
				return
			}

			scoped := p.WithOrg(orgID, role)
			next.ServeHTTP(w, r.WithContext(authcore.WithPrincipal(r.Context(), scoped)))
		})
	}
}
