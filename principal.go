package authcore

import (
	"slices"
	"time"
)

// RolePlatformAdmin is the role that bypasses ownership checks.
const RolePlatformAdmin = "admin"

// Principal is the identity derived from a verified access token. It is
// never persisted.
type Principal struct {
	UserID    string    `json:"user_id"`
	Roles     []string  `json:"roles"`
	Scope     string    `json:"scope,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`

	// OrgID and OrgRole are set when the request is organization scoped.
	OrgID   string `json:"org_id,omitempty"`
	OrgRole string `json:"org_role,omitempty"`
}

func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

func (p *Principal) IsPlatformAdmin() bool {
	return p.HasRole(RolePlatformAdmin)
}

// WithOrg returns a copy of p scoped to an organization.
func (p *Principal) WithOrg(orgID, orgRole string) *Principal {
	out := *p
	out.Roles = slices.Clone(p.Roles)
	out.OrgID = orgID
	out.OrgRole = orgRole
	return &out
}

// CheckOwnerOrAdmin returns ErrForbidden unless p owns the resource or is a
// platform admin.
func CheckOwnerOrAdmin(p *Principal, ownerID string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if p.UserID == ownerID || p.IsPlatformAdmin() {
		return nil
	}
	return ErrForbidden
}

// CheckOwnerOrOrgAdmin additionally admits org owners and admins.
func CheckOwnerOrOrgAdmin(p *Principal, ownerID string) error {
	if err := CheckOwnerOrAdmin(p, ownerID); err == nil || p == nil {
		return err
	}
	if p.OrgID != "" && (p.OrgRole == "admin" || p.OrgRole == "owner") {
		return nil
	}
	return ErrForbidden
}
