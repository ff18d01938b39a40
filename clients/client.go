// Package clients holds registered OAuth clients and answers the two
// questions the authorize and token endpoints ask of them: does the client
// exist, and is this redirect URI one of its registered values.
package clients

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for an unknown client_id.
	ErrNotFound = errors.New("client not found")
	// ErrBackend wraps storage failures.
	ErrBackend = errors.New("client registry unavailable")
)

// Client is an immutable registration.
type Client struct {
	ID            string
	ClientID      string
	RedirectURIs  []string
	IsPublic      bool
	AllowedScopes []string
}

// HasRedirectURI reports an exact, byte-for-byte match against a
// registered URI. No prefix, wildcard or normalisation is applied.
func (c *Client) HasRedirectURI(uri string) bool {
	if c == nil || uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScope reports whether every space-separated scope in requested is
// allowed. A client without AllowedScopes accepts any scope.
func (c *Client) AllowsScope(requested string) bool {
	if c == nil {
		return false
	}
	if len(c.AllowedScopes) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(c.AllowedScopes))
	for _, s := range c.AllowedScopes {
		allowed[s] = struct{}{}
	}
	for _, s := range strings.Fields(requested) {
		if _, ok := allowed[s]; !ok {
			return false
		}
	}
	return true
}

// Registry looks clients up by client_id.
type Registry interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
}
