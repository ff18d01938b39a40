package clients

import (
	"context"
	"errors"
	"sync"
)

// MemoryRegistry is a map-backed registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewMemoryRegistry(clients ...Client) *MemoryRegistry {
	r := &MemoryRegistry{clients: make(map[string]*Client, len(clients))}
	for _, c := range clients {
		_ = r.Register(c)
	}
	return r
}

// Register adds or replaces a client. The stored value is a copy.
func (r *MemoryRegistry) Register(c Client) error {
	if c.ClientID == "" {
		return errors.New("client_id required")
	}
	c.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	c.AllowedScopes = append([]string(nil), c.AllowedScopes...)

	r.mu.Lock()
	r.clients[c.ClientID] = &c
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) GetClient(_ context.Context, clientID string) (*Client, error) {
	r.mu.RLock()
	c, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	out.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	out.AllowedScopes = append([]string(nil), c.AllowedScopes...)
	return &out, nil
}

// Reset removes every client.
func (r *MemoryRegistry) Reset() {
	r.mu.Lock()
	r.clients = make(map[string]*Client)
	r.mu.Unlock()
}
