package users

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is a map-backed Lookup used by tests and the dev server.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces a user.
func (s *MemoryStore) Put(u User) error {
	if u.ID == "" {
		return errors.New("user id required")
	}
	email := NormalizeEmail(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byEmail[email]; ok && owner != u.ID {
		return ErrDuplicateEmail
	}
	if prev, ok := s.byID[u.ID]; ok {
		delete(s.byEmail, NormalizeEmail(prev.Email))
	}
	u.Email = email
	s.byID[u.ID] = cloneUser(&u)
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

// SetActive flips a user's active flag.
func (s *MemoryStore) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

// Reset removes every user.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.byID = make(map[string]*User)
	s.byEmail = make(map[string]string)
	s.mu.Unlock()
}
