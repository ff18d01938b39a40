package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local denylist.
type MemoryStore struct {
	entries sync.Map // jti -> time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// NewMemoryStoreWithClock is NewMemoryStore with an injected clock.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || !expiresAt.After(s.now()) {
		return nil
	}
	for {
		prev, loaded := s.entries.LoadOrStore(jti, expiresAt)
		if !loaded {
			return nil
		}
		// Keep the later expiry if the same jti is revoked twice.
		if !expiresAt.After(prev.(time.Time)) {
			return nil
		}
		if s.entries.CompareAndSwap(jti, prev, expiresAt) {
			return nil
		}
	}
}

func (s *MemoryStore) RevokeOnce(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	now := s.now()
	if jti == "" || !expiresAt.After(now) {
		return false, nil
	}
	for {
		prev, loaded := s.entries.LoadOrStore(jti, expiresAt)
		if !loaded {
			return true, nil
		}
		if prev.(time.Time).After(now) {
			return false, nil
		}
		// Stale entry left behind by a previous lifetime of the jti.
		if s.entries.CompareAndSwap(jti, prev, expiresAt) {
			return true, nil
		}
	}
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	v, ok := s.entries.Load(jti)
	if !ok {
		return false, nil
	}
	exp := v.(time.Time)
	if !exp.After(s.now()) {
		s.entries.CompareAndDelete(jti, exp)
		return false, nil
	}
	return true, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	s.entries.Range(func(k, v any) bool {
		if !v.(time.Time).After(now) {
			if s.entries.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset clears every entry.
func (s *MemoryStore) Reset() {
	s.entries.Range(func(k, _ any) bool {
		s.entries.Delete(k)
		return true
	})
}
