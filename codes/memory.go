package codes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	code   AuthorizationCode
	usedAt atomic.Int64
}

// MemoryStore keeps codes in process memory. It is only correct for a
// single instance.
type MemoryStore struct {
	entries sync.Map // codeHash -> *memoryEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, code *AuthorizationCode) error {
	if code == nil || code.CodeHash == "" {
		return ErrNotFound
	}
	e := &memoryEntry{code: *code}
	e.usedAt.Store(code.UsedAt)
	if _, loaded := s.entries.LoadOrStore(code.CodeHash, e); loaded {
		return ErrDuplicate
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, codeHash string) (*AuthorizationCode, error) {
	v, ok := s.entries.Load(codeHash)
	if !ok {
		return nil, ErrNotFound
	}
	e := v.(*memoryEntry)
	out := e.code
	out.UsedAt = e.usedAt.Load()
	return &out, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, codeHash string, usedAt time.Time) error {
	v, ok := s.entries.Load(codeHash)
	if !ok {
		return ErrNotFound
	}
	ts := usedAt.Unix()
	if ts <= 0 {
		ts = 1
	}
	if !v.(*memoryEntry).usedAt.CompareAndSwap(0, ts) {
		return ErrAlreadyUsed
	}
	return nil
}

// Sweep drops codes whose expiry is before now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	s.entries.Range(func(k, v any) bool {
		if v.(*memoryEntry).code.Expired(now) {
			s.entries.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

// Reset clears every record.
func (s *MemoryStore) Reset() {
	s.entries.Range(func(k, _ any) bool {
		s.entries.Delete(k)
		return true
	})
}
