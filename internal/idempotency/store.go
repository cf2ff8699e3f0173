package idempotency

import (
	"context"
	"sync"
	"time"
)

// Status of a tracked prompt. Transitions only move forward:
// pending -> completed or pending -> failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one tracked intent submission.
type Entry struct {
	Key       string    `json:"key"`
	PromptID  string    `json:"prompt_id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	ChainID   int64     `json:"chain_id"`
	Status    Status    `json:"status"`
	TxHash    string    `json:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists entries keyed by fingerprint. PutIfAbsent must be
// atomic: exactly one of two concurrent callers wins.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	PutIfAbsent(ctx context.Context, e Entry) (bool, error)
	Update(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
	// Sweep removes entries expired before now and reports how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is the in-process default: a mutex-guarded map, entries
// cloned on the way out so callers cannot mutate shared state.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, e Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.Key]; exists {
		return false, nil
	}
	s.entries[e.Key] = e
	return true, nil
}

func (s *MemoryStore) Update(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if e.ExpiresAt.Before(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
