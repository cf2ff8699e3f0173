package rpcpool

import (
	"sync"
	"time"
)

// Health is the last known condition of one endpoint.
type Health struct {
	Healthy     bool
	LastChecked time.Time
	Latency     time.Duration
	ErrorCount  int
	LastError   string
}

// HealthTracker remembers per-endpoint outcomes so the fallback client
// can order endpoints by observed condition. Entries older than
// staleAfter no longer count against an endpoint: a provider that
// failed a while ago deserves a fresh chance at full priority.
type HealthTracker struct {
	mu         sync.RWMutex
	byURL      map[string]Health
	staleAfter time.Duration
	now        func() time.Time
}

func NewHealthTracker(staleAfter time.Duration) *HealthTracker {
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	return &HealthTracker{
		byURL:      make(map[string]Health),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (t *HealthTracker) RecordSuccess(url string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byURL[url] = Health{
		Healthy:     true,
		LastChecked: t.now(),
		Latency:     latency,
	}
}

func (t *HealthTracker) RecordFailure(url string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.byURL[url]
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.byURL[url] = Health{
		Healthy:     false,
		LastChecked: t.now(),
		ErrorCount:  prev.ErrorCount + 1,
		LastError:   msg,
	}
}

// Usable reports whether an endpoint should be tried at full priority:
// unknown, healthy, or known-bad but stale.
func (t *HealthTracker) Usable(url string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byURL[url]
	if !ok || h.Healthy {
		return true
	}
	return t.now().Sub(h.LastChecked) >= t.staleAfter
}

func (t *HealthTracker) Lookup(url string) (Health, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byURL[url]
	return h, ok
}

// Snapshot copies the full health table for status output.
func (t *HealthTracker) Snapshot() map[string]Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Health, len(t.byURL))
	for url, h := range t.byURL {
		out[url] = h
	}
	return out
}
