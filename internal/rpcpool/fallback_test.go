package rpcpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
)

var testEndpoints = []chain.Endpoint{
	{URL: "https://a.example", Provider: "alpha", Priority: 0},
	{URL: "https://b.example", Provider: "beta", Priority: 1},
	{URL: "https://c.example", Provider: "gamma", Priority: 2},
}

func newTestClient(health *HealthTracker) *FallbackClient {
	c := NewFallbackClient(testEndpoints, health, nil)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestCallUsesPriorityOrder(t *testing.T) {
	c := newTestClient(nil)

	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if report.URL != "https://a.example" || report.Provider != "alpha" {
		t.Fatalf("expected the priority-0 endpoint, got %+v", report)
	}
	if len(report.Attempted) != 1 {
		t.Fatalf("attempted = %v, want one endpoint", report.Attempted)
	}
}

func TestCallFailsOverInOrder(t *testing.T) {
	c := newTestClient(nil)

	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		if url == "https://a.example" {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if report.URL != "https://b.example" {
		t.Fatalf("expected failover to beta, got %s", report.URL)
	}
	if len(report.Attempted) != 2 {
		t.Fatalf("attempted = %v", report.Attempted)
	}

	// The failure was recorded against alpha.
	h, ok := c.health.Lookup("https://a.example")
	if !ok || h.Healthy || h.ErrorCount == 0 {
		t.Fatalf("expected a failure record for alpha, got %+v", h)
	}
}

func TestCallRetriesPerEndpoint(t *testing.T) {
	c := newTestClient(nil)
	calls := map[string]int{}

	_, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		calls[url]++
		if url == "https://a.example" && calls[url] < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if calls["https://a.example"] != 2 {
		t.Fatalf("alpha attempts = %d, want 2 (retry on the same endpoint first)", calls["https://a.example"])
	}
	if calls["https://b.example"] != 0 {
		t.Fatal("beta should not be touched when alpha recovers on retry")
	}

	// A failure that recovered within the retry budget leaves the
	// endpoint healthy.
	h, ok := c.health.Lookup("https://a.example")
	if !ok || !h.Healthy || h.ErrorCount != 0 {
		t.Fatalf("recovered endpoint must stay healthy, got %+v", h)
	}
}

func TestMidRetryFailureDoesNotDemoteEndpoint(t *testing.T) {
	c := newTestClient(nil)
	calls := 0

	// First pass: alpha fails once, recovers on its second attempt.
	_, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		calls++
		if url == "https://a.example" && calls == 1 {
			return errors.New("blip")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !c.health.Usable("https://a.example") {
		t.Fatal("alpha must stay usable after a recovered retry")
	}

	// Second pass still leads with alpha at its static priority.
	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if report.URL != "https://a.example" {
		t.Fatalf("expected alpha to keep priority, got %s", report.URL)
	}
}

func TestCallAllProvidersFailed(t *testing.T) {
	c := newTestClient(nil)

	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		return errors.New("down")
	})
	if !clierr.Is(err, clierr.CodeAllProvidersFailed) {
		t.Fatalf("expected ALL_PROVIDERS_FAILED, got %v", err)
	}
	if len(report.Attempted) != len(testEndpoints) {
		t.Fatalf("attempted = %v, want every endpoint", report.Attempted)
	}
}

func TestFreshlyFailedEndpointSortsLast(t *testing.T) {
	health := NewHealthTracker(time.Minute)
	health.RecordFailure("https://a.example", errors.New("rate limited"))
	c := newTestClient(health)

	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if report.URL != "https://b.example" {
		t.Fatalf("expected beta first while alpha is failing, got %s", report.URL)
	}

	order := c.order()
	if order[len(order)-1].URL != "https://a.example" {
		t.Fatalf("alpha should sort last, got order %v", order)
	}
}

func TestStaleFailureRegainsPriority(t *testing.T) {
	health := NewHealthTracker(time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	health.now = func() time.Time { return now }

	health.RecordFailure("https://a.example", errors.New("down"))
	if health.Usable("https://a.example") {
		t.Fatal("fresh failure must not be usable")
	}

	// Once the record goes stale the endpoint is tried again at its
	// static priority.
	now = now.Add(2 * time.Minute)
	if !health.Usable("https://a.example") {
		t.Fatal("stale failure should be retryable")
	}

	c := newTestClient(health)
	report, err := c.Call(context.Background(), func(ctx context.Context, url string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if report.URL != "https://a.example" {
		t.Fatalf("recovered endpoint should lead again, got %s", report.URL)
	}
}

func TestHealthSnapshot(t *testing.T) {
	health := NewHealthTracker(time.Minute)
	health.RecordSuccess("https://a.example", 20*time.Millisecond)
	health.RecordFailure("https://b.example", errors.New("timeout"))

	snap := health.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d", len(snap))
	}
	if !snap["https://a.example"].Healthy || snap["https://b.example"].Healthy {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap["https://b.example"].LastError != "timeout" {
		t.Fatalf("last error not kept: %+v", snap["https://b.example"])
	}
}
