package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

func TestGetJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	client := New(2*time.Second, 0)
	if _, err := client.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Name != "ok" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 2)
	var out map[string]any
	if _, err := client.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(2*time.Second, 3)
	_, err := client.GetJSON(context.Background(), srv.URL, nil, nil)
	if !clierr.Is(err, clierr.CodeAuth) {
		t.Fatalf("expected AUTH error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failure should not retry, got %d calls", calls.Load())
	}
}
