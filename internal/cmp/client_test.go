package cmp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/consent"
	"github.com/sendrec/videoconsent/internal/provider"
)

func newTestClient(url string) *Client {
	c := New(url+"/", "test-key")
	c.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	return c
}

func TestServices(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodGet || r.URL.Path != "/services" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer key, got %q", got)
		}
		json.NewEncoder(w).Encode([]consent.Service{{ID: "a1", Name: "YouTube Video"}, {ID: "b2", Name: "Vimeo"}})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	services, err := c.Services(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(services) != 2 || services[0].ID != "a1" || services[1].Name != "Vimeo" {
		t.Errorf("unexpected services %+v", services)
	}

	if _, err := c.Services(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected cached second lookup, got %d calls", calls.Load())
	}

	now := time.Now().Add(servicesTTL + time.Second)
	c.now = func() time.Time { return now }
	if _, err := c.Services(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", calls.Load())
	}
}

func TestAcceptServiceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/services/a1/accept" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).AcceptService(context.Background(), "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestAcceptServiceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).AcceptService(context.Background(), "missing"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestAcceptServiceAllAttemptsFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).AcceptService(context.Background(), "a1"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDrivesPlatformStore(t *testing.T) {
	var accepted atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services":
			json.NewEncoder(w).Encode([]consent.Service{{ID: "v1", Name: "Vimeo"}})
		case "/services/v1/accept":
			accepted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	store := consent.NewPlatformStore(newTestClient(server.URL), broadcast.New())
	if err := store.Grant(context.Background(), provider.Vimeo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted.Load() != true {
		t.Error("expected accept call")
	}
	if store.Status(provider.Vimeo) != consent.Unknown {
		t.Error("expected status to wait for the platform event")
	}
}
