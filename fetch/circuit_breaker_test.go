package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCircuitBreakerFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(NewFetcher())

	var v struct {
		OK bool `json:"ok"`
	}
	if err := cbFetcher.FetchJSON(context.Background(), server.URL+"/pkg", &v); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !v.OK {
		t.Error("expected decoded document")
	}
}

func TestCircuitBreakerNotFoundDoesNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(NewFetcher())
	for range 10 {
		_, err := cbFetcher.Fetch(context.Background(), server.URL+"/missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Fetch = %v, want ErrNotFound", err)
		}
	}

	for _, state := range cbFetcher.GetBreakerState() {
		if state != "closed" {
			t.Errorf("expected closed state, got %s", state)
		}
	}
}

func TestExtractRegistry(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "npm registry",
			url:      "https://registry.npmjs.org/left-pad",
			expected: "registry.npmjs.org",
		},
		{
			name:     "yarn registry",
			url:      "https://registry.yarnpkg.com/@babel%2fcore",
			expected: "registry.yarnpkg.com",
		},
		{
			name:     "invalid URL",
			url:      "not-a-valid-url",
			expected: "not-a-valid-url",
		},
		{
			name:     "with port",
			url:      "https://example.com:8080/path",
			expected: "example.com:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractRegistry(tt.url)
			if got != tt.expected {
				t.Errorf("extractRegistry(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestGetBreakerState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(NewFetcher())

	if states := cbFetcher.GetBreakerState(); len(states) != 0 {
		t.Errorf("expected empty states, got %d entries", len(states))
	}

	_, _ = cbFetcher.Fetch(context.Background(), server.URL+"/test")

	states := cbFetcher.GetBreakerState()
	if len(states) == 0 {
		t.Error("expected at least one breaker state after fetch")
	}
	for _, state := range states {
		if state != "closed" {
			t.Errorf("expected closed state, got %s", state)
		}
	}
}

func TestCircuitBreakerOpensOnFailures(t *testing.T) {
	failCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failCount++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(NewFetcher(WithMaxRetries(0), WithBaseDelay(0)))

	for range 10 {
		_, _ = cbFetcher.Fetch(context.Background(), server.URL+"/test")
	}

	if failCount >= 10 {
		t.Errorf("breaker did not open: %d requests reached the server", failCount)
	}

	_, err := cbFetcher.Fetch(context.Background(), server.URL+"/test")
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("Fetch = %v, want ErrUpstreamDown", err)
	}
}
