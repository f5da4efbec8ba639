package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// CircuitBreakerFetcher wraps a Fetcher with per-registry circuit breakers.
type CircuitBreakerFetcher struct {
	fetcher   FetcherInterface
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher creates a circuit breaker wrapper for a fetcher.
// A registry's breaker trips after 5 consecutive failures.
func NewCircuitBreakerFetcher(f FetcherInterface) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: 5,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// getBreaker returns or creates a circuit breaker for the given registry.
func (cbf *CircuitBreakerFetcher) getBreaker(registry string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[registry]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	if breaker, exists := cbf.breakers[registry]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})

	cbf.breakers[registry] = breaker
	return breaker
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
// A missing document does not count as a registry failure.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Document, error) {
	registry := extractRegistry(fetchURL)
	breaker := cbf.getBreaker(registry)

	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for registry %s: %w", registry, ErrUpstreamDown)
	}

	var doc *Document
	var notFound bool
	err := breaker.Call(func() error {
		var fetchErr error
		doc, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		if errors.Is(fetchErr, ErrNotFound) {
			notFound = true
			return nil
		}
		return fetchErr
	}, 0)

	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrNotFound
	}

	return doc, nil
}

// FetchJSON fetches the document at url through the breaker and decodes it into v.
func (cbf *CircuitBreakerFetcher) FetchJSON(ctx context.Context, fetchURL string, v any) error {
	doc, err := cbf.Fetch(ctx, fetchURL)
	if err != nil {
		return err
	}
	return decodeJSON(doc, v)
}

// extractRegistry extracts a registry identifier from a URL for circuit breaker grouping.
func extractRegistry(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// GetBreakerState returns the current state of circuit breakers (for health checks).
func (cbf *CircuitBreakerFetcher) GetBreakerState() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string)
	for registry, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[registry] = "open"
		} else {
			states[registry] = "closed"
		}
	}
	return states
}
