// Package fetch downloads registry metadata documents with retry, DNS
// caching and per-registry circuit breaking.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream registry unavailable")
	ErrTooLarge     = errors.New("document exceeds size limit")
)

// AcceptNPM asks the npm registry for abbreviated package metadata.
const AcceptNPM = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

const defaultMaxBodyBytes = 64 * 1024 * 1024

// Document is a fetched metadata document.
type Document struct {
	Body        []byte
	ContentType string
	ETag        string
}

// FetcherInterface defines the interface for document fetchers.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Fetcher downloads metadata documents from upstream registries.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	accept       string
	maxRetries   int
	baseDelay    time.Duration
	maxBodyBytes int64
	authFn       func(url string) (headerName, headerValue string)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithAccept sets the Accept header.
func WithAccept(accept string) Option {
	return func(f *Fetcher) {
		f.accept = accept
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the initial delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithMaxBodyBytes caps the size of a fetched document.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodyBytes = n
	}
}

// WithAuthFunc sets a function that returns auth headers for a given URL.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(f *Fetcher) {
		f.authFn = fn
	}
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       newCachingClient(),
		userAgent:    "proddeps",
		accept:       "application/json",
		maxRetries:   3,
		baseDelay:    500 * time.Millisecond,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newCachingClient returns an HTTP client whose dialer resolves hosts
// through a DNS cache refreshed every 5 minutes.
func newCachingClient() *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP")
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func (f *Fetcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.baseDelay
	b.RandomizationFactor = 0.1
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Fetch downloads the document at url. Rate limiting and server errors
// are retried with exponential backoff; a 404 is not.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	var lastErr error
	delays := f.newBackOff()

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delays.NextBackOff()):
			}
		}

		doc, err := f.doFetch(ctx, url)
		if err == nil {
			return doc, nil
		}

		lastErr = err

		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// FetchJSON downloads the document at url and decodes it into v.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, v any) error {
	doc, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	return decodeJSON(doc, v)
}

func decodeJSON(doc *Document, v any) error {
	if err := json.Unmarshal(doc.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", f.accept)

	if f.authFn != nil {
		if name, value := f.authFn(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		if int64(len(body)) > f.maxBodyBytes {
			return nil, ErrTooLarge
		}
		return &Document{
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited

	case resp.StatusCode >= 500:
		return nil, ErrUpstreamDown

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
