// Package download fetches single files over HTTP with a bounded timeout.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/kostore/internal/validation"
)

// Defaults for patch downloads.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 5 << 20
)

var (
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrTooLarge is returned when a body exceeds the size limit.
	ErrTooLarge = errors.New("response too large")
)

// Fetcher downloads a file in one GET request.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBytes limits the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// NewFetcher creates a fetcher whose requests time out after timeout.
// A non-positive timeout uses DefaultTimeout.
func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, opts...)
}

// NewFetcherWithClient creates a fetcher using a custom HTTP client.
func NewFetcherWithClient(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		userAgent: "kostore",
		maxBytes:  DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := validation.ValidateURL(url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %w: %s", url, ErrStatus, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("GET %s: %w (max %d bytes)", url, ErrTooLarge, f.maxBytes)
	}
	return data, nil
}
