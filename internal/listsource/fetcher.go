// Package listsource imports address and domain lists published at a URL.
package listsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "hostpin/pkg/errors"
)

// maxBody caps how much of a list response is read.
const maxBody = 4 << 20

// Fetcher downloads lists over HTTP with retry logic
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	retryDelay time.Duration
}

// FetcherConfig represents fetcher configuration
type FetcherConfig struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultFetcherConfig returns default fetcher configuration
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:  "hostpin/1.0",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// NewFetcher creates a new list fetcher
func NewFetcher(config FetcherConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		userAgent:  config.UserAgent,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}
}

// Fetch downloads url, retrying network and server errors with an
// exponential backoff. Client errors (4xx) are not retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = f.retryDelay
	expback.MaxInterval = 8 * f.retryDelay

	content, err := backoff.Retry(ctx, func() ([]byte, error) {
		content, err := f.doFetch(ctx, url)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return content, err
	},
		backoff.WithBackOff(expback),
		backoff.WithMaxTries(uint(f.maxRetries+1)),
	)
	if err != nil {
		return nil, &apperrors.FetchError{URL: url, Err: err}
	}
	return content, nil
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// HTTPError is a non-200 response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return "unexpected status " + e.Status
}

// Load fetches url and decodes it as a list of kind.
func (f *Fetcher) Load(ctx context.Context, url string, kind Kind) (*Result, error) {
	content, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	res, err := Decode(content, kind)
	if err != nil {
		return nil, &apperrors.FetchError{URL: url, Err: err}
	}
	return res, nil
}
