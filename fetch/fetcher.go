// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package fetch retrieves raw content bytes from HTTP(S) source locators.
//
// The fetcher is a thin collaborator of the ingestion stage. It applies a
// caller-configurable timeout per attempt and retries transient failures
// (transport errors, timeouts, 5xx responses) with exponential backoff.
// Terminal failures surface as *FetchError, carrying the locator and
// whether the failure class is retryable.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds a single fetch attempt.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 3

// MaxBodySize caps accepted response bodies at 512 MiB. Larger responses
// fail rather than exhausting memory.
const MaxBodySize = 512 << 20

// Result is the outcome of a successful fetch.
type Result struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves raw bytes from a source locator.
// Implementations must be thread-safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

// HTTPFetcher implements Fetcher over net/http with retries.
type HTTPFetcher struct {
	client     *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-attempt timeout. Default is DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
// Zero disables retrying.
func WithMaxRetries(n uint64) Option {
	return func(f *HTTPFetcher) {
		f.maxRetries = n
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates an HTTPFetcher with default timeout and retry policy.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the bytes at url. Transient failures are retried with
// exponential backoff; the returned error is always a *FetchError wrapping
// the final cause, except for context cancellation which surfaces as-is.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	var result *Result

	operation := func() error {
		res, err := f.attempt(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && !fe.Retryable() {
				return backoff.Permanent(err)
			}
			f.logger.Debug("fetch attempt failed", "url", url, "err", err)
			return err
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: url, Err: err, retryable: true}
	}
	return result, nil
}

// attempt performs a single GET.
func (f *HTTPFetcher) attempt(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, retryable: false}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport failures and timeouts are retryable
		return nil, &FetchError{URL: url, Err: err, retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			retryable:  resp.StatusCode >= 500,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, retryable: true}
	}
	if len(data) > MaxBodySize {
		return nil, &FetchError{
			URL:       url,
			Err:       fmt.Errorf("response exceeds %d bytes", MaxBodySize),
			retryable: false,
		}
	}

	return &Result{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
