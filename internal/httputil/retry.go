// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP client shared by every stage
// that talks to the network.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/pkg/types"
)

// sleep is swapped out by tests to avoid real backoff waits.
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// TransportError wraps a network-layer failure that survived every retry
// attempt. Callers treat it as a failed step, not a fatal process error.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client wraps *http.Client with bounded exponential-backoff retry on
// transport-level failures (connection errors, timeouts). HTTP responses
// are returned as-is regardless of status code; status interpretation
// belongs to the caller.
type Client struct {
	http  *http.Client
	retry types.RetryConfig
}

// NewClient builds a retrying client with the given per-request timeout
// and retry settings. Zero-valued retry fields fall back to defaults.
func NewClient(timeout time.Duration, retry types.RetryConfig) *Client {
	def := types.DefaultRetryConfig()
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = def.MaxAttempts
	}
	if retry.WaitMultiplier <= 0 {
		retry.WaitMultiplier = def.WaitMultiplier
	}
	if retry.WaitMin <= 0 {
		retry.WaitMin = def.WaitMin
	}
	if retry.WaitMax <= 0 {
		retry.WaitMax = def.WaitMax
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		retry: retry,
	}
}

// Do executes the request, retrying transport failures up to the attempt
// ceiling. A request carrying a body must have GetBody set so the body can
// be replayed; http.NewRequest does this for in-memory readers. Context
// cancellation is never retried. After exhausting attempts the last error
// is returned wrapped in *TransportError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.http.Do(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		wait := c.backoff(attempt)
		logging.Warn("request failed, retrying",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, &TransportError{Attempts: c.retry.MaxAttempts, Err: lastErr}
}

// backoff computes the wait before the next attempt: multiplier * 2^attempt
// seconds, clamped to [WaitMin, WaitMax].
func (c *Client) backoff(attempt int) time.Duration {
	secs := c.retry.WaitMultiplier * math.Pow(2, float64(attempt))
	wait := time.Duration(secs * float64(time.Second))
	if wait < c.retry.WaitMin {
		wait = c.retry.WaitMin
	}
	if wait > c.retry.WaitMax {
		wait = c.retry.WaitMax
	}
	return wait
}
