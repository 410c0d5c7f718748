// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the API adapters.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryDelay caps both computed backoff and server-supplied Retry-After.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 5

// Retryable reports whether a response status is worth retrying: 429 (Too
// Many Requests) and the 5xx statuses that signal a transient upstream
// problem.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	// Anthropic reports overload as 529.
	return status == 529
}

// DoWithRetry executes an HTTP request and retries retryable statuses with
// exponential backoff starting at RetryBaseDelay. A Retry-After header given
// in seconds replaces the computed delay.
//
// When maxRetries is 0 the default (5) is used. The request body is replayed
// through req.GetBody, which http.NewRequest sets for in-memory bodies. If the
// context is cancelled during a backoff wait the function returns ctx.Err().
// After exhausting retries the last response is returned so the caller can
// inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryDelay(resp, attempt)

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.Debug("retrying request",
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryDelay(resp *http.Response, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			backoff = time.Duration(secs) * time.Second
		}
	}
	if backoff > MaxRetryDelay {
		backoff = MaxRetryDelay
	}
	return backoff
}
