// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retry implements the bounded retry policy shared by every
// outbound HTTP collaborator (embedder, translator, vision, reviewer).
//
// The policy is deliberately small: exponential backoff starting at 500ms,
// at most 3 attempts, and retries only on transport errors, 5xx, and 429.
// Any other 4xx surfaces immediately because repeating it cannot succeed.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts = 3

	// InitialDelay is the backoff before the first retry. It doubles on
	// each subsequent retry.
	InitialDelay = 500 * time.Millisecond
)

// UpstreamError wraps an HTTP-level failure from an internal collaborator,
// carrying enough information for the caller to decide on retry or
// degradation.
type UpstreamError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return "upstream error (status " + http.StatusText(e.StatusCode) + "): " + e.Message
}

// NewUpstreamError builds an UpstreamError with retryability derived from
// the status code.
func NewUpstreamError(statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  RetryableStatus(statusCode),
	}
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
// All 5xx are treated as transient, as is 429 Too Many Requests.
func RetryableStatus(statusCode int) bool {
	if statusCode >= 500 {
		return true
	}
	return statusCode == http.StatusTooManyRequests
}

// RetryableError reports whether an error should trigger another attempt.
//
// Context cancellation and deadline expiry are never retried; an
// *UpstreamError defers to its own Retryable flag; everything else is
// assumed to be a transport-level failure and retried.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return true
}

// Do runs fn with the package retry policy.
//
// # Inputs
//
//   - ctx: cancellation unwinds the backoff sleep immediately.
//   - op: short operation name for logs.
//   - fn: the attempt. A nil error stops the loop.
//
// # Outputs
//
//   - error: nil on success, otherwise the last attempt's error.
func Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := InitialDelay

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying operation",
				"op", op,
				"attempt", attempt,
				"delay", delay,
				"lastError", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !RetryableError(err) {
			return err
		}
	}
	return lastErr
}
