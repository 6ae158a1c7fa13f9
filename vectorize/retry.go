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

package vectorize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/capsearch/core"
)

// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

// RetryPolicy bounds how often a failed embedding call is repeated.
type RetryPolicy struct {
	// MaxAttempts counts the first call. 1 disables retries.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the wait before the second attempt; it doubles after each failure.
	BaseDelay time.Duration `yaml:"base_delay"`
}

// DefaultRetryPolicy returns three attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Validate checks the policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay < 0 {
		return errors.New("retry policy: BaseDelay cannot be negative")
	}
	return nil
}

// Do runs operation under the policy, retrying only embedding failures.
func (p RetryPolicy) Do(ctx context.Context, operation func() error) error {
	return RetryIf(ctx, operation, IsRetryable, p.MaxAttempts, p.BaseDelay)
}

// IsRetryable reports whether err is a transient gateway failure.
// Invalid input and caller cancellation are never retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, core.ErrEmbedding) && !errors.Is(err, core.ErrInvalidCapability)
}

// RetryWithBackoff calls operation up to maxAttempts times, waiting
// baseDelay before the second attempt and doubling the wait after that.
// It returns the last error, or the context error if ctx ends first.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	return RetryIf(ctx, operation, nil, maxAttempts, baseDelay)
}

// RetryIf is RetryWithBackoff that gives up early on errors retryable rejects.
// A nil retryable retries every error.
func RetryIf(ctx context.Context, operation func() error, retryable func(error) bool, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(baseDelay, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// backoffDelay is the wait after the given failed attempt, counted from 1.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}
