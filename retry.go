// go-r30x
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-r30x.
//
// go-r30x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-r30x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-r30x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package r30x

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig governs how many times a transport operation is retried and
// the backoff curve between attempts.
type RetryConfig struct {
	OnRetry        func(attempt int, err error)
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the driver's default retry policy: three
// attempts, 50ms initial backoff doubling up to 500ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// retryOperation is a unit of work that reports its result, whether a retry
// is worth attempting, and any error encountered.
type retryOperation[T any] func() (T, bool, error)

// withRetry runs op, retrying while it reports shouldRetry=true and the
// config's attempt budget isn't exhausted, backing off between attempts and
// honoring ctx cancellation.
func withRetry[T any](ctx context.Context, cfg *RetryConfig, op retryOperation[T]) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var zero T
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 0; attempt < max(cfg.MaxAttempts, 1); attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		result, shouldRetry, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry || attempt == cfg.MaxAttempts-1 {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return zero, lastErr
}
