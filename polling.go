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

// WaitConfig tunes the finger-wait loop.
type WaitConfig struct {
	// Interval is the pause between capture attempts.
	Interval time.Duration

	// Timeout bounds the whole wait. Zero means wait until ctx is done.
	Timeout time.Duration
}

// DefaultWaitConfig polls five times a second with a 30-second bound, slow
// enough to keep the serial line mostly idle while feeling instant to a
// person touching the sensor.
func DefaultWaitConfig() *WaitConfig {
	return &WaitConfig{
		Interval: 200 * time.Millisecond,
		Timeout:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *WaitConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: wait interval must be positive, got %v", ErrInvalidArgument, c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: wait timeout must not be negative, got %v", ErrInvalidArgument, c.Timeout)
	}
	return nil
}

// WaitForFinger polls ReadImage until a capture succeeds, a real error
// occurs, or the wait times out. On success the capture sits in the sensor's
// image buffer, ready for ConvertImage or DownloadImage. A nil cfg selects
// DefaultWaitConfig. Timing out returns context.DeadlineExceeded via the
// derived context, so callers distinguish it from sensor faults with
// errors.Is.
func (s *Session) WaitForFinger(ctx context.Context, cfg *WaitConfig) error {
	if cfg == nil {
		cfg = DefaultWaitConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	attempts := 0
	for {
		ok, err := s.ReadImage(ctx)
		if err != nil {
			return fmt.Errorf("wait for finger: %w", err)
		}
		attempts++
		if ok {
			s.config.Logger.Debug("finger captured", "attempts", attempts)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for finger: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}
}

// WaitForFingerRemoval polls until ReadImage stops seeing a finger, the
// pause enrollment needs between the two captures of the same finger.
func (s *Session) WaitForFingerRemoval(ctx context.Context, cfg *WaitConfig) error {
	if cfg == nil {
		cfg = DefaultWaitConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	for {
		ok, err := s.ReadImage(ctx)
		if err != nil {
			return fmt.Errorf("wait for finger removal: %w", err)
		}
		if !ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for finger removal: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}
}
