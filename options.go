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
	"fmt"
	"time"

	"github.com/fphost/go-r30x/logging"
)

// Option is a functional option applied by New while building a Session.
type Option func(*Session) error

// WithAddress sets the device address every frame is built with. The factory
// default is the broadcast address 0xFFFFFFFF, which any sensor answers.
func WithAddress(address uint32) Option {
	return func(s *Session) error {
		s.config.Address = address
		return nil
	}
}

// WithPassword sets the password Init verifies against the sensor.
func WithPassword(password uint32) Option {
	return func(s *Session) error {
		s.config.Password = password
		return nil
	}
}

// WithTimeout sets the per-operation read/write timeout. The transport does
// not see the value until Init applies it.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidArgument, timeout)
		}
		s.config.Timeout = timeout
		return nil
	}
}

// WithLogger sets the logger the session emits debug traces to.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidArgument)
		}
		s.config.Logger = logger
		return nil
	}
}

// WithRetryConfig replaces the session's retry policy.
func WithRetryConfig(config *RetryConfig) Option {
	return func(s *Session) error {
		s.SetRetryConfig(config)
		return nil
	}
}

// WithMaxRetries sets the attempt bound on the session's retry policy,
// keeping the rest of the policy at its current values.
func WithMaxRetries(maxAttempts int) Option {
	return func(s *Session) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidArgument, maxAttempts)
		}
		if s.config.RetryConfig == nil {
			s.config.RetryConfig = DefaultRetryConfig()
		}
		s.config.RetryConfig.MaxAttempts = maxAttempts
		if tr, ok := s.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(s.config.RetryConfig)
		}
		return nil
	}
}

// WithRetryBackoff sets the initial backoff of the session's retry policy.
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(s *Session) error {
		if initialBackoff <= 0 {
			return fmt.Errorf("%w: backoff must be positive, got %v", ErrInvalidArgument, initialBackoff)
		}
		if s.config.RetryConfig == nil {
			s.config.RetryConfig = DefaultRetryConfig()
		}
		s.config.RetryConfig.InitialBackoff = initialBackoff
		if tr, ok := s.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(s.config.RetryConfig)
		}
		return nil
	}
}
