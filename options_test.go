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
	"errors"
	"testing"
	"time"
)

func TestNewRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Option
	}{
		{"zero timeout", WithTimeout(0)},
		{"negative timeout", WithTimeout(-time.Second)},
		{"nil logger", WithLogger(nil)},
		{"zero max retries", WithMaxRetries(0)},
		{"zero backoff", WithRetryBackoff(0)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(NewMockTransport(), tt.opt)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestWithAddressAndPassword(t *testing.T) {
	t.Parallel()

	session, err := New(NewMockTransport(), WithAddress(0x12345678), WithPassword(0xCAFEBABE))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := session.Address(); got != 0x12345678 {
		t.Errorf("Address() = 0x%08X, want 0x12345678", got)
	}
	if got := session.Password(); got != 0xCAFEBABE {
		t.Errorf("Password() = 0x%08X, want 0xCAFEBABE", got)
	}
}

func TestDefaultsUseBroadcastAddress(t *testing.T) {
	t.Parallel()

	session, err := New(NewMockTransport())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := session.Address(); got != 0xFFFFFFFF {
		t.Errorf("default Address() = 0x%08X, want 0xFFFFFFFF", got)
	}
	if got := session.Password(); got != 0 {
		t.Errorf("default Password() = 0x%08X, want 0", got)
	}
}

func TestWithMaxRetriesReachesWrappedTransport(t *testing.T) {
	t.Parallel()

	wrapped := NewTransportWithRetry(NewMockTransport(), nil)
	session, err := New(wrapped, WithMaxRetries(5))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := session.config.RetryConfig.MaxAttempts; got != 5 {
		t.Errorf("session MaxAttempts = %d, want 5", got)
	}
	if got := wrapped.config.MaxAttempts; got != 5 {
		t.Errorf("transport MaxAttempts = %d, want 5", got)
	}
}

func TestWithRetryConfigReplacesPolicy(t *testing.T) {
	t.Parallel()

	cfg := &RetryConfig{
		MaxAttempts:    7,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     1.5,
	}

	wrapped := NewTransportWithRetry(NewMockTransport(), nil)
	session, err := New(wrapped, WithRetryConfig(cfg))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := session.config.RetryConfig.MaxAttempts; got != 7 {
		t.Errorf("session MaxAttempts = %d, want 7", got)
	}
	if got := wrapped.config.MaxAttempts; got != 7 {
		t.Errorf("transport MaxAttempts = %d, want 7", got)
	}
}
