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
	"errors"
	"fmt"
	"time"

	"github.com/fphost/go-r30x/internal/frame"
	"github.com/fphost/go-r30x/logging"
)

// SessionConfig holds the fields that configure a Session's lifecycle:
// retry policy, logging, the per-operation timeout, and the address and
// password every frame is built with.
type SessionConfig struct {
	RetryConfig *RetryConfig
	Logger      logging.Logger
	Timeout     time.Duration
	Address     uint32
	Password    uint32
}

// DefaultSessionConfig returns the driver's out-of-the-box configuration:
// broadcast address, factory-default password, a one-second timeout.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		RetryConfig: DefaultRetryConfig(),
		Logger:      logging.NoOp(),
		Timeout:     1 * time.Second,
		Address:     frame.DefaultAddress,
		Password:    frame.DefaultPassword,
	}
}

// Session is a process-local handle to one open sensor. It exclusively owns
// its transport: closing the session closes the transport.
//
// Thread Safety: Session is NOT thread-safe. The protocol is strictly
// request-reply on a single serial line, so callers needing concurrency
// must serialize access externally (a mutex around the session or a
// dedicated worker goroutine).
type Session struct {
	transport     Transport
	config        *SessionConfig
	maxPacketSize int
	capacity      int
	poisoned      bool
}

// New creates a Session over transport, applying opts in order. The session
// is not usable until Init succeeds.
func New(transport Transport, opts ...Option) (*Session, error) {
	s := &Session{
		transport: transport,
		config:    DefaultSessionConfig(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Init opens the session: applies the configured timeout to the transport,
// verifies the password, and caches the sensor's negotiated packet size and
// storage capacity. Init also clears a poisoned flag left by an earlier
// unrecoverable transport error, making it the session's reinitialization
// point.
func (s *Session) Init(ctx context.Context) error {
	if err := s.transport.SetTimeout(s.config.Timeout); err != nil {
		return fmt.Errorf("set initial timeout: %w", err)
	}
	s.poisoned = false

	ok, err := s.VerifyPassword(ctx)
	if err != nil {
		return fmt.Errorf("verify password during init: %w", err)
	}
	if !ok {
		return fmt.Errorf("init: %w", ErrWrongPassword)
	}

	if _, err := s.GetSystemParameters(ctx); err != nil {
		return fmt.Errorf("read system parameters during init: %w", err)
	}

	return nil
}

// Address returns the device address frames are currently built with.
func (s *Session) Address() uint32 { return s.config.Address }

// Password returns the session's current password mirror.
func (s *Session) Password() uint32 { return s.config.Password }

// SetTimeout updates the transport's read/write deadline.
func (s *Session) SetTimeout(timeout time.Duration) error {
	s.config.Timeout = timeout
	if err := s.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig replaces the session's retry policy, propagating it to the
// transport if it is retry-aware.
func (s *Session) SetRetryConfig(cfg *RetryConfig) {
	s.config.RetryConfig = cfg
	if tr, ok := s.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(cfg)
	}
}

// Transport returns the underlying transport.
func (s *Session) Transport() Transport {
	return s.transport
}

// Close releases the transport. Safe to call once; the session must not be
// used afterward.
func (s *Session) Close() error {
	if s.transport == nil {
		return nil
	}
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// usable reports whether the session may issue another command. After a
// framing error or timeout the transport's byte stream is in an unknown
// state, so the session refuses further commands until Init runs again.
func (s *Session) usable() error {
	if s.poisoned {
		return ErrSessionPoisoned
	}
	return nil
}

// poison marks the session unusable after an unrecoverable transport fault.
func (s *Session) poison() {
	s.poisoned = true
}

// poisonOn flags the session when err is one of the faults that leave the
// byte stream desynchronized. Sensor-level refusals (ProtocolError) do not
// poison: the frame exchange itself completed cleanly.
func (s *Session) poisonOn(err error) {
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, ErrWriteTimeout) ||
		errors.Is(err, ErrBadHeader) || errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnexpectedFrameType) {
		s.poison()
	}
}

// exchange writes one command frame and blocks for its acknowledgement.
func (s *Session) exchange(ctx context.Context, payload []byte) (*frame.Frame, error) {
	reply, err := sendFrameWithRetry(ctx, s.transport, s.config.RetryConfig, s.config.Address, frame.Command, payload)
	if err != nil {
		s.poisonOn(err)
		s.config.Logger.Debug("exchange failed", "err", err)
		return nil, err
	}
	if reply.Type != frame.Ack {
		s.poison()
		return nil, fmt.Errorf("exchange: %w: got %s", ErrUnexpectedFrameType, reply.Type)
	}
	s.config.Logger.Debug("exchange ok", "reply_len", len(reply.Payload))
	return reply, nil
}
