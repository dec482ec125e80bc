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
)

// Transport is the injected byte-oriented serial channel the session speaks
// frames over. It never frames or interprets bytes itself; that is the frame
// codec's job, layered on top. Implementations MUST NOT reorder bytes, but
// MAY discard stale buffered bytes on their own schedule (e.g. on open).
type Transport interface {
	// Write sends p in full or fails; a write not confirmed flushed within
	// the transport's configured timeout returns an error satisfying
	// errors.Is(err, ErrWriteTimeout).
	Write(p []byte) error

	// ReadByte blocks for at most the transport's configured timeout and
	// returns one byte, or an error satisfying errors.Is(err,
	// ErrReadTimeout) if none arrived in time.
	ReadByte() (byte, error)

	// SetTimeout sets the read/write timeout for subsequent operations.
	SetTimeout(timeout time.Duration) error

	// Close releases the underlying port.
	Close() error

	// IsConnected reports whether the transport believes the port is open.
	IsConnected() bool

	// Type identifies the transport's concrete backend.
	Type() TransportType
}

// TransportType identifies which concrete backend a Transport uses.
type TransportType string

const (
	// TransportUART represents a real serial/UART backend.
	TransportUART TransportType = "uart"
	// TransportMock represents an in-memory transport used by tests.
	TransportMock TransportType = "mock"
)

// byteReaderAdapter lets frame.Decode pull from a Transport without the
// frame package needing to import this one.
type byteReaderAdapter struct {
	t Transport
}

func (a byteReaderAdapter) ReadByte() (byte, error) {
	return a.t.ReadByte()
}

// sendFrame writes one frame and blocks for exactly one reply frame, the
// single chokepoint every command in the command layer funnels through.
func sendFrame(t Transport, addr uint32, typ frame.Type, payload []byte) (*frame.Frame, error) {
	encoded, err := frame.Encode(addr, typ, payload)
	if err != nil {
		return nil, NewDataTooLargeError("write", "")
	}

	if err := t.Write(encoded); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	reply, err := frame.Decode(byteReaderAdapter{t})
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", wrapDecodeError(err))
	}
	return reply, nil
}

// wrapDecodeError lifts the frame package's decode failures into this
// package's sentinel errors so callers can errors.Is against one vocabulary.
func wrapDecodeError(err error) error {
	switch {
	case errors.Is(err, frame.ErrBadHeader):
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	case errors.Is(err, frame.ErrBadChecksum):
		return fmt.Errorf("%w: %v", ErrChecksumMismatch, err)
	default:
		return err
	}
}

// sendFrameWithRetry is sendFrame wrapped in the session's retry policy, the
// single chokepoint for transient recovery.
func sendFrameWithRetry(ctx context.Context, t Transport, cfg *RetryConfig, addr uint32, typ frame.Type, payload []byte) (*frame.Frame, error) {
	return withRetry(ctx, cfg, func() (*frame.Frame, bool, error) {
		reply, err := sendFrame(t, addr, typ, payload)
		if err != nil {
			return nil, IsRetryable(err), err
		}
		return reply, false, nil
	})
}

// TransportWithRetry wraps any Transport so every Write/ReadByte pair used
// by sendFrame benefits from the session's retry policy.
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry wraps transport with cfg, defaulting to
// DefaultRetryConfig when cfg is nil.
func NewTransportWithRetry(transport Transport, cfg *RetryConfig) *TransportWithRetry {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &TransportWithRetry{transport: transport, config: cfg}
}

// Write retries a failed write according to the wrapper's retry policy,
// covering transient I/O blips (e.g. a serial driver returning EAGAIN)
// distinct from the frame-level retries in sendFrameWithRetry, which resend
// a whole command after a bad reply.
func (t *TransportWithRetry) Write(p []byte) error {
	_, err := withRetry(context.Background(), t.config, func() (struct{}, bool, error) {
		err := t.transport.Write(p)
		return struct{}{}, IsRetryable(err), err
	})
	return err
}

// ReadByte retries a failed read according to the wrapper's retry policy.
func (t *TransportWithRetry) ReadByte() (byte, error) {
	return withRetry(context.Background(), t.config, func() (byte, bool, error) {
		b, err := t.transport.ReadByte()
		return b, IsRetryable(err), err
	})
}

// Close closes the underlying transport.
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("close underlying transport: %w", err)
	}
	return nil
}

// SetTimeout sets the timeout on the underlying transport.
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	if err := t.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("set timeout on underlying transport: %w", err)
	}
	return nil
}

// IsConnected reports the underlying transport's connection state.
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type reports the underlying transport's type.
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// SetRetryConfig updates the retry policy in place.
func (t *TransportWithRetry) SetRetryConfig(cfg *RetryConfig) {
	t.config = cfg
}
