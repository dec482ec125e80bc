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

// Package uart implements the serial transport for R30x sensors using
// go.bug.st/serial. The sensors ship talking 57600 baud 8N1.
package uart

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	r30x "github.com/fphost/go-r30x"
)

// DefaultBaudRate is the factory serial speed of R30x-family sensors.
const DefaultBaudRate = 57600

// Transport is a serial-port implementation of r30x.Transport.
type Transport struct {
	port     serial.Port
	portName string
	baudRate int
	timeout  time.Duration
	readBuf  [64]byte
	buffered []byte
}

// New opens portName at the sensor's factory baud rate.
func New(portName string) (*Transport, error) {
	return NewWithBaudRate(portName, DefaultBaudRate)
}

// NewWithBaudRate opens portName at an explicit speed, for sensors whose
// baud register was changed with SetBaudRate.
func NewWithBaudRate(portName string, baudRate int) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, r30x.NewTransportError("open", portName, err, r30x.ErrorTypePermanent)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		baudRate: baudRate,
		timeout:  time.Second,
	}

	if err := port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return nil, r30x.NewTransportError("set timeout", portName, err, r30x.ErrorTypePermanent)
	}

	// Whatever the sensor sent before we were listening is noise to the
	// next exchange.
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, r30x.NewTransportError("flush input", portName, err, r30x.ErrorTypePermanent)
	}

	return t, nil
}

// Write sends p in full. Serial writes block until the driver accepts the
// bytes, so a short write without an error is treated as a fault.
func (t *Transport) Write(p []byte) error {
	if t.port == nil {
		return r30x.NewTransportError("write", t.portName, errPortClosed, r30x.ErrorTypePermanent)
	}

	n, err := t.port.Write(p)
	if err != nil {
		return &r30x.TransportError{
			Err:       fmt.Errorf("%w: %w", r30x.ErrWriteTimeout, err),
			Op:        "write",
			Port:      t.portName,
			Type:      r30x.ErrorTypeTimeout,
			Retryable: true,
		}
	}
	if n != len(p) {
		return &r30x.TransportError{
			Err:       fmt.Errorf("%w: short write: %d of %d bytes", r30x.ErrWriteTimeout, n, len(p)),
			Op:        "write",
			Port:      t.portName,
			Type:      r30x.ErrorTypeTimeout,
			Retryable: true,
		}
	}
	return nil
}

// ReadByte returns one received byte. Reads are buffered: the port is asked
// for up to 64 bytes at a time and subsequent calls drain the buffer, which
// matters at 57600 baud where syscall-per-byte reads cannot keep up with a
// bulk image transfer. go.bug.st/serial signals an expired read timeout as a
// zero-length read, mapped here to ErrReadTimeout.
func (t *Transport) ReadByte() (byte, error) {
	if len(t.buffered) > 0 {
		b := t.buffered[0]
		t.buffered = t.buffered[1:]
		return b, nil
	}

	if t.port == nil {
		return 0, r30x.NewTransportError("read", t.portName, errPortClosed, r30x.ErrorTypePermanent)
	}

	n, err := t.port.Read(t.readBuf[:])
	if err != nil {
		return 0, r30x.NewTransportError("read", t.portName, err, r30x.ErrorTypeTransient)
	}
	if n == 0 {
		return 0, r30x.NewTimeoutError("read", t.portName)
	}

	t.buffered = t.readBuf[1:n]
	return t.readBuf[0], nil
}

// SetTimeout sets the read timeout applied to subsequent reads.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if t.port == nil {
		return r30x.NewTransportError("set timeout", t.portName, errPortClosed, r30x.ErrorTypePermanent)
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return r30x.NewTransportError("set timeout", t.portName, err, r30x.ErrorTypePermanent)
	}
	t.timeout = timeout
	return nil
}

// Close releases the port. Safe to call more than once.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	port := t.port
	t.port = nil
	t.buffered = nil
	if err := port.Close(); err != nil {
		return r30x.NewTransportError("close", t.portName, err, r30x.ErrorTypePermanent)
	}
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	return t.port != nil
}

// Type identifies this transport as UART-backed.
func (*Transport) Type() r30x.TransportType {
	return r30x.TransportUART
}

// PortName returns the device path the transport was opened on.
func (t *Transport) PortName() string {
	return t.portName
}

// BaudRate returns the speed the port was opened at.
func (t *Transport) BaudRate() int {
	return t.baudRate
}

var errPortClosed = errors.New("port is closed")
