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
	"encoding/binary"
	"fmt"
)

// Sensor instruction codes, carried as the first payload byte of every
// command frame.
const (
	cmdVerifyPassword          byte = 0x13
	cmdSetPassword             byte = 0x12
	cmdSetAddress              byte = 0x15
	cmdSetSystemParameter      byte = 0x0E
	cmdGetSystemParameters     byte = 0x0F
	cmdTemplateIndex           byte = 0x1F
	cmdTemplateCount           byte = 0x1D
	cmdReadImage               byte = 0x01
	cmdDownloadImage           byte = 0x0A
	cmdConvertImage            byte = 0x02
	cmdCreateTemplate          byte = 0x05
	cmdStoreTemplate           byte = 0x06
	cmdSearchTemplate          byte = 0x04
	cmdLoadTemplate            byte = 0x07
	cmdDeleteTemplate          byte = 0x0C
	cmdClearDatabase           byte = 0x0D
	cmdGenerateRandomNumber    byte = 0x14
	cmdCompareCharacteristics  byte = 0x03
	cmdUploadCharacteristics   byte = 0x09
	cmdDownloadCharacteristics byte = 0x08
)

// Registers accepted by SetSystemParameter.
const (
	paramBaudRate      byte = 4
	paramSecurityLevel byte = 5
	paramPacketSize    byte = 6
)

// The sensor's two on-chip scratch areas for extracted characteristics.
const (
	CharBuffer1 uint8 = 0x01
	CharBuffer2 uint8 = 0x02
)

// command sends one instruction payload and returns the full ACK payload,
// confirmation code included. Every single-frame operation funnels through
// here; the caller decodes the confirmation code against its own table of
// soft-success values before falling back to statusError.
func (s *Session) command(ctx context.Context, name string, payload []byte) ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reply, err := s.exchange(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(reply.Payload) == 0 {
		s.poison()
		return nil, fmt.Errorf("%s: empty acknowledgement: %w", name, ErrNoACK)
	}

	s.config.Logger.Debug("command acknowledged",
		"command", name, "status", fmt.Sprintf("0x%02X", reply.Payload[0]))

	return reply.Payload, nil
}

// payloadU32 builds the common instruction-plus-big-endian-word payload used
// by the password and address commands.
func payloadU32(instruction byte, v uint32) []byte {
	p := make([]byte, 5)
	p[0] = instruction
	binary.BigEndian.PutUint32(p[1:], v)
	return p
}

func validateCharBuffer(charBuffer uint8) error {
	if charBuffer != CharBuffer1 && charBuffer != CharBuffer2 {
		return fmt.Errorf("%w: character buffer must be 1 or 2, got %d",
			ErrInvalidArgument, charBuffer)
	}
	return nil
}

// VerifyPassword checks the session's configured password against the
// sensor. A wrong password is reported as false, not as an error, so hosts
// can loop over candidate passwords without error plumbing.
func (s *Session) VerifyPassword(ctx context.Context) (bool, error) {
	payload, err := s.command(ctx, "VerifyPassword", payloadU32(cmdVerifyPassword, s.config.Password))
	if err != nil {
		return false, err
	}

	switch payload[0] {
	case statusOK:
		return true, nil
	case statusWrongPassword:
		return false, nil
	default:
		return false, statusError("VerifyPassword", payload[0])
	}
}

// SetPassword rewrites the sensor's password. The session's local mirror is
// updated only after the sensor confirms, so a failed set leaves subsequent
// frames built with the old password.
func (s *Session) SetPassword(ctx context.Context, newPassword uint32) error {
	payload, err := s.command(ctx, "SetPassword", payloadU32(cmdSetPassword, newPassword))
	if err != nil {
		return err
	}

	if payload[0] != statusOK {
		return statusError("SetPassword", payload[0])
	}

	s.config.Password = newPassword
	return nil
}

// SetAddress rewrites the sensor's device address. As with SetPassword, the
// local mirror changes only on a confirmed success.
func (s *Session) SetAddress(ctx context.Context, newAddress uint32) error {
	payload, err := s.command(ctx, "SetAddress", payloadU32(cmdSetAddress, newAddress))
	if err != nil {
		return err
	}

	if payload[0] != statusOK {
		return statusError("SetAddress", payload[0])
	}

	s.config.Address = newAddress
	return nil
}

// SetSystemParameter writes one of the sensor's three settable registers.
// The (parameter, value) pair is validated before anything is sent: baud
// unit 1..12, security level 1..5, packet size code 0..3.
func (s *Session) SetSystemParameter(ctx context.Context, parameter, value uint8) error {
	switch parameter {
	case paramBaudRate:
		if value < 1 || value > 12 {
			return fmt.Errorf("%w: baud rate unit must be 1..12, got %d", ErrInvalidArgument, value)
		}
	case paramSecurityLevel:
		if value < 1 || value > 5 {
			return fmt.Errorf("%w: security level must be 1..5, got %d", ErrInvalidArgument, value)
		}
	case paramPacketSize:
		if value > 3 {
			return fmt.Errorf("%w: packet size code must be 0..3, got %d", ErrInvalidArgument, value)
		}
	default:
		return fmt.Errorf("%w: unknown system parameter %d", ErrInvalidArgument, parameter)
	}

	payload, err := s.command(ctx, "SetSystemParameter",
		[]byte{cmdSetSystemParameter, parameter, value})
	if err != nil {
		return err
	}

	if payload[0] != statusOK {
		return statusError("SetSystemParameter", payload[0])
	}
	return nil
}

// SetBaudRate reconfigures the sensor's serial speed. baudRate must be a
// positive multiple of 9600; the sensor stores it as a 9600-baud unit count.
// The change takes effect on the sensor side only; reopening the transport
// at the new speed is the host's job.
func (s *Session) SetBaudRate(ctx context.Context, baudRate int) error {
	if baudRate <= 0 || baudRate%9600 != 0 {
		return fmt.Errorf("%w: baud rate must be a positive multiple of 9600, got %d",
			ErrInvalidArgument, baudRate)
	}
	return s.SetSystemParameter(ctx, paramBaudRate, uint8(baudRate/9600))
}

// SetSecurityLevel sets the match threshold register (1 = most permissive,
// 5 = strictest).
func (s *Session) SetSecurityLevel(ctx context.Context, level uint8) error {
	return s.SetSystemParameter(ctx, paramSecurityLevel, level)
}

// packetSizes maps the sensor's packet size code (0..3) to bytes per data
// frame.
var packetSizes = [4]int{32, 64, 128, 256}

// SetMaxPacketSize negotiates the data-frame payload bound used by bulk
// transfers. size must be one of 32, 64, 128 or 256.
func (s *Session) SetMaxPacketSize(ctx context.Context, size int) error {
	for code, sz := range packetSizes {
		if sz == size {
			if err := s.SetSystemParameter(ctx, paramPacketSize, uint8(code)); err != nil {
				return err
			}
			s.maxPacketSize = size
			return nil
		}
	}
	return fmt.Errorf("%w: packet size must be one of 32, 64, 128, 256, got %d",
		ErrInvalidArgument, size)
}

// GenerateRandomNumber asks the sensor's hardware RNG for a 32-bit value.
func (s *Session) GenerateRandomNumber(ctx context.Context) (uint32, error) {
	payload, err := s.command(ctx, "GenerateRandomNumber", []byte{cmdGenerateRandomNumber})
	if err != nil {
		return 0, err
	}

	if payload[0] != statusOK {
		return 0, statusError("GenerateRandomNumber", payload[0])
	}
	if len(payload) < 5 {
		return 0, fmt.Errorf("GenerateRandomNumber: truncated acknowledgement: %w", ErrNoACK)
	}
	return binary.BigEndian.Uint32(payload[1:5]), nil
}
