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

// parameterBlockSize is the fixed size of the sensor's system parameter
// record.
const parameterBlockSize = 16

// Parameters is the decoded form of the sensor's 16-byte system parameter
// block.
type Parameters struct {
	// StatusRegister is the sensor's internal status word.
	StatusRegister uint16
	// SystemID identifies the sensor model family.
	SystemID uint16
	// Capacity is the number of template slots in the on-sensor library.
	Capacity uint16
	// SecurityLevel is the configured match threshold, 1..5.
	SecurityLevel uint16
	// DeviceAddress is the 32-bit address the sensor answers to.
	DeviceAddress uint32
	// PacketSizeCode selects the bulk data frame payload bound: 0..3 for
	// 32, 64, 128, 256 bytes.
	PacketSizeCode uint16
	// BaudUnit is the serial speed divided by 9600.
	BaudUnit uint16
}

// MaxPacketSize returns the bulk transfer payload bound in bytes. An
// out-of-range code is a hard failure: the sensor's own record is the only
// source of truth for this value, and chunking against a guessed size would
// corrupt every bulk transfer afterward.
func (p *Parameters) MaxPacketSize() (int, error) {
	if int(p.PacketSizeCode) >= len(packetSizes) {
		return 0, fmt.Errorf("%w: packet size code %d out of range",
			ErrInvalidArgument, p.PacketSizeCode)
	}
	return packetSizes[p.PacketSizeCode], nil
}

// BaudRate returns the configured serial speed in bits per second.
func (p *Parameters) BaudRate() int {
	return int(p.BaudUnit) * 9600
}

func parseParameters(block []byte) (*Parameters, error) {
	if len(block) < parameterBlockSize {
		return nil, fmt.Errorf("%w: parameter block truncated to %d bytes",
			ErrInvalidArgument, len(block))
	}
	return &Parameters{
		StatusRegister: binary.BigEndian.Uint16(block[0:2]),
		SystemID:       binary.BigEndian.Uint16(block[2:4]),
		Capacity:       binary.BigEndian.Uint16(block[4:6]),
		SecurityLevel:  binary.BigEndian.Uint16(block[6:8]),
		DeviceAddress:  binary.BigEndian.Uint32(block[8:12]),
		PacketSizeCode: binary.BigEndian.Uint16(block[12:14]),
		BaudUnit:       binary.BigEndian.Uint16(block[14:16]),
	}, nil
}

// GetSystemParameters reads and decodes the sensor's parameter block, and
// refreshes the session's cached capacity and negotiated packet size.
func (s *Session) GetSystemParameters(ctx context.Context) (*Parameters, error) {
	payload, err := s.command(ctx, "GetSystemParameters", []byte{cmdGetSystemParameters})
	if err != nil {
		return nil, err
	}

	if payload[0] != statusOK {
		return nil, statusError("GetSystemParameters", payload[0])
	}

	params, err := parseParameters(payload[1:])
	if err != nil {
		return nil, fmt.Errorf("GetSystemParameters: %w", err)
	}

	s.capacity = int(params.Capacity)
	if size, err := params.MaxPacketSize(); err == nil {
		s.maxPacketSize = size
	} else {
		return nil, fmt.Errorf("GetSystemParameters: %w", err)
	}

	return params, nil
}

// GetStorageCapacity returns the number of template slots on the sensor.
func (s *Session) GetStorageCapacity(ctx context.Context) (uint16, error) {
	params, err := s.GetSystemParameters(ctx)
	if err != nil {
		return 0, err
	}
	return params.Capacity, nil
}

// GetSecurityLevel returns the sensor's configured match threshold.
func (s *Session) GetSecurityLevel(ctx context.Context) (uint16, error) {
	params, err := s.GetSystemParameters(ctx)
	if err != nil {
		return 0, err
	}
	return params.SecurityLevel, nil
}

// GetMaxPacketSize returns the bulk transfer payload bound in bytes.
func (s *Session) GetMaxPacketSize(ctx context.Context) (int, error) {
	params, err := s.GetSystemParameters(ctx)
	if err != nil {
		return 0, err
	}
	return params.MaxPacketSize()
}

// GetBaudRate returns the sensor's configured serial speed in bits per
// second.
func (s *Session) GetBaudRate(ctx context.Context) (int, error) {
	params, err := s.GetSystemParameters(ctx)
	if err != nil {
		return 0, err
	}
	return params.BaudRate(), nil
}

// storageCapacity returns the cached capacity, querying the sensor once if
// the cache is cold.
func (s *Session) storageCapacity(ctx context.Context) (int, error) {
	if s.capacity > 0 {
		return s.capacity, nil
	}
	capacity, err := s.GetStorageCapacity(ctx)
	if err != nil {
		return 0, err
	}
	return int(capacity), nil
}

// negotiatedPacketSize returns the cached bulk frame bound, querying the
// sensor once if the cache is cold.
func (s *Session) negotiatedPacketSize(ctx context.Context) (int, error) {
	if s.maxPacketSize > 0 {
		return s.maxPacketSize, nil
	}
	return s.GetMaxPacketSize(ctx)
}
