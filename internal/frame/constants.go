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

// Package frame provides wire-frame encoding, decoding, and checksum
// arithmetic for the R30x/FPM10A fingerprint sensor protocol.
package frame

// Type is the one-byte frame kind carried in every frame header.
type Type byte

// Frame kinds, per the sensor's wire protocol.
const (
	Command Type = 0x01
	Ack     Type = 0x07
	Data    Type = 0x02
	EndData Type = 0x08
)

// Start marker and default session values.
const (
	StartCode1 = 0xEF
	StartCode2 = 0x01

	DefaultAddress  uint32 = 0xFFFFFFFF
	DefaultPassword uint32 = 0x00000000
)

// HeaderSize is the number of bytes before the payload: start(2) + address(4) + type(1) + length(2).
const HeaderSize = 9

// ChecksumSize is the trailing checksum size in bytes.
const ChecksumSize = 2

// MinLength is the smallest legal value of the on-wire length field (checksum only, no payload).
const MinLength = ChecksumSize

// MaxPayloadSize bounds a single frame's payload so length (payload+2) fits a uint16.
const MaxPayloadSize = 0xFFFF - ChecksumSize

// Valid reports whether t is one of the four defined frame kinds.
func (t Type) Valid() bool {
	switch t {
	case Command, Ack, Data, EndData:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case Command:
		return "CMD"
	case Ack:
		return "ACK"
	case Data:
		return "DATA"
	case EndData:
		return "END_DATA"
	default:
		return "UNKNOWN"
	}
}
