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

package frame

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneByteReader feeds buf back one byte per ReadByte call, so Decode can
// never assume a full frame arrives in a single read.
type oneByteReader struct {
	buf []byte
	pos int
}

func (r *oneByteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		typ     Type
		payload []byte
	}{
		{"empty command", Command, []byte{}},
		{"short command", Command, []byte{0x01, 0x05}},
		{"ack with status", Ack, []byte{0x00}},
		{"ack with error status", Ack, []byte{0x08}},
		{"data chunk", Data, make([]byte, 128)},
		{"end data chunk", EndData, make([]byte, 32)},
		{"max payload", Data, make([]byte, MaxPayloadSize)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			encoded, err := Encode(DefaultAddress, tt.typ, tt.payload)
			require.NoError(t, err)

			decoded, err := Decode(&oneByteReader{buf: encoded})
			require.NoError(t, err)
			assert.Equal(t, tt.typ, decoded.Type)
			assert.Equal(t, tt.payload, decoded.Payload)
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	_, err := Encode(DefaultAddress, Data, make([]byte, MaxPayloadSize+1))
	require.Error(t, err)
}

func TestDecodeRejectsBadStartMarker(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(DefaultAddress, Command, []byte{0x01})
	require.NoError(t, err)
	encoded[0] = 0x00

	_, err = Decode(&oneByteReader{buf: encoded})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestDecodeRejectsCorruptedPayload(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(DefaultAddress, Command, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	encoded[HeaderSize] ^= 0xFF

	_, err = Decode(&oneByteReader{buf: encoded})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadChecksum))
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(DefaultAddress, Command, []byte{0x01})
	require.NoError(t, err)
	encoded[len(encoded)-1] ^= 0xFF

	_, err = Decode(&oneByteReader{buf: encoded})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadChecksum))
}

func TestDecodeSurvivesShortReads(t *testing.T) {
	t.Parallel()
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	encoded, err := Encode(DefaultAddress, Data, payload)
	require.NoError(t, err)

	decoded, err := Decode(&oneByteReader{buf: encoded})
	require.NoError(t, err)
	assert.Equal(t, Data, decoded.Type)
	assert.Equal(t, payload, decoded.Payload)
}

func TestDecodeTruncatedFrameFails(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(DefaultAddress, Command, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)

	_, err = Decode(&oneByteReader{buf: encoded[:HeaderSize+1]})
	require.Error(t, err)
}

func TestBufferPoolRoundTrip(t *testing.T) {
	t.Parallel()
	buf := GetBuffer(64)
	assert.Len(t, buf, 64)
	buf[0] = 0xFF
	PutBuffer(buf)

	// a reused buffer must still honor the requested length
	buf2 := GetBuffer(32)
	assert.Len(t, buf2, 32)
}

func TestTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CMD", Command.String())
	assert.Equal(t, "ACK", Ack.String())
	assert.Equal(t, "DATA", Data.String())
	assert.Equal(t, "END_DATA", EndData.String())
	assert.Equal(t, "UNKNOWN", Type(0xFF).String())
}

func TestTypeValid(t *testing.T) {
	t.Parallel()
	assert.True(t, Command.Valid())
	assert.True(t, Ack.Valid())
	assert.True(t, Data.Valid())
	assert.True(t, EndData.Valid())
	assert.False(t, Type(0xFF).Valid())
}
