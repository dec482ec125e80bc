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

	"github.com/fphost/go-r30x/internal/frame"
)

// receiveBulk drains the multi-frame data stream that follows a successful
// initiating acknowledgement. Only DATA and END_DATA frames are legal in
// this phase; anything else desynchronizes the stream and poisons the
// session. Payloads are concatenated in arrival order and returned once the
// END_DATA frame is seen.
func (s *Session) receiveBulk(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	for {
		if err := ctx.Err(); err != nil {
			s.poison()
			return nil, fmt.Errorf("%s: bulk receive cancelled: %w", name, err)
		}

		f, err := frame.Decode(byteReaderAdapter{s.transport})
		if err != nil {
			wrapped := wrapDecodeError(err)
			s.poisonOn(wrapped)
			return nil, fmt.Errorf("%s: bulk receive: %w", name, wrapped)
		}

		switch f.Type {
		case frame.Data:
			data = append(data, f.Payload...)
		case frame.EndData:
			data = append(data, f.Payload...)
			s.config.Logger.Debug("bulk receive complete", "command", name, "bytes", len(data))
			return data, nil
		default:
			s.poison()
			return nil, fmt.Errorf("%s: bulk receive: %w: got %s",
				name, ErrUnexpectedFrameType, f.Type)
		}
	}
}

// sendBulk fragments data into DATA frames of at most maxPacket bytes each,
// closing the stream with an END_DATA frame carrying the final chunk. A
// payload that fits a single frame goes out as one END_DATA frame. The
// sensor does not acknowledge individual data frames, so this is a pure
// write sequence.
func (s *Session) sendBulk(ctx context.Context, name string, data []byte, maxPacket int) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: %w: empty bulk payload", name, ErrInvalidArgument)
	}
	if maxPacket <= 0 {
		return fmt.Errorf("%s: %w: packet size %d", name, ErrInvalidArgument, maxPacket)
	}

	for from := 0; from < len(data); from += maxPacket {
		if err := ctx.Err(); err != nil {
			s.poison()
			return fmt.Errorf("%s: bulk send cancelled: %w", name, err)
		}

		to := from + maxPacket
		typ := frame.Data
		if to >= len(data) {
			to = len(data)
			typ = frame.EndData
		}

		if err := s.writeFrame(typ, data[from:to]); err != nil {
			s.poisonOn(err)
			return fmt.Errorf("%s: bulk send: %w", name, err)
		}
	}

	s.config.Logger.Debug("bulk send complete", "command", name, "bytes", len(data))
	return nil
}

// writeFrame encodes and writes one frame without waiting for a reply.
func (s *Session) writeFrame(typ frame.Type, payload []byte) error {
	encoded, err := frame.Encode(s.config.Address, typ, payload)
	if err != nil {
		return NewDataTooLargeError("write", "")
	}
	if err := s.transport.Write(encoded); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
