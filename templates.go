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

// templatePages is the number of occupancy bitmaps the sensor's library is
// split into.
const templatePages = 4

// AutoPosition selects the first free slot when passed to StoreTemplate.
const AutoPosition = -1

// GetTemplateIndex returns one page of the sensor's occupancy bitmap as a
// flat bool slice, true meaning the slot holds a template. Bits unpack
// LSB-first within each byte, so slot page*len(index)+8*i+j maps to bit j of
// byte i.
func (s *Session) GetTemplateIndex(ctx context.Context, page uint8) ([]bool, error) {
	if page >= templatePages {
		return nil, fmt.Errorf("%w: index page must be 0..3, got %d", ErrInvalidArgument, page)
	}

	payload, err := s.command(ctx, "GetTemplateIndex", []byte{cmdTemplateIndex, page})
	if err != nil {
		return nil, err
	}

	if payload[0] != statusOK {
		return nil, statusError("GetTemplateIndex", payload[0])
	}

	bitmap := payload[1:]
	index := make([]bool, len(bitmap)*8)
	for i, b := range bitmap {
		for j := 0; j < 8; j++ {
			index[i*8+j] = b&(1<<j) != 0
		}
	}
	return index, nil
}

// GetTemplateCount returns the number of templates stored on the sensor.
func (s *Session) GetTemplateCount(ctx context.Context) (uint16, error) {
	payload, err := s.command(ctx, "GetTemplateCount", []byte{cmdTemplateCount})
	if err != nil {
		return 0, err
	}

	if payload[0] != statusOK {
		return 0, statusError("GetTemplateCount", payload[0])
	}
	if len(payload) < 3 {
		return 0, fmt.Errorf("GetTemplateCount: truncated acknowledgement: %w", ErrNoACK)
	}
	return binary.BigEndian.Uint16(payload[1:3]), nil
}

// findFreeSlot scans the four index pages in order and returns the global
// slot number of the first unoccupied position.
func (s *Session) findFreeSlot(ctx context.Context) (int, error) {
	for page := uint8(0); page < templatePages; page++ {
		index, err := s.GetTemplateIndex(ctx, page)
		if err != nil {
			return 0, err
		}
		for i, used := range index {
			if !used {
				return len(index)*int(page) + i, nil
			}
		}
	}
	return 0, ErrStorageFull
}

// StoreTemplate writes the template held in charBuffer to the given slot and
// returns the slot actually used. Pass AutoPosition to have the driver scan
// the occupancy index for the first free slot.
func (s *Session) StoreTemplate(ctx context.Context, position int, charBuffer uint8) (uint16, error) {
	if err := validateCharBuffer(charBuffer); err != nil {
		return 0, err
	}

	if position == AutoPosition {
		slot, err := s.findFreeSlot(ctx)
		if err != nil {
			return 0, err
		}
		position = slot
	}

	capacity, err := s.storageCapacity(ctx)
	if err != nil {
		return 0, err
	}
	if position < 0 || position >= capacity {
		return 0, fmt.Errorf("%w: position %d outside storage capacity %d",
			ErrInvalidArgument, position, capacity)
	}

	payload := []byte{cmdStoreTemplate, charBuffer, byte(position >> 8), byte(position)}
	reply, err := s.command(ctx, "StoreTemplate", payload)
	if err != nil {
		return 0, err
	}

	if reply[0] != statusOK {
		return 0, statusError("StoreTemplate", reply[0])
	}
	return uint16(position), nil
}

// SearchTemplate matches the characteristics in charBuffer against count
// stored templates beginning at start, returning the matched slot and the
// match score. No match is not an error: both values come back as -1, so
// control loops branch on the position instead of unwrapping errors. If
// count <= 0 the whole library is searched.
func (s *Session) SearchTemplate(ctx context.Context, charBuffer uint8, start uint16, count int) (position, score int, err error) {
	if err := validateCharBuffer(charBuffer); err != nil {
		return 0, 0, err
	}

	if count <= 0 {
		capacity, err := s.storageCapacity(ctx)
		if err != nil {
			return 0, 0, err
		}
		count = capacity
	}

	payload := []byte{
		cmdSearchTemplate, charBuffer,
		byte(start >> 8), byte(start),
		byte(count >> 8), byte(count),
	}
	reply, err := s.command(ctx, "SearchTemplate", payload)
	if err != nil {
		return 0, 0, err
	}

	switch reply[0] {
	case statusOK:
		if len(reply) < 5 {
			return 0, 0, fmt.Errorf("SearchTemplate: truncated acknowledgement: %w", ErrNoACK)
		}
		position = int(binary.BigEndian.Uint16(reply[1:3]))
		score = int(binary.BigEndian.Uint16(reply[3:5]))
		return position, score, nil
	case statusNoTemplateFound:
		return -1, -1, nil
	default:
		return 0, 0, statusError("SearchTemplate", reply[0])
	}
}

// LoadTemplate reads the template at position into charBuffer.
func (s *Session) LoadTemplate(ctx context.Context, position uint16, charBuffer uint8) error {
	if err := validateCharBuffer(charBuffer); err != nil {
		return err
	}

	capacity, err := s.storageCapacity(ctx)
	if err != nil {
		return err
	}
	if int(position) >= capacity {
		return fmt.Errorf("%w: position %d outside storage capacity %d",
			ErrInvalidArgument, position, capacity)
	}

	payload := []byte{cmdLoadTemplate, charBuffer, byte(position >> 8), byte(position)}
	reply, err := s.command(ctx, "LoadTemplate", payload)
	if err != nil {
		return err
	}

	if reply[0] != statusOK {
		return statusError("LoadTemplate", reply[0])
	}
	return nil
}

// DeleteTemplate removes count consecutive templates beginning at position.
// A sensor-side delete failure is reported as false rather than an error.
func (s *Session) DeleteTemplate(ctx context.Context, position, count uint16) (bool, error) {
	capacity, err := s.storageCapacity(ctx)
	if err != nil {
		return false, err
	}
	if int(position) >= capacity {
		return false, fmt.Errorf("%w: position %d outside storage capacity %d",
			ErrInvalidArgument, position, capacity)
	}
	if int(count) > capacity-int(position) {
		return false, fmt.Errorf("%w: count %d exceeds remaining capacity after position %d",
			ErrInvalidArgument, count, position)
	}

	payload := []byte{
		cmdDeleteTemplate,
		byte(position >> 8), byte(position),
		byte(count >> 8), byte(count),
	}
	reply, err := s.command(ctx, "DeleteTemplate", payload)
	if err != nil {
		return false, err
	}

	switch reply[0] {
	case statusOK:
		return true, nil
	case statusDeleteFail:
		return false, nil
	default:
		return false, statusError("DeleteTemplate", reply[0])
	}
}

// ClearDatabase deletes every template on the sensor. A sensor-side clear
// failure is reported as false rather than an error.
func (s *Session) ClearDatabase(ctx context.Context) (bool, error) {
	reply, err := s.command(ctx, "ClearDatabase", []byte{cmdClearDatabase})
	if err != nil {
		return false, err
	}

	switch reply[0] {
	case statusOK:
		return true, nil
	case statusClearFail:
		return false, nil
	default:
		return false, statusError("ClearDatabase", reply[0])
	}
}
