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
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestGetTemplateIndexBitOrder(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	// Bits unpack LSB-first: 0x01 marks slot 0, 0x80 marks slot 15.
	mock.QueueReply(ackReply(statusOK, 0x01, 0x80))

	index, err := session.GetTemplateIndex(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetTemplateIndex() failed: %v", err)
	}

	if len(index) != 16 {
		t.Fatalf("index length = %d, want 16", len(index))
	}
	for slot, want := range map[int]bool{0: true, 1: false, 7: false, 8: false, 15: true} {
		if index[slot] != want {
			t.Errorf("index[%d] = %v, want %v", slot, index[slot], want)
		}
	}
}

func TestGetTemplateIndexPageValidation(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	if _, err := session.GetTemplateIndex(context.Background(), 4); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("GetTemplateIndex(4) error = %v, want ErrInvalidArgument", err)
	}
	if n := len(mock.Writes()); n != 0 {
		t.Errorf("invalid page reached the wire: %d writes", n)
	}
}

func TestGetTemplateCount(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	mock.QueueReply(ackReply(statusOK, 0x00, 0x2A))

	count, err := session.GetTemplateCount(context.Background())
	if err != nil {
		t.Fatalf("GetTemplateCount() failed: %v", err)
	}
	if count != 42 {
		t.Errorf("GetTemplateCount() = %d, want 42", count)
	}
}

func TestStoreTemplateAutoPosition(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)

	// Page 0 occupancy: slot 0 used, slot 1 free.
	bitmap := make([]byte, 32)
	bitmap[0] = 0x01
	mock.QueueReply(ackReply(statusOK, bitmap...))
	// Capacity lookup before bounds-checking the chosen slot.
	mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))
	// The store itself.
	mock.QueueReply(ackReply(statusOK))

	slot, err := session.StoreTemplate(context.Background(), AutoPosition, CharBuffer1)
	if err != nil {
		t.Fatalf("StoreTemplate(AutoPosition) failed: %v", err)
	}
	if slot != 1 {
		t.Errorf("slot = %d, want 1 (first free)", slot)
	}

	wire := mock.LastWrite()
	payload := wire[9 : len(wire)-2]
	want := []byte{cmdStoreTemplate, CharBuffer1, 0x00, 0x01}
	if !bytes.Equal(payload, want) {
		t.Errorf("store payload = % X, want % X", payload, want)
	}
}

func TestStoreTemplateScansAcrossPages(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)

	full := bytes.Repeat([]byte{0xFF}, 32)
	mock.QueueReply(ackReply(statusOK, full...))
	mock.QueueReply(ackReply(statusOK, full...))
	// Page 2: slot 0 used, slot 1 free.
	partial := make([]byte, 32)
	copy(partial, full)
	partial[0] = 0x01
	mock.QueueReply(ackReply(statusOK, partial...))
	mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))
	mock.QueueReply(ackReply(statusOK))

	slot, err := session.StoreTemplate(context.Background(), AutoPosition, CharBuffer1)
	if err != nil {
		t.Fatalf("StoreTemplate(AutoPosition) failed: %v", err)
	}
	if want := uint16(2*256 + 1); slot != want {
		t.Errorf("slot = %d, want %d (first free slot on page 2)", slot, want)
	}
}

func TestStoreTemplateFullLibrary(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)

	full := bytes.Repeat([]byte{0xFF}, 32)
	for page := 0; page < 4; page++ {
		mock.QueueReply(ackReply(statusOK, full...))
	}

	if _, err := session.StoreTemplate(context.Background(), AutoPosition, CharBuffer1); !errors.Is(err, ErrStorageFull) {
		t.Errorf("StoreTemplate() on full library error = %v, want ErrStorageFull", err)
	}
}

func TestStoreTemplatePositionBounds(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))

	if _, err := session.StoreTemplate(context.Background(), 1000, CharBuffer1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StoreTemplate(1000) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSearchTemplateOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("match found", func(t *testing.T) {
		t.Parallel()
		session, mock := newTestSession(t)
		mock.QueueReply(ackReply(statusOK, 0x00, 0x03, 0x00, 0xFA))

		position, score, err := session.SearchTemplate(context.Background(), CharBuffer1, 0, 10)
		if err != nil {
			t.Fatalf("SearchTemplate() failed: %v", err)
		}
		if position != 3 || score != 250 {
			t.Errorf("SearchTemplate() = (%d, %d), want (3, 250)", position, score)
		}
	})

	t.Run("no match is not an error", func(t *testing.T) {
		t.Parallel()
		session, mock := newTestSession(t)
		mock.QueueReply(ackReply(statusNoTemplateFound))

		position, score, err := session.SearchTemplate(context.Background(), CharBuffer1, 0, 10)
		if err != nil {
			t.Fatalf("SearchTemplate() failed: %v", err)
		}
		if position != -1 || score != -1 {
			t.Errorf("SearchTemplate() = (%d, %d), want (-1, -1)", position, score)
		}
	})

	t.Run("invalid buffer", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t)
		if _, _, err := session.SearchTemplate(context.Background(), 3, 0, 10); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SearchTemplate(buffer 3) error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestDeleteTemplate(t *testing.T) {
	t.Parallel()

	t.Run("sensor refusal reported as false", func(t *testing.T) {
		t.Parallel()
		session, mock := newTestSession(t)
		mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))
		mock.QueueReply(ackReply(statusDeleteFail))

		ok, err := session.DeleteTemplate(context.Background(), 5, 1)
		if err != nil {
			t.Fatalf("DeleteTemplate() failed: %v", err)
		}
		if ok {
			t.Error("DeleteTemplate() = true on a sensor refusal")
		}
	})

	t.Run("count past capacity", func(t *testing.T) {
		t.Parallel()
		session, mock := newTestSession(t)
		mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))

		if _, err := session.DeleteTemplate(context.Background(), 999, 2); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("DeleteTemplate(999, 2) error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestClearDatabase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status byte
		want   bool
	}{
		{"cleared", statusOK, true},
		{"refused", statusClearFail, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			session, mock := newTestSession(t)
			mock.QueueReply(ackReply(tt.status))

			ok, err := session.ClearDatabase(context.Background())
			if err != nil {
				t.Fatalf("ClearDatabase() failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("ClearDatabase() = %v, want %v", ok, tt.want)
			}
		})
	}
}
