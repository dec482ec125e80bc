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
	"testing"
	"time"

	"github.com/fphost/go-r30x/internal/frame"
)

func TestChecksumMismatchPoisonsSession(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithMaxRetries(1))

	corrupted := ackReply(statusOK)
	corrupted[len(corrupted)-1] ^= 0xFF
	mock.QueueReply(corrupted)

	_, err := session.VerifyPassword(context.Background())
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want ErrChecksumMismatch", err)
	}

	// The poisoned session must refuse further commands without touching
	// the wire.
	before := len(mock.Writes())
	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrSessionPoisoned) {
		t.Fatalf("error = %v, want ErrSessionPoisoned", err)
	}
	if after := len(mock.Writes()); after != before {
		t.Errorf("poisoned session wrote to the transport: %d -> %d writes", before, after)
	}
}

func TestReadTimeoutPoisonsSession(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithMaxRetries(1))
	// No reply queued: the mock reads as a silent sensor.
	_ = mock

	_, err := session.VerifyPassword(context.Background())
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("error = %v, want ErrReadTimeout", err)
	}
	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrSessionPoisoned) {
		t.Errorf("error = %v, want ErrSessionPoisoned", err)
	}
}

func TestInitRecoversPoisonedSession(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithMaxRetries(1))

	_, err := session.VerifyPassword(context.Background())
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	mock.QueueReply(ackReply(statusOK))
	mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))

	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init() after poisoning failed: %v", err)
	}

	mock.QueueReply(ackReply(statusOK))
	if _, err := session.VerifyPassword(context.Background()); err != nil {
		t.Errorf("command after reinit failed: %v", err)
	}
}

func TestInitRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	mock.QueueReply(ackReply(statusWrongPassword))

	if err := session.Init(context.Background()); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Init() error = %v, want ErrWrongPassword", err)
	}
}

func TestInitAppliesConfiguredTimeout(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithTimeout(250*time.Millisecond))
	mock.QueueReply(ackReply(statusOK))
	mock.QueueReply(ackReply(statusOK, testParameterBlock(1000, 2)...))

	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if got := mock.Timeout(); got != 250*time.Millisecond {
		t.Errorf("transport timeout = %v, want 250ms", got)
	}
}

func TestUnexpectedReplyTypePoisons(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithMaxRetries(1))

	data, err := frame.Encode(frame.DefaultAddress, frame.Data, []byte{0x00})
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	mock.QueueReply(data)

	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrUnexpectedFrameType) {
		t.Fatalf("error = %v, want ErrUnexpectedFrameType", err)
	}
	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrSessionPoisoned) {
		t.Errorf("error = %v, want ErrSessionPoisoned", err)
	}
}

func TestEmptyAcknowledgementPoisons(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithMaxRetries(1))

	empty, err := frame.Encode(frame.DefaultAddress, frame.Ack, nil)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	mock.QueueReply(empty)

	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrNoACK) {
		t.Fatalf("error = %v, want ErrNoACK", err)
	}
	if _, err := session.VerifyPassword(context.Background()); !errors.Is(err, ErrSessionPoisoned) {
		t.Errorf("error = %v, want ErrSessionPoisoned", err)
	}
}

func TestProtocolRefusalDoesNotPoison(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t)
	mock.QueueReply(ackReply(statusCommError))

	if _, err := session.VerifyPassword(context.Background()); err == nil {
		t.Fatal("expected a protocol error")
	}

	// A clean frame exchange carrying a refusal leaves the session usable.
	mock.QueueReply(ackReply(statusOK))
	if _, err := session.VerifyPassword(context.Background()); err != nil {
		t.Errorf("session unusable after a sensor refusal: %v", err)
	}
}

func TestCommandRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	session, mock := newTestSession(t, WithRetryBackoff(time.Millisecond))

	corrupted := ackReply(statusOK)
	corrupted[len(corrupted)-1] ^= 0xFF
	mock.QueueReply(corrupted)
	mock.QueueReply(ackReply(statusOK))

	ok, err := session.VerifyPassword(context.Background())
	if err != nil {
		t.Fatalf("VerifyPassword() with one corrupt reply failed: %v", err)
	}
	if !ok {
		t.Error("VerifyPassword() = false after successful retry")
	}
	if got := len(mock.Writes()); got != 2 {
		t.Errorf("writes = %d, want 2 (original + one retry)", got)
	}
}
