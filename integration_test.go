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

package r30x_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	r30x "github.com/fphost/go-r30x"
	"github.com/fphost/go-r30x/internal/virtualsensor"
)

// fastWait keeps the finger-polling loops tight enough for tests.
func fastWait() *r30x.WaitConfig {
	return &r30x.WaitConfig{Interval: 2 * time.Millisecond, Timeout: 5 * time.Second}
}

func newVirtualSession(t *testing.T) (*r30x.Session, *virtualsensor.Sensor) {
	t.Helper()
	sensor := virtualsensor.New()
	session, err := r30x.New(sensor)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return session, sensor
}

func TestEnrollIdentifyVerifyWorkflow(t *testing.T) {
	t.Parallel()

	session, sensor := newVirtualSession(t)
	ctx := context.Background()

	finger := virtualsensor.GradientImage()
	sensor.SetFingerImage(finger)

	// Lift the finger once the first capture is in, then press the same
	// finger again for the second capture.
	go func() {
		time.Sleep(25 * time.Millisecond)
		sensor.RemoveFinger()
		time.Sleep(25 * time.Millisecond)
		sensor.SetFingerImage(finger)
	}()

	var prompts []int
	slot, err := session.EnrollWithConfig(ctx, r30x.AutoPosition, &r30x.EnrollConfig{
		Wait:     fastWait(),
		OnPrompt: func(capture int) { prompts = append(prompts, capture) },
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if slot != 0 {
		t.Errorf("enrolled into slot %d, want 0 (empty library)", slot)
	}
	if len(prompts) != 2 || prompts[0] != 1 || prompts[1] != 2 {
		t.Errorf("prompts = %v, want [1 2]", prompts)
	}
	if got := sensor.TemplateCount(); got != 1 {
		t.Fatalf("sensor holds %d templates, want 1", got)
	}

	// The same finger identifies against the stored template.
	position, score, err := session.IdentifyWithConfig(ctx, fastWait())
	if err != nil {
		t.Fatalf("Identify() failed: %v", err)
	}
	if position != int(slot) {
		t.Errorf("Identify() position = %d, want %d", position, slot)
	}
	if score <= 0 {
		t.Errorf("Identify() score = %d, want > 0", score)
	}

	// Verifying against the enrolled slot scores a match.
	verifyScore, err := session.VerifyWithConfig(ctx, slot, fastWait())
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if verifyScore == 0 {
		t.Error("Verify() score = 0, want a match")
	}
}

func TestIdentifyUnknownFinger(t *testing.T) {
	t.Parallel()

	session, sensor := newVirtualSession(t)
	ctx := context.Background()

	// A library entry from one finger, a different finger on the window.
	enrolled := virtualsensor.GradientImage()
	sensor.SetFingerImage(enrolled)
	if _, err := session.ReadImage(ctx); err != nil {
		t.Fatalf("ReadImage() failed: %v", err)
	}
	if err := session.ConvertImage(ctx, r30x.CharBuffer1); err != nil {
		t.Fatalf("ConvertImage() failed: %v", err)
	}
	if _, err := session.StoreTemplate(ctx, 0, r30x.CharBuffer1); err != nil {
		t.Fatalf("StoreTemplate() failed: %v", err)
	}

	other := bytes.Repeat([]byte{0x3C}, len(enrolled))
	sensor.SetFingerImage(other)

	position, score, err := session.IdentifyWithConfig(ctx, fastWait())
	if err != nil {
		t.Fatalf("Identify() failed: %v", err)
	}
	if position != -1 || score != -1 {
		t.Errorf("Identify() = (%d, %d), want (-1, -1) for an unknown finger", position, score)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	t.Parallel()

	session, _ := newVirtualSession(t)
	ctx := context.Background()

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i * 7)
	}

	ok, err := session.UploadCharacteristics(ctx, r30x.CharBuffer1, data)
	if err != nil {
		t.Fatalf("UploadCharacteristics() failed: %v", err)
	}
	if !ok {
		t.Fatal("UploadCharacteristics() readback mismatch")
	}

	got, err := session.DownloadCharacteristics(ctx, r30x.CharBuffer1)
	if err != nil {
		t.Fatalf("DownloadCharacteristics() failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip corrupted data: %d bytes back, want %d matching", len(got), len(data))
	}
}

func TestDownloadImageFromVirtualSensor(t *testing.T) {
	t.Parallel()

	session, sensor := newVirtualSession(t)
	ctx := context.Background()

	sensor.SetFingerImage(nil) // gradient pattern
	if _, err := session.ReadImage(ctx); err != nil {
		t.Fatalf("ReadImage() failed: %v", err)
	}

	img, err := session.DownloadImage(ctx)
	if err != nil {
		t.Fatalf("DownloadImage() failed: %v", err)
	}
	if img.Width != r30x.ImageWidth || img.Height != r30x.ImageHeight {
		t.Fatalf("dimensions = %dx%d, want %dx%d", img.Width, img.Height, r30x.ImageWidth, r30x.ImageHeight)
	}

	// Gradient byte 0 is 0x01: a black pixel then gray level 1 (0x11).
	if img.Pix[0] != 0x00 || img.Pix[1] != 0x11 {
		t.Errorf("Pix[0:2] = % X, want 00 11", img.Pix[0:2])
	}
	// Gradient byte 1 is 0x12.
	if img.Pix[2] != 0x11 || img.Pix[3] != 0x22 {
		t.Errorf("Pix[2:4] = % X, want 11 22", img.Pix[2:4])
	}
}

func TestValidatedStoreAgainstVirtualSensor(t *testing.T) {
	t.Parallel()

	sensor := virtualsensor.New()
	ctx := context.Background()

	vs, err := r30x.NewValidatedSession(ctx, sensor, nil)
	if err != nil {
		t.Fatalf("NewValidatedSession() failed: %v", err)
	}

	sensor.SetFingerImage(nil)
	if _, err := vs.ReadImage(ctx); err != nil {
		t.Fatalf("ReadImage() failed: %v", err)
	}
	if err := vs.ConvertImage(ctx, r30x.CharBuffer1); err != nil {
		t.Fatalf("ConvertImage() failed: %v", err)
	}

	slot, err := vs.StoreTemplateValidated(ctx, 5, r30x.CharBuffer1)
	if err != nil {
		t.Fatalf("StoreTemplateValidated() failed: %v", err)
	}
	if slot != 5 {
		t.Errorf("slot = %d, want 5", slot)
	}
	if tpl := sensor.TemplateAt(5); tpl == nil {
		t.Error("no template stored at slot 5")
	}

	metrics := vs.GetValidationMetrics()
	if metrics.TotalOperations == 0 {
		t.Error("validation metrics never recorded an operation")
	}
	if metrics.FailedValidations != 0 {
		t.Errorf("FailedValidations = %d, want 0", metrics.FailedValidations)
	}
}

func TestInitRejectsWrongSensorPassword(t *testing.T) {
	t.Parallel()

	sensor := virtualsensor.New()
	sensor.Password = 0x00C0FFEE

	session, err := r30x.New(sensor)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := session.Init(context.Background()); !errors.Is(err, r30x.ErrWrongPassword) {
		t.Errorf("Init() error = %v, want ErrWrongPassword", err)
	}
}

func TestSetPasswordSurvivesReverify(t *testing.T) {
	t.Parallel()

	session, sensor := newVirtualSession(t)
	ctx := context.Background()

	if err := session.SetPassword(ctx, 0x0BADF00D); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if sensor.Password != 0x0BADF00D {
		t.Fatalf("sensor password = 0x%08X, want 0x0BADF00D", sensor.Password)
	}

	ok, err := session.VerifyPassword(ctx)
	if err != nil {
		t.Fatalf("VerifyPassword() failed: %v", err)
	}
	if !ok {
		t.Error("VerifyPassword() = false after SetPassword updated both sides")
	}
}

func TestDeleteAndClearAgainstVirtualSensor(t *testing.T) {
	t.Parallel()

	session, sensor := newVirtualSession(t)
	ctx := context.Background()

	for slot := 0; slot < 3; slot++ {
		sensor.Preload(slot, bytes.Repeat([]byte{byte(slot + 1)}, 512))
	}

	count, err := session.GetTemplateCount(ctx)
	if err != nil {
		t.Fatalf("GetTemplateCount() failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("GetTemplateCount() = %d, want 3", count)
	}

	ok, err := session.DeleteTemplate(ctx, 1, 1)
	if err != nil || !ok {
		t.Fatalf("DeleteTemplate() = (%v, %v), want (true, nil)", ok, err)
	}
	if got := sensor.TemplateCount(); got != 2 {
		t.Errorf("templates after delete = %d, want 2", got)
	}

	ok, err = session.ClearDatabase(ctx)
	if err != nil || !ok {
		t.Fatalf("ClearDatabase() = (%v, %v), want (true, nil)", ok, err)
	}
	if got := sensor.TemplateCount(); got != 0 {
		t.Errorf("templates after clear = %d, want 0", got)
	}
}
