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
	"fmt"
)

// ErrCapturesMismatch is returned by Enroll when the sensor refuses to merge
// the two captures because they do not look like the same finger.
var ErrCapturesMismatch = errors.New("enrollment captures do not match")

// EnrollConfig tunes the two-capture enrollment workflow.
type EnrollConfig struct {
	// Wait configures the finger-wait loops between captures.
	Wait *WaitConfig

	// OnPrompt, if set, is called before each capture with the capture
	// number (1 or 2), giving interactive hosts a hook to prompt the user.
	OnPrompt func(capture int)
}

// Enroll runs the full enrollment workflow: capture a finger twice, extract
// characteristics from both captures, merge them into a template, and store
// it at position. Pass AutoPosition to use the first free slot. The slot
// actually used is returned.
//
// Between the captures the workflow waits for the finger to be lifted, so
// the second capture is a genuinely independent press.
func (s *Session) Enroll(ctx context.Context, position int) (uint16, error) {
	return s.EnrollWithConfig(ctx, position, nil)
}

// EnrollWithConfig is Enroll with explicit workflow configuration. A nil cfg
// selects the defaults.
func (s *Session) EnrollWithConfig(ctx context.Context, position int, cfg *EnrollConfig) (uint16, error) {
	if cfg == nil {
		cfg = &EnrollConfig{}
	}

	if err := s.captureInto(ctx, CharBuffer1, 1, cfg); err != nil {
		return 0, err
	}

	if err := s.WaitForFingerRemoval(ctx, cfg.Wait); err != nil {
		return 0, fmt.Errorf("enroll: %w", err)
	}

	if err := s.captureInto(ctx, CharBuffer2, 2, cfg); err != nil {
		return 0, err
	}

	ok, err := s.CreateTemplate(ctx)
	if err != nil {
		return 0, fmt.Errorf("enroll: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("enroll: %w", ErrCapturesMismatch)
	}

	slot, err := s.StoreTemplate(ctx, position, CharBuffer1)
	if err != nil {
		return 0, fmt.Errorf("enroll: %w", err)
	}

	s.config.Logger.Info("finger enrolled", "slot", slot)
	return slot, nil
}

// captureInto waits for a finger and converts the capture into charBuffer.
func (s *Session) captureInto(ctx context.Context, charBuffer uint8, capture int, cfg *EnrollConfig) error {
	if cfg.OnPrompt != nil {
		cfg.OnPrompt(capture)
	}
	if err := s.WaitForFinger(ctx, cfg.Wait); err != nil {
		return fmt.Errorf("enroll capture %d: %w", capture, err)
	}
	if err := s.ConvertImage(ctx, charBuffer); err != nil {
		return fmt.Errorf("enroll capture %d: %w", capture, err)
	}
	return nil
}

// Identify captures a finger and searches the whole library for it. No match
// is not an error: position and score come back as -1, mirroring
// SearchTemplate.
func (s *Session) Identify(ctx context.Context) (position, score int, err error) {
	return s.IdentifyWithConfig(ctx, nil)
}

// IdentifyWithConfig is Identify with an explicit wait configuration.
func (s *Session) IdentifyWithConfig(ctx context.Context, wait *WaitConfig) (position, score int, err error) {
	if err := s.WaitForFinger(ctx, wait); err != nil {
		return 0, 0, fmt.Errorf("identify: %w", err)
	}
	if err := s.ConvertImage(ctx, CharBuffer1); err != nil {
		return 0, 0, fmt.Errorf("identify: %w", err)
	}

	position, score, err = s.SearchTemplate(ctx, CharBuffer1, 0, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("identify: %w", err)
	}
	return position, score, nil
}

// Verify captures a finger and matches it against the template stored at
// position. The match score is returned; a non-match scores zero without an
// error.
func (s *Session) Verify(ctx context.Context, position uint16) (uint16, error) {
	return s.VerifyWithConfig(ctx, position, nil)
}

// VerifyWithConfig is Verify with an explicit wait configuration.
func (s *Session) VerifyWithConfig(ctx context.Context, position uint16, wait *WaitConfig) (uint16, error) {
	if err := s.WaitForFinger(ctx, wait); err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	if err := s.ConvertImage(ctx, CharBuffer1); err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	if err := s.LoadTemplate(ctx, position, CharBuffer2); err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}

	score, err := s.CompareCharacteristics(ctx)
	if err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	return score, nil
}

// CaptureImage waits for a finger and downloads the capture as a grayscale
// raster, the one-call path for hosts that only want the picture.
func (s *Session) CaptureImage(ctx context.Context, wait *WaitConfig) (*Image, error) {
	if err := s.WaitForFinger(ctx, wait); err != nil {
		return nil, fmt.Errorf("capture image: %w", err)
	}
	return s.DownloadImage(ctx)
}
