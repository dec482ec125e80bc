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
	"encoding/binary"
	"fmt"
)

// ConvertImage extracts characteristics from the capture in the image buffer
// and writes them into the given character buffer. The capture must come from
// a prior ReadImage; a distorted or featureless capture is a sensor refusal,
// surfaced as a ProtocolError.
func (s *Session) ConvertImage(ctx context.Context, charBuffer uint8) error {
	if err := validateCharBuffer(charBuffer); err != nil {
		return err
	}

	payload, err := s.command(ctx, "ConvertImage", []byte{cmdConvertImage, charBuffer})
	if err != nil {
		return err
	}

	if payload[0] != statusOK {
		return statusError("ConvertImage", payload[0])
	}
	return nil
}

// CreateTemplate merges the characteristics in both character buffers into a
// single template, written back into both buffers. The sensor refusing to
// combine them because the two captures do not belong to the same finger is a
// normal enrollment outcome, reported as false.
func (s *Session) CreateTemplate(ctx context.Context) (bool, error) {
	payload, err := s.command(ctx, "CreateTemplate", []byte{cmdCreateTemplate})
	if err != nil {
		return false, err
	}

	switch payload[0] {
	case statusOK:
		return true, nil
	case statusCreateTemplateFail:
		return false, nil
	default:
		return false, statusError("CreateTemplate", payload[0])
	}
}

// CompareCharacteristics matches the contents of the two character buffers
// against each other and returns the match score. Buffers that do not match
// score zero without an error, so callers branch on the score.
func (s *Session) CompareCharacteristics(ctx context.Context) (uint16, error) {
	payload, err := s.command(ctx, "CompareCharacteristics", []byte{cmdCompareCharacteristics})
	if err != nil {
		return 0, err
	}

	switch payload[0] {
	case statusOK:
		if len(payload) < 3 {
			return 0, fmt.Errorf("CompareCharacteristics: truncated acknowledgement: %w", ErrNoACK)
		}
		return binary.BigEndian.Uint16(payload[1:3]), nil
	case statusNotMatching:
		return 0, nil
	default:
		return 0, statusError("CompareCharacteristics", payload[0])
	}
}

// DownloadCharacteristics streams the contents of a character buffer to the
// host. The returned bytes are opaque sensor-specific template material,
// suitable only for archival and a later UploadCharacteristics.
func (s *Session) DownloadCharacteristics(ctx context.Context, charBuffer uint8) ([]byte, error) {
	if err := validateCharBuffer(charBuffer); err != nil {
		return nil, err
	}

	payload, err := s.command(ctx, "DownloadCharacteristics", []byte{cmdDownloadCharacteristics, charBuffer})
	if err != nil {
		return nil, err
	}

	if payload[0] != statusOK {
		return nil, statusError("DownloadCharacteristics", payload[0])
	}

	return s.receiveBulk(ctx, "DownloadCharacteristics")
}

// UploadCharacteristics writes previously downloaded template material into a
// character buffer, fragmenting it to the sensor's negotiated packet size.
// The sensor never acknowledges the data frames, so the upload is verified by
// reading the buffer back and comparing; a mismatch is reported as false.
func (s *Session) UploadCharacteristics(ctx context.Context, charBuffer uint8, data []byte) (bool, error) {
	if err := validateCharBuffer(charBuffer); err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, fmt.Errorf("UploadCharacteristics: %w: empty characteristics data", ErrInvalidArgument)
	}

	maxPacket, err := s.negotiatedPacketSize(ctx)
	if err != nil {
		return false, err
	}

	payload, err := s.command(ctx, "UploadCharacteristics", []byte{cmdUploadCharacteristics, charBuffer})
	if err != nil {
		return false, err
	}
	if payload[0] != statusOK {
		return false, statusError("UploadCharacteristics", payload[0])
	}

	if err := s.sendBulk(ctx, "UploadCharacteristics", data, maxPacket); err != nil {
		return false, err
	}

	readback, err := s.DownloadCharacteristics(ctx, charBuffer)
	if err != nil {
		return false, fmt.Errorf("UploadCharacteristics: verify readback: %w", err)
	}
	return bytes.Equal(data, readback), nil
}
