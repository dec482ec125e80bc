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
	"image"
	"image/color"
)

// Fixed raster dimensions of the sensor's optical capture area.
const (
	ImageWidth  = 256
	ImageHeight = 288
)

// Image is the decoded form of a downloaded fingerprint capture: an 8-bit
// grayscale raster in row-major order. It implements image.Image so hosts
// can hand it straight to the stdlib encoders.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// ColorModel implements image.Image.
func (img *Image) ColorModel() color.Model { return color.GrayModel }

// Bounds implements image.Image.
func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// At implements image.Image.
func (img *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return color.Gray{}
	}
	return color.Gray{Y: img.Pix[y*img.Width+x]}
}

// Sink consumes a downloaded fingerprint image. File encoding and output
// paths live behind this interface so the protocol core carries no opinion
// about formats; a sink that cannot write its destination reports an error
// satisfying errors.Is(err, ErrNotWritable).
type Sink interface {
	WriteImage(img *Image) error
}

// decodeImageStream expands the sensor's 4-bit-per-pixel stream into the
// fixed 256x288 raster. Each byte holds two horizontally adjacent pixels,
// high nibble first, filling the raster top-to-bottom, left-to-right; a
// nibble n becomes the 8-bit value n*17 (0x0 -> 0x00 ... 0xF -> 0xFF).
func decodeImageStream(data []byte) (*Image, error) {
	need := ImageWidth * ImageHeight / 2
	if len(data) < need {
		return nil, fmt.Errorf("%w: image stream truncated: got %d bytes, want %d",
			ErrNoACK, len(data), need)
	}

	pix := make([]byte, ImageWidth*ImageHeight)
	for i := 0; i < need; i++ {
		pix[2*i] = (data[i] >> 4) * 17
		pix[2*i+1] = (data[i] & 0x0F) * 17
	}

	return &Image{Pix: pix, Width: ImageWidth, Height: ImageHeight}, nil
}

// ReadImage asks the sensor to capture a fingerprint into its image buffer.
// The absence of a finger is a normal outcome, reported as false, so hosts
// can poll in a loop; see WaitForFinger for a ready-made loop.
func (s *Session) ReadImage(ctx context.Context) (bool, error) {
	payload, err := s.command(ctx, "ReadImage", []byte{cmdReadImage})
	if err != nil {
		return false, err
	}

	switch payload[0] {
	case statusOK:
		return true, nil
	case statusNoFinger:
		return false, nil
	default:
		return false, statusError("ReadImage", payload[0])
	}
}

// DownloadImage streams the sensor's image buffer to the host and decodes
// it into a grayscale raster. The capture must have been taken by a prior
// ReadImage.
func (s *Session) DownloadImage(ctx context.Context) (*Image, error) {
	payload, err := s.command(ctx, "DownloadImage", []byte{cmdDownloadImage})
	if err != nil {
		return nil, err
	}

	if payload[0] != statusOK {
		return nil, statusError("DownloadImage", payload[0])
	}

	data, err := s.receiveBulk(ctx, "DownloadImage")
	if err != nil {
		return nil, err
	}

	img, err := decodeImageStream(data)
	if err != nil {
		return nil, fmt.Errorf("DownloadImage: %w", err)
	}
	return img, nil
}

// DownloadImageTo downloads the current capture and hands it to sink.
func (s *Session) DownloadImageTo(ctx context.Context, sink Sink) error {
	img, err := s.DownloadImage(ctx)
	if err != nil {
		return err
	}
	if err := sink.WriteImage(img); err != nil {
		return fmt.Errorf("DownloadImage: write to sink: %w", err)
	}
	return nil
}
