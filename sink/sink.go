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

// Package sink provides ready-made destinations for downloaded fingerprint
// images.
package sink

import (
	"fmt"
	"image/png"
	"io"
	"os"

	r30x "github.com/fphost/go-r30x"
)

// PNGFile writes each image as a PNG to a fixed path, replacing any previous
// file there.
type PNGFile struct {
	Path string
}

// NewPNGFile returns a sink writing to path.
func NewPNGFile(path string) *PNGFile {
	return &PNGFile{Path: path}
}

// WriteImage implements r30x.Sink.
func (s *PNGFile) WriteImage(img *r30x.Image) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", r30x.ErrNotWritable, s.Path, err)
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", s.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", r30x.ErrNotWritable, s.Path, err)
	}
	return nil
}

// PNGWriter encodes each image as a PNG onto an io.Writer, for hosts that
// stream captures elsewhere than the filesystem.
type PNGWriter struct {
	W io.Writer
}

// WriteImage implements r30x.Sink.
func (s *PNGWriter) WriteImage(img *r30x.Image) error {
	if err := png.Encode(s.W, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
