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

/*
Package r30x is a pure Go host-side driver for R30x-family (R301, R302,
R303, R305, R307) and FPM10A optical fingerprint sensors.

These modules speak a framed, checksummed request-reply protocol over a
serial line. The driver owns the full protocol stack: frame encoding and
decoding, the command vocabulary, multi-frame bulk transfers for images
and template material, and the enrollment/identification workflows built
on top of them.

Features:
  - Full command set: capture, conversion, template create/store/search,
    library index and maintenance, system parameters, password and
    address management, hardware RNG
  - Image download decoded to an image.Image grayscale raster
  - Template characteristics upload/download with readback verification
  - High-level Enroll, Verify and Identify workflows with finger-wait
    polling
  - Serial port autodetection
  - Retry logic with configurable backoff
  - Structured logging and a typed error vocabulary

Basic Usage:

	import (
	    "github.com/fphost/go-r30x"
	    "github.com/fphost/go-r30x/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	session, err := r30x.New(transport,
	    r30x.WithTimeout(2*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Init(ctx); err != nil {
	    log.Fatal(err)
	}

	// Enroll a finger into the first free slot.
	slot, err := session.Enroll(ctx, r30x.AutoPosition)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("enrolled at slot %d\n", slot)

	// Later, identify whoever touches the sensor.
	pos, score, err := session.Identify(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	if pos >= 0 {
	    fmt.Printf("matched slot %d (score %d)\n", pos, score)
	}

Error Handling:

Sensor refusals, transport faults and argument mistakes are distinct
error kinds, all inspectable with errors.Is/errors.As:

	if errors.Is(err, r30x.ErrReadTimeout) {
	    // nothing arrived in time; the session is poisoned until Init
	}
	var perr *r30x.ProtocolError
	if errors.As(err, &perr) {
	    // the sensor itself refused the command
	}

Outcomes that are part of a command's normal contract are values, not
errors: ReadImage reports an absent finger as false, SearchTemplate
reports no match as position -1.

Thread Safety:

Session operations are not thread-safe. The protocol is strictly
request-reply on a single serial line; callers needing concurrency must
serialize access externally.
*/
package r30x
