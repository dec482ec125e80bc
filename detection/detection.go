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

// Package detection finds serial ports with an R30x sensor attached. Port
// enumeration comes from go.bug.st/serial's enumerator; candidates are then
// probed by opening the port and verifying the sensor password.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	r30x "github.com/fphost/go-r30x"
	"github.com/fphost/go-r30x/transport/uart"
)

// ErrNoSensorFound is returned when no port answered the probe.
var ErrNoSensorFound = errors.New("detection: no fingerprint sensor found")

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	Path         string
	Name         string
	VIDPID       string
	SerialNumber string
	Product      string
}

// Options configures a detection run.
type Options struct {
	// Blocklist holds VID:PID pairs that are never probed. Nil selects
	// DefaultBlocklist.
	Blocklist []string

	// IgnorePaths holds device paths that are never probed.
	IgnorePaths []string

	// Password is the sensor password the probe verifies. The factory
	// default is zero.
	Password uint32

	// BaudRate is the speed to probe at. Zero selects the factory 57600.
	BaudRate int

	// ProbeTimeout bounds each port probe. Zero selects 500ms, generous
	// for one frame round-trip at 57600 baud.
	ProbeTimeout time.Duration
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Blocklist == nil {
		out.Blocklist = DefaultBlocklist()
	}
	if out.BaudRate == 0 {
		out.BaudRate = uart.DefaultBaudRate
	}
	if out.ProbeTimeout == 0 {
		out.ProbeTimeout = 500 * time.Millisecond
	}
	return &out
}

// ListPorts enumerates candidate serial ports, USB metadata included where
// the platform provides it. Ports behind known USB-serial bridge chips sort
// first, so probing reaches the likely sensor earliest.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("detection: enumerate ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Path:    d.Name,
			Name:    d.Name,
			Product: d.Product,
		}
		if d.IsUSB {
			info.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
			info.SerialNumber = d.SerialNumber
		}
		ports = append(ports, info)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return isPreferred(ports[i].VIDPID) && !isPreferred(ports[j].VIDPID)
	})
	return ports, nil
}

// Detect probes candidate ports in order and returns the first with a sensor
// answering the configured password. A nil opts selects the defaults.
func Detect(ctx context.Context, opts *Options) (*PortInfo, error) {
	opts = opts.withDefaults()

	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}

	for i := range ports {
		port := &ports[i]
		if IsBlocked(port.VIDPID, opts.Blocklist) || IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("detection: %w", err)
		}
		if probePort(ctx, port.Path, opts) {
			return port, nil
		}
	}
	return nil, ErrNoSensorFound
}

// probePort opens path and checks for a sensor by verifying the password.
// Any failure, open error included, just means "not here".
func probePort(ctx context.Context, path string, opts *Options) bool {
	transport, err := uart.NewWithBaudRate(path, opts.BaudRate)
	if err != nil {
		return false
	}

	session, err := r30x.New(transport,
		r30x.WithPassword(opts.Password),
		r30x.WithTimeout(opts.ProbeTimeout),
		r30x.WithMaxRetries(1),
	)
	if err != nil {
		_ = transport.Close()
		return false
	}
	defer func() { _ = session.Close() }()

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	defer cancel()

	if err := session.SetTimeout(opts.ProbeTimeout); err != nil {
		return false
	}
	ok, err := session.VerifyPassword(probeCtx)
	return err == nil && ok
}

// Open runs Detect and returns an initialized session on the detected port.
func Open(ctx context.Context, opts *Options, sessionOpts ...r30x.Option) (*r30x.Session, *PortInfo, error) {
	opts = opts.withDefaults()

	port, err := Detect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	transport, err := uart.NewWithBaudRate(port.Path, opts.BaudRate)
	if err != nil {
		return nil, nil, fmt.Errorf("detection: open %s: %w", port.Path, err)
	}

	sessionOpts = append([]r30x.Option{r30x.WithPassword(opts.Password)}, sessionOpts...)
	session, err := r30x.New(transport, sessionOpts...)
	if err != nil {
		_ = transport.Close()
		return nil, nil, err
	}
	if err := session.Init(ctx); err != nil {
		_ = session.Close()
		return nil, nil, fmt.Errorf("detection: init sensor on %s: %w", port.Path, err)
	}
	return session, port, nil
}
