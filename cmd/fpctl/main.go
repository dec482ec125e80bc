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

// fpctl is a command-line tool for R30x fingerprint sensors: enroll and
// identify fingers, manage the template library, and save captures as PNG.
//
// Usage:
//
//	fpctl [flags] <command> [args]
//
// Commands:
//
//	enroll [slot]      enroll a finger (first free slot if omitted)
//	verify <slot>      match a finger against one stored template
//	identify           match a finger against the whole library
//	delete <slot>      delete one template
//	clear              delete every template
//	list               show occupied template slots
//	image <file.png>   capture a finger and save the image
//	info               show sensor parameters
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	r30x "github.com/fphost/go-r30x"
	"github.com/fphost/go-r30x/detection"
	"github.com/fphost/go-r30x/logging"
	"github.com/fphost/go-r30x/sink"
	"github.com/fphost/go-r30x/transport/uart"
)

type config struct {
	devicePath *string
	baudRate   *int
	password   *uint64
	address    *uint64
	timeout    *time.Duration
	wait       *time.Duration
	debug      *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		baudRate: flag.Int("baud", uart.DefaultBaudRate, "Serial baud rate"),
		password: flag.Uint64("password", 0, "Sensor password"),
		address:  flag.Uint64("address", 0xFFFFFFFF, "Sensor device address"),
		timeout:  flag.Duration("timeout", time.Second, "Per-operation timeout"),
		wait:     flag.Duration("wait", 30*time.Second, "How long to wait for a finger"),
		debug:    flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()
	return cfg
}

func (cfg *config) sessionOptions() []r30x.Option {
	opts := []r30x.Option{
		r30x.WithPassword(uint32(*cfg.password)),
		r30x.WithAddress(uint32(*cfg.address)),
		r30x.WithTimeout(*cfg.timeout),
	}
	if *cfg.debug {
		opts = append(opts, r30x.WithLogger(logging.NewSlog(logging.DebugLevel, false)))
	}
	return opts
}

// openSession connects to the sensor, auto-detecting the port when no device
// path was given.
func openSession(ctx context.Context, cfg *config) (*r30x.Session, error) {
	if *cfg.devicePath == "" {
		session, port, err := detection.Open(ctx, &detection.Options{
			Password: uint32(*cfg.password),
			BaudRate: *cfg.baudRate,
		}, cfg.sessionOptions()...)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Found sensor on %s\n", port.Path)
		return session, nil
	}

	transport, err := uart.NewWithBaudRate(*cfg.devicePath, *cfg.baudRate)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", *cfg.devicePath, err)
	}

	session, err := r30x.New(transport, cfg.sessionOptions()...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	if err := session.Init(ctx); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("initialize sensor: %w", err)
	}
	return session, nil
}

func main() {
	cfg := parseFlags()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, args []string) error {
	session, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	waitCfg := &r30x.WaitConfig{
		Interval: 200 * time.Millisecond,
		Timeout:  *cfg.wait,
	}

	switch args[0] {
	case "enroll":
		return runEnroll(ctx, session, args[1:], waitCfg)
	case "verify":
		return runVerify(ctx, session, args[1:], waitCfg)
	case "identify":
		return runIdentify(ctx, session, waitCfg)
	case "delete":
		return runDelete(ctx, session, args[1:])
	case "clear":
		return runClear(ctx, session)
	case "list":
		return runList(ctx, session)
	case "image":
		return runImage(ctx, session, args[1:], waitCfg)
	case "info":
		return runInfo(ctx, session)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runEnroll(ctx context.Context, session *r30x.Session, args []string, wait *r30x.WaitConfig) error {
	position := r30x.AutoPosition
	if len(args) > 0 {
		slot, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid slot %q: %w", args[0], err)
		}
		position = slot
	}

	slot, err := session.EnrollWithConfig(ctx, position, &r30x.EnrollConfig{
		Wait: wait,
		OnPrompt: func(capture int) {
			if capture == 1 {
				fmt.Println("Place finger on the sensor...")
			} else {
				fmt.Println("Place the same finger again...")
			}
		},
	})
	if err != nil {
		if errors.Is(err, r30x.ErrCapturesMismatch) {
			return errors.New("captures did not match, try again")
		}
		return err
	}

	fmt.Printf("Enrolled at slot %d\n", slot)
	return nil
}

func runVerify(ctx context.Context, session *r30x.Session, args []string, wait *r30x.WaitConfig) error {
	if len(args) == 0 {
		return errors.New("verify needs a slot number")
	}
	slot, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid slot %q: %w", args[0], err)
	}

	fmt.Println("Place finger on the sensor...")
	score, err := session.VerifyWithConfig(ctx, uint16(slot), wait)
	if err != nil {
		return err
	}

	if score == 0 {
		fmt.Printf("No match against slot %d\n", slot)
	} else {
		fmt.Printf("Match against slot %d (score %d)\n", slot, score)
	}
	return nil
}

func runIdentify(ctx context.Context, session *r30x.Session, wait *r30x.WaitConfig) error {
	fmt.Println("Place finger on the sensor...")
	position, score, err := session.IdentifyWithConfig(ctx, wait)
	if err != nil {
		return err
	}

	if position < 0 {
		fmt.Println("No match")
	} else {
		fmt.Printf("Matched slot %d (score %d)\n", position, score)
	}
	return nil
}

func runDelete(ctx context.Context, session *r30x.Session, args []string) error {
	if len(args) == 0 {
		return errors.New("delete needs a slot number")
	}
	slot, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid slot %q: %w", args[0], err)
	}

	ok, err := session.DeleteTemplate(ctx, uint16(slot), 1)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sensor refused to delete slot %d", slot)
	}
	fmt.Printf("Deleted slot %d\n", slot)
	return nil
}

func runClear(ctx context.Context, session *r30x.Session) error {
	ok, err := session.ClearDatabase(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("sensor refused to clear the library")
	}
	fmt.Println("Library cleared")
	return nil
}

func runList(ctx context.Context, session *r30x.Session) error {
	count, err := session.GetTemplateCount(ctx)
	if err != nil {
		return err
	}

	cap16, err := session.GetStorageCapacity(ctx)
	if err != nil {
		return err
	}
	capacity := int(cap16)

	fmt.Printf("%d of %d slots used\n", count, capacity)

	slot := 0
	for page := uint8(0); page < 4 && slot < capacity; page++ {
		index, err := session.GetTemplateIndex(ctx, page)
		if err != nil {
			return err
		}
		for _, used := range index {
			if used && slot < capacity {
				fmt.Printf("  slot %d\n", slot)
			}
			slot++
		}
	}
	return nil
}

func runImage(ctx context.Context, session *r30x.Session, args []string, wait *r30x.WaitConfig) error {
	if len(args) == 0 {
		return errors.New("image needs an output file name")
	}

	fmt.Println("Place finger on the sensor...")
	img, err := session.CaptureImage(ctx, wait)
	if err != nil {
		return err
	}

	out := sink.NewPNGFile(args[0])
	if err := out.WriteImage(img); err != nil {
		return err
	}
	fmt.Printf("Saved %dx%d capture to %s\n", img.Width, img.Height, args[0])
	return nil
}

func runInfo(ctx context.Context, session *r30x.Session) error {
	params, err := session.GetSystemParameters(ctx)
	if err != nil {
		return err
	}

	maxPacket, err := params.MaxPacketSize()
	if err != nil {
		return err
	}

	fmt.Printf("System ID:      0x%04X\n", params.SystemID)
	fmt.Printf("Capacity:       %d templates\n", params.Capacity)
	fmt.Printf("Security level: %d\n", params.SecurityLevel)
	fmt.Printf("Address:        0x%08X\n", params.DeviceAddress)
	fmt.Printf("Packet size:    %d bytes\n", maxPacket)
	fmt.Printf("Baud rate:      %d\n", params.BaudRate())
	return nil
}
