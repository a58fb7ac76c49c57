// go-iso14443
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso14443.
//
// go-iso14443 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso14443 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso14443; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command emvread waits for contactless payment cards and lists the EMV
// applications they carry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-iso14443"
	"github.com/ZaparooProject/go-iso14443/polling"
	"go.uber.org/zap"
)

type config struct {
	devicePath   *string
	timeout      *time.Duration
	pollInterval *time.Duration
	debug        *bool
	trace        *bool
	ndef         *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Reader path (e.g., /dev/ttyUSB0, /dev/i2c-1 or libnfc:pn532_uart:/dev/ttyUSB0). "+
				"Leave empty to use the first serial port."),
		timeout: flag.Duration("timeout", 0, "Stop after this long (default: run until interrupted)"),
		pollInterval: flag.Duration("poll-interval", 100*time.Millisecond,
			"Polling interval for card detection"),
		debug: flag.Bool("debug", false, "Enable debug logging"),
		trace: flag.Bool("trace", false, "Log every frame exchanged with the card (implies -debug)"),
		ndef:  flag.Bool("ndef", false, "Read the NDEF message of Type 4 Tags instead of EMV applications"),
	}
	flag.Parse()
	if *cfg.trace {
		*cfg.debug = true
	}
	return cfg
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newMonitor(rd reader, cfg *config, log *zap.SugaredLogger) (*polling.Monitor, error) {
	monitorConfig := polling.DefaultConfig()
	monitorConfig.PollInterval = *cfg.pollInterval

	engineOpts := []iso14443.Option{iso14443.WithLogger(log.Named("iso14443"))}
	if *cfg.trace {
		engineOpts = append(engineOpts, iso14443.WithTrace(true, true))
	}

	monitor, err := polling.NewMonitor(rd, monitorConfig, log.Named("polling"), engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create card monitor: %w", err)
	}

	if *cfg.ndef {
		monitor.OnCard = printNDEF
	} else {
		monitor.OnCard = printEMV
	}
	monitor.OnNotCompliant = func(target *iso14443.Target) {
		_, _ = fmt.Printf("\nCARD: %s\n", target)
		_, _ = fmt.Println("Not ISO 14443-4 compliant, skipping")
	}
	monitor.OnCardRemoved = func(*iso14443.Target) {
		_, _ = fmt.Println("Card removed - hold the next card near the reader...")
	}
	return monitor, nil
}

func run(cfg *config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *cfg.timeout)
		defer cancel()
	}

	rd, err := openReader(ctx, *cfg.devicePath, log)
	if err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()

	monitor, err := newMonitor(rd, cfg, log)
	if err != nil {
		return err
	}

	_, _ = fmt.Println("Hold a card near the reader")
	err = monitor.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func main() {
	cfg := parseFlags()

	logger, err := newLogger(*cfg.debug)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger.Sugar()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
