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

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-iso14443/pn532"
	"github.com/ZaparooProject/go-iso14443/polling"
	"github.com/ZaparooProject/go-iso14443/transport/i2c"
	"github.com/ZaparooProject/go-iso14443/transport/uart"
	"go.uber.org/zap"
)

const libnfcPrefix = "libnfc:"

type reader interface {
	polling.Detector
	Close() error
}

// newTransport creates a PN532 transport from a device path.
func newTransport(path string) (pn532.Transport, error) {
	if strings.Contains(strings.ToLower(path), "i2c") {
		transport, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	}

	transport, err := uart.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return transport, nil
}

// firstSerialPort returns the first serial port that is not blocklisted
func firstSerialPort() (string, error) {
	ports, err := uart.ListPorts(uart.DefaultBlocklist(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found, use -device")
	}
	return ports[0].Name, nil
}

func openPN532(ctx context.Context, path string, log *zap.SugaredLogger) (*pn532.Device, error) {
	if path == "" {
		port, err := firstSerialPort()
		if err != nil {
			return nil, err
		}
		path = port
	}
	_, _ = fmt.Printf("Opening device: %s\n", path)

	transport, err := newTransport(path)
	if err != nil {
		return nil, err
	}

	device, err := pn532.New(transport, pn532.WithLogger(log.Named("pn532")))
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create PN532 device: %w", err)
	}
	if err := device.Init(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize PN532: %w", err)
	}

	_, _ = fmt.Printf("PN532 Firmware: %s\n", device.FirmwareVersion())
	return device, nil
}
