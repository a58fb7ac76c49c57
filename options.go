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

package iso14443

import (
	"fmt"

	"go.uber.org/zap"
)

// MaxWTXRetries is the number of consecutive S(WTX) requests accepted before
// an exchange is abandoned.
const MaxWTXRetries = 32

// Defaults
const (
	// DefaultFSDI advertises a 64 byte reader frame (RATS parameter 0x50).
	DefaultFSDI byte = 0x05
	// DefaultHardwareFrameLimit is the largest frame the reference reader
	// FIFO can send in one go, giving 61 bytes of INF per I-block.
	DefaultHardwareFrameLimit = 64
	// DefaultFrameSize is assumed until an ATS says otherwise.
	DefaultFrameSize = 64
)

// Config contains configuration options for the Engine
type Config struct {
	// Logger receives protocol logs. Defaults to a no-op logger.
	Logger *zap.SugaredLogger
	// HardwareFrameLimit caps the size of any transmitted frame, CRC included.
	HardwareFrameLimit int
	// FSDI is sent in RATS as the reader's receive frame size index.
	FSDI byte
	// TraceTx logs every transmitted frame at debug level.
	TraceTx bool
	// TraceRx logs every received frame at debug level.
	TraceRx bool
	// CheckRxCRC verifies the CRC_A trailer of received blocks.
	CheckRxCRC bool
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		Logger:             zap.NewNop().Sugar(),
		HardwareFrameLimit: DefaultHardwareFrameLimit,
		FSDI:               DefaultFSDI,
	}
}

// Option is a functional option for configuring an Engine
type Option func(*Config) error

// WithLogger sets the logger used by the engine
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidParameter)
		}
		c.Logger = logger
		return nil
	}
}

// WithTrace enables hex tracing of transmitted and/or received frames
func WithTrace(tx, rx bool) Option {
	return func(c *Config) error {
		c.TraceTx = tx
		c.TraceRx = rx
		return nil
	}
}

// WithFSD sets the reader frame size advertised in RATS. size must be one of
// the ISO/IEC 14443-4 frame sizes (16, 24, 32, 40, 48, 64, 96, 128, 256).
func WithFSD(size int) Option {
	return func(c *Config) error {
		fsdi, err := FSDIFromFrameSize(size)
		if err != nil {
			return err
		}
		c.FSDI = fsdi
		return nil
	}
}

// WithHardwareFrameLimit sets the largest frame the reader can transmit,
// PCB and CRC included.
func WithHardwareFrameLimit(size int) Option {
	return func(c *Config) error {
		if size <= blockFrameOverhead {
			return fmt.Errorf("%w: hardware frame limit %d leaves no room for INF", ErrInvalidParameter, size)
		}
		c.HardwareFrameLimit = size
		return nil
	}
}

// WithRxCRCCheck makes the engine verify the CRC_A of every received block.
// Readers that already validate CRC at the radio layer do not need it.
func WithRxCRCCheck() Option {
	return func(c *Config) error {
		c.CheckRxCRC = true
		return nil
	}
}
