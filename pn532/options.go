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

package pn532

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Logger receives reader logs. Defaults to a no-op logger.
	Logger *zap.SugaredLogger
	// Timeout is the transport timeout for a single command
	Timeout time.Duration
	// PassiveActivationRetries is how often InListPassiveTarget retries
	// activation before reporting no target. 0xFF retries forever.
	PassiveActivationRetries byte
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Logger:                   zap.NewNop().Sugar(),
		Timeout:                  time.Second,
		PassiveActivationRetries: 0x02,
	}
}

// Option is a functional option for configuring a Device
type Option func(*DeviceConfig) error

// WithLogger sets the logger used by the device
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *DeviceConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidParameter)
		}
		c.Logger = logger
		return nil
	}
}

// WithTimeout sets the transport timeout for device commands
func WithTimeout(timeout time.Duration) Option {
	return func(c *DeviceConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
		}
		c.Timeout = timeout
		return nil
	}
}

// WithPassiveActivationRetries sets the InListPassiveTarget retry count
func WithPassiveActivationRetries(retries byte) Option {
	return func(c *DeviceConfig) error {
		c.PassiveActivationRetries = retries
		return nil
	}
}
