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

package polling

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for configurations the monitor cannot run with
var ErrInvalidConfig = errors.New("invalid polling configuration")

// Config holds the card monitor settings
type Config struct {
	// PollInterval is the pause between two detection attempts
	PollInterval time.Duration
	// DetectTimeout bounds one anticollision attempt
	DetectTimeout time.Duration
	// ActivateTimeout bounds RATS/ATS negotiation of a new card
	ActivateTimeout time.Duration
	// CardRemovalTimeout is how long a card may go unseen before it is
	// reported removed
	CardRemovalTimeout time.Duration
	// RequireRemoval keeps a handled card's presence until no card is seen
	// at all, so cards with random UIDs are served once per tap
	RequireRemoval bool
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:       100 * time.Millisecond,
		DetectTimeout:      500 * time.Millisecond,
		ActivateTimeout:    time.Second,
		CardRemovalTimeout: 600 * time.Millisecond,
		RequireRemoval:     true,
	}
}

// Validate checks that every duration is positive
func (c *Config) Validate() error {
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"poll interval", c.PollInterval},
		{"detect timeout", c.DetectTimeout},
		{"activate timeout", c.ActivateTimeout},
		{"card removal timeout", c.CardRemovalTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, d.name, d.value)
		}
	}
	return nil
}
