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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-iso14443"
)

// CardDetectionState is the position of the monitor in a card's lifetime
type CardDetectionState int

const (
	StateIdle CardDetectionState = iota
	StateCardDetected
	StateReading
	StateHandled
)

// String returns the state name
func (s CardDetectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCardDetected:
		return "CardDetected"
	case StateReading:
		return "Reading"
	case StateHandled:
		return "Handled"
	default:
		return fmt.Sprintf("CardDetectionState(%d)", int(s))
	}
}

// CardState tracks the card currently in the field. LastErr is the error
// the last card session ended with.
type CardState struct {
	LastSeenTime   time.Time
	ReadStartTime  time.Time
	Target         *iso14443.Target
	LastErr        error
	LastUID        string
	DetectionState CardDetectionState
	Present        bool
}

// TransitionToDetected records a newly detected card
func (cs *CardState) TransitionToDetected(target *iso14443.Target, now time.Time) {
	cs.DetectionState = StateCardDetected
	cs.Present = true
	cs.Target = target
	cs.LastUID = target.UIDString()
	cs.LastErr = nil
	cs.LastSeenTime = now
	cs.ReadStartTime = time.Time{}
}

// TransitionToReading marks the start of the card session
func (cs *CardState) TransitionToReading(now time.Time) {
	cs.DetectionState = StateReading
	cs.ReadStartTime = now
}

// TransitionToHandled marks the card session as finished with err
func (cs *CardState) TransitionToHandled(err error) {
	cs.DetectionState = StateHandled
	cs.LastErr = err
}

// TransitionToIdle forgets the card
func (cs *CardState) TransitionToIdle() {
	*cs = CardState{}
}

// Seen refreshes the presence of the current card
func (cs *CardState) Seen(now time.Time) {
	cs.LastSeenTime = now
}

// RemovalDue reports whether the present card has been unseen for timeout
func (cs *CardState) RemovalDue(now time.Time, timeout time.Duration) bool {
	return cs.Present && now.Sub(cs.LastSeenTime) >= timeout
}

// SameCard reports whether target continues the current presence
func (cs *CardState) SameCard(target *iso14443.Target, requireRemoval bool) bool {
	if !cs.Present {
		return false
	}
	if requireRemoval && cs.DetectionState == StateHandled {
		return true
	}
	return cs.LastUID == target.UIDString()
}
