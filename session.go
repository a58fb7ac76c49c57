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

// Session is the negotiated link state of one card session: the transmit
// block number, the card's frame size and the ATS it came from.
//
// Thread Safety: Session is NOT thread-safe. It belongs to exactly one card
// session and is mutated by every exchange; callers must serialize access.
type Session struct {
	ats       *ATS
	target    *Target
	frameSize int
	toggle    byte
}

func newSession(target *Target) *Session {
	return &Session{
		target:    target,
		frameSize: DefaultFrameSize,
	}
}

// FrameSize returns the maximum frame size the card accepts (FSC).
func (s *Session) FrameSize() int {
	return s.frameSize
}

// Toggle returns the block number the next I or R block will carry.
func (s *Session) Toggle() byte {
	return s.toggle
}

// ATS returns the parsed Answer To Select, or nil before negotiation.
func (s *Session) ATS() *ATS {
	return s.ats
}

// Target returns the card this session talks to. It is nil for sessions
// negotiated without a known target.
func (s *Session) Target() *Target {
	return s.target
}

// MaxTxFragment returns the largest INF an I-block may carry given the
// reader's frame limit: min(hwLimit, FSC) minus PCB and CRC.
func (s *Session) MaxTxFragment(hwLimit int) int {
	limit := s.frameSize
	if hwLimit < limit {
		limit = hwLimit
	}
	return limit - blockFrameOverhead
}

// flip advances the block number after an I or R block went out.
func (s *Session) flip() {
	s.toggle ^= pcbBlockNumber
}

func (s *Session) applyATS(ats *ATS) {
	s.ats = ats
	s.frameSize = ats.FrameSize
	s.toggle = 0
}
