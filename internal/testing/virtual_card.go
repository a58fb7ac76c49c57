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

package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// ErrCardNotPresent is returned when the virtual card has left the field
var ErrCardNotPresent = errors.New("card not present")

// ScriptedTransceiver replays a fixed list of replies and records every
// frame it was asked to send.
type ScriptedTransceiver struct {
	// Replies are returned in order. A nil entry with a matching Errs entry
	// makes the call fail.
	Replies [][]byte
	Errs    []error
	Sent    [][]byte
	mu      sync.Mutex
	next    int
}

// NewScriptedTransceiver creates a transceiver answering with replies in order
func NewScriptedTransceiver(replies ...[]byte) *ScriptedTransceiver {
	return &ScriptedTransceiver{Replies: replies}
}

// FailAt makes call number idx (0 based) fail with err
func (s *ScriptedTransceiver) FailAt(idx int, err error) *ScriptedTransceiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.Errs) <= idx {
		s.Errs = append(s.Errs, nil)
	}
	for len(s.Replies) <= idx {
		s.Replies = append(s.Replies, nil)
	}
	s.Errs[idx] = err
	return s
}

// Transceive records out and returns the next scripted reply
func (s *ScriptedTransceiver) Transceive(out []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Sent = append(s.Sent, append([]byte(nil), out...))
	idx := s.next
	s.next++

	if idx < len(s.Errs) && s.Errs[idx] != nil {
		return nil, s.Errs[idx]
	}
	if idx >= len(s.Replies) {
		return nil, fmt.Errorf("no scripted reply for frame %d", idx)
	}
	return append([]byte(nil), s.Replies[idx]...), nil
}

// Frames returns a copy of all frames sent so far
func (s *ScriptedTransceiver) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.Sent))
	for i, f := range s.Sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Calls returns how many frames were sent
func (s *ScriptedTransceiver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}

// APDUHandler answers one reassembled command APDU
type APDUHandler func(cmd []byte) []byte

// VirtualCard simulates an ISO/IEC 14443-4 PICC at block level. It answers
// RATS, reassembles chained commands, chains long responses, asks for
// waiting time extensions and honours DESELECT. Every received frame must
// carry a valid CRC_A and every reply carries one.
type VirtualCard struct {
	Handler APDUHandler
	// ATS is returned for RATS without CRC; the trailer is added.
	ATS []byte
	// Commands holds every reassembled command APDU
	Commands [][]byte
	// Frames holds every raw frame received
	Frames [][]byte

	pendingCmd  []byte
	pendingResp [][]byte

	// WTXPerCommand is the number of S(WTX) requests sent before the
	// response to each command.
	WTXPerCommand int
	// WTXMultiplier is the multiplier requested in S(WTX)
	WTXMultiplier byte

	fsd         int
	wtxLeft     int
	mu          sync.Mutex
	blockNumber byte
	Present     bool
	Deselected  bool
}

// NewVirtualCard creates a present card answering commands with handler
func NewVirtualCard(ats []byte, handler APDUHandler) *VirtualCard {
	if ats == nil {
		// TL=5, T0=0x78 (FSCI=8, TA/TB/TC present), TA=0x80, TB=0x70, TC=0x02
		ats = []byte{0x05, 0x78, 0x80, 0x70, 0x02}
	}
	return &VirtualCard{
		ATS:           ats,
		Handler:       handler,
		WTXMultiplier: 0x01,
		fsd:           64,
		Present:       true,
	}
}

// EchoHandler answers every command with its own bytes followed by 90 00
func EchoHandler(cmd []byte) []byte {
	return append(append([]byte(nil), cmd...), 0x90, 0x00)
}

// RemoveFromField makes every further Transceive fail
func (v *VirtualCard) RemoveFromField() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Present = false
}

// Transceive implements the raw single-frame primitive
func (v *VirtualCard) Transceive(out []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.Present {
		return nil, ErrCardNotPresent
	}
	v.Frames = append(v.Frames, append([]byte(nil), out...))

	if len(out) < 3 {
		return nil, fmt.Errorf("frame too short: % X", out)
	}
	body := out[:len(out)-2]
	if !bytes.Equal(WithCRC(body...), out) {
		return nil, fmt.Errorf("bad CRC_A in frame % X", out)
	}

	pcb := body[0]
	switch {
	case pcb == 0xE0:
		return v.handleRATS(body)
	case pcb&0xC0 == 0x00:
		return v.handleIBlock(pcb, body[1:])
	case pcb&0xC0 == 0x80:
		return v.handleRBlock(pcb)
	case pcb&0xF7 == 0xC2:
		v.Deselected = true
		return SDeselect(), nil
	case pcb&0xF7 == 0xF2:
		return v.nextAfterWTX()
	default:
		return nil, fmt.Errorf("unexpected PCB %02X", pcb)
	}
}

func (v *VirtualCard) handleRATS(body []byte) ([]byte, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("bad RATS % X", body)
	}
	sizes := []int{16, 24, 32, 40, 48, 64, 96, 128, 256}
	fsdi := int(body[1] >> 4)
	if fsdi >= len(sizes) {
		fsdi = len(sizes) - 1
	}
	v.fsd = sizes[fsdi]
	v.blockNumber = 1
	return WithCRC(v.ATS...), nil
}

func (v *VirtualCard) handleIBlock(pcb byte, inf []byte) ([]byte, error) {
	v.blockNumber = pcb & 0x01
	v.pendingCmd = append(v.pendingCmd, inf...)
	if pcb&0x10 != 0 {
		return RAck(v.blockNumber), nil
	}

	cmd := v.pendingCmd
	v.pendingCmd = nil
	v.Commands = append(v.Commands, cmd)

	var resp []byte
	if v.Handler != nil {
		resp = v.Handler(cmd)
	}
	v.pendingResp = splitChunks(resp, v.fsd-3)
	v.wtxLeft = v.WTXPerCommand
	if v.wtxLeft > 0 {
		v.wtxLeft--
		return SWTX(v.WTXMultiplier), nil
	}
	return v.nextResponseBlock(), nil
}

func (v *VirtualCard) handleRBlock(pcb byte) ([]byte, error) {
	if pcb&0x10 != 0 {
		return nil, errors.New("R(NAK) not supported by virtual card")
	}
	if len(v.pendingResp) == 0 {
		return nil, errors.New("R(ACK) with nothing to send")
	}
	v.blockNumber = pcb & 0x01
	return v.nextResponseBlock(), nil
}

func (v *VirtualCard) nextAfterWTX() ([]byte, error) {
	if v.wtxLeft > 0 {
		v.wtxLeft--
		return SWTX(v.WTXMultiplier), nil
	}
	return v.nextResponseBlock(), nil
}

func (v *VirtualCard) nextResponseBlock() []byte {
	if len(v.pendingResp) == 0 {
		return IBlock(v.blockNumber, false)
	}
	chunk := v.pendingResp[0]
	v.pendingResp = v.pendingResp[1:]
	return IBlock(v.blockNumber, len(v.pendingResp) > 0, chunk...)
}

func splitChunks(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}
