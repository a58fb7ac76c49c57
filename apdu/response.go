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

package apdu

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrResponseTooShort = errors.New("response shorter than status word")
	ErrInvalidCommand   = errors.New("invalid command APDU")
	ErrTagNotFound      = errors.New("tag not found")
)

// StatusWord is SW1-SW2 of a response APDU
type StatusWord uint16

// Common status words
const (
	SWSuccess                StatusWord = 0x9000
	SWWrongLength            StatusWord = 0x6700
	SWSecurityNotSatisfied   StatusWord = 0x6982
	SWConditionsNotSatisfied StatusWord = 0x6985
	SWFileNotFound           StatusWord = 0x6A82
	SWRecordNotFound         StatusWord = 0x6A83
	SWWrongP1P2              StatusWord = 0x6B00
	SWInsNotSupported        StatusWord = 0x6D00
	SWClaNotSupported        StatusWord = 0x6E00
)

var statusText = map[StatusWord]string{
	SWSuccess:                "success",
	SWWrongLength:            "wrong length",
	SWSecurityNotSatisfied:   "security status not satisfied",
	SWConditionsNotSatisfied: "conditions of use not satisfied",
	SWFileNotFound:           "file or application not found",
	SWRecordNotFound:         "record not found",
	SWWrongP1P2:              "wrong parameters P1-P2",
	SWInsNotSupported:        "instruction not supported",
	SWClaNotSupported:        "class not supported",
}

// NewStatusWord combines sw1 and sw2
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the low byte
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess reports 9000 and 61XX
func (sw StatusWord) IsSuccess() bool {
	return sw == SWSuccess || sw.SW1() == 0x61
}

// String returns the status word in hex with a description when known
func (sw StatusWord) String() string {
	if text, ok := statusText[sw]; ok {
		return fmt.Sprintf("%04X (%s)", uint16(sw), text)
	}
	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("%04X (%d bytes available)", uint16(sw), sw.SW2())
	case 0x6C:
		return fmt.Sprintf("%04X (wrong Le, expected %d)", uint16(sw), sw.SW2())
	}
	return fmt.Sprintf("%04X", uint16(sw))
}

// Response is a parsed response APDU
type Response struct {
	Data []byte
	SW   StatusWord
}

// ParseResponse splits raw into data and status word
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooShort, len(raw))
	}
	n := len(raw) - 2
	return &Response{
		Data: append([]byte{}, raw[:n]...),
		SW:   NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// Err returns a *StatusError when the status word is not a success
func (r *Response) Err() error {
	if r.SW.IsSuccess() {
		return nil
	}
	return &StatusError{SW: r.SW}
}

// String returns a one-line description of the response
func (r *Response) String() string {
	return fmt.Sprintf("%d bytes, SW %s", len(r.Data), r.SW)
}

// StatusError is a response whose status word reports a failure
type StatusError struct {
	SW StatusWord
}

func (e *StatusError) Error() string {
	return "card returned status " + e.SW.String()
}
