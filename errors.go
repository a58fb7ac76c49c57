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
	"errors"
	"fmt"
)

// Protocol errors. Every one of them is fatal to the exchange that raised
// it; callers drop the card session and re-run anticollision.
var (
	ErrTransceiveFailed        = errors.New("transceive failed")
	ErrRatsFailed              = errors.New("RATS failed")
	ErrChainedTransmitRejected = errors.New("chained transmit rejected")
	ErrUnsupportedBlock        = errors.New("unsupported block received")
	ErrWTXRetryExceeded        = errors.New("WTX retry limit exceeded")
	ErrNotISO14443_4Compliant  = errors.New("card is not ISO14443-4 compliant")
)

// Supporting errors
var (
	ErrMalformedBlock   = errors.New("malformed block")
	ErrCRCMismatch      = errors.New("CRC_A mismatch")
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoTarget is returned by readers when no card answered
	// anticollision
	ErrNoTarget = errors.New("no target detected")
)

// ErrorKind names the error classes surfaced by the protocol layer.
type ErrorKind int

const (
	// KindNone means the error did not come from this layer.
	KindNone ErrorKind = iota
	KindTransceiveFailed
	KindRatsFailed
	KindChainedTransmitRejected
	KindUnsupportedBlock
	KindWTXRetryExceeded
	KindNotISO14443_4Compliant
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindTransceiveFailed:
		return "TransceiveFailed"
	case KindRatsFailed:
		return "RatsFailed"
	case KindChainedTransmitRejected:
		return "ChainedTransmitRejected"
	case KindUnsupportedBlock:
		return "UnsupportedBlockReceived"
	case KindWTXRetryExceeded:
		return "WtxRetryExceeded"
	case KindNotISO14443_4Compliant:
		return "NotIso14443_4Compliant"
	case KindNone:
		return "None"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// kindOrder lists kinds from most to least specific. A transceiver failure
// while sending a chaining I-block matches both ChainedTransmitRejected and
// TransceiveFailed; the former wins.
var kindOrder = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotISO14443_4Compliant, KindNotISO14443_4Compliant},
	{ErrRatsFailed, KindRatsFailed},
	{ErrChainedTransmitRejected, KindChainedTransmitRejected},
	{ErrWTXRetryExceeded, KindWTXRetryExceeded},
	{ErrUnsupportedBlock, KindUnsupportedBlock},
	{ErrMalformedBlock, KindUnsupportedBlock},
	{ErrTransceiveFailed, KindTransceiveFailed},
}

// GetErrorKind classifies err into one of the protocol error kinds.
func GetErrorKind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindNone
}

// IsSessionFatal reports whether err ends the card session. Every protocol
// error does: the toggle state can no longer be trusted.
func IsSessionFatal(err error) bool {
	return GetErrorKind(err) != KindNone
}

// ExchangeError describes where an exchange or negotiation aborted.
type ExchangeError struct {
	Kind  error
	Err   error
	Op    string
	State ExchangeState
	PCB   byte
	// HasPCB is set when PCB holds the offending received PCB.
	HasPCB bool
}

func (e *ExchangeError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.State != StateIdle {
		msg += " in state " + e.State.String()
	}
	if e.HasPCB {
		msg += fmt.Sprintf(" (PCB %02X)", e.PCB)
	}
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// BlockError reports a frame that could not be classified.
type BlockError struct {
	Err error
	PCB byte
}

func (e *BlockError) Error() string {
	if errors.Is(e.Err, ErrMalformedBlock) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: PCB %02X", e.Err.Error(), e.PCB)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// transceiveError tags a raw transceiver failure so that it matches
// ErrTransceiveFailed while keeping the original error reachable.
func transceiveError(err error) error {
	if errors.Is(err, ErrTransceiveFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransceiveFailed, err)
}
