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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-iso14443"
)

// Transport errors
var (
	ErrTransportTimeout    = errors.New("transport timeout")
	ErrTransportRead       = errors.New("transport read failed")
	ErrTransportWrite      = errors.New("transport write failed")
	ErrTransportClosed     = errors.New("transport closed")
	ErrCommunicationFailed = errors.New("communication failed")
	ErrNoACK               = errors.New("no ACK received")
	ErrFrameCorrupted      = errors.New("frame corrupted")
	ErrDataTooLarge        = errors.New("data too large for frame")
	ErrDeviceNotReady      = errors.New("device not ready")
	ErrDeviceBusy          = errors.New("device is in use by another process")
)

// Device errors
var (
	ErrInvalidResponse  = errors.New("invalid response")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoTarget         = iso14443.ErrNoTarget
	ErrNotInitialized   = errors.New("device not initialized")
)

// ErrorType classifies transport failures for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by retrying
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on retry
	ErrorTypeTransient
	// ErrorTypeTimeout errors are deadlines that expired
	ErrorTypeTimeout
)

// String returns the error type name
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError carries the operation and port a transport failure
// happened on.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error. Transient and timeout errors
// are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewNoACKError creates a retryable missing-ACK error
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTransient)
}

// NewFrameCorruptedError creates a retryable frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewDataTooLargeError creates a permanent frame size error
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportNotReadyError creates a retryable not-ready error
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDeviceNotReady, ErrorTypeTransient)
}

// IsRetryable reports whether err is worth retrying at transport level
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupted):
		return true
	default:
		return false
	}
}

// statusText holds the PN532 error codes of the status byte (UM0701-02 §7.1)
var statusText = map[byte]string{
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x04: "erroneous bit count",
	0x05: "framing error",
	0x06: "bit collision",
	0x07: "buffer size insufficient",
	0x09: "RF buffer overflow",
	0x0A: "RF field not switched on in time",
	0x0B: "RF protocol error",
	0x0D: "temperature error",
	0x0E: "internal buffer overflow",
	0x10: "invalid parameter",
	0x12: "DEP command not supported",
	0x13: "data format mismatch",
	0x14: "authentication error",
	0x23: "wrong UID check byte",
	0x25: "invalid device state",
	0x26: "operation not allowed",
	0x27: "command not acceptable",
	0x29: "target released",
	0x2A: "card ID mismatch",
	0x2B: "card disappeared",
	0x2C: "NFCID3 mismatch",
	0x2D: "over-current",
	0x2E: "NAD missing",
}

// statusErrorMask strips the MI and NAD flags from a status byte
const statusErrorMask = 0x3F

// StatusError is a non-zero status byte returned by a PN532 command.
type StatusError struct {
	Cmd    byte
	Status byte
}

func (e *StatusError) Error() string {
	code := e.Status & statusErrorMask
	if text, ok := statusText[code]; ok {
		return fmt.Sprintf("command %02X failed with status %02X (%s)", e.Cmd, code, text)
	}
	return fmt.Sprintf("command %02X failed with status %02X", e.Cmd, code)
}

// Timeout reports whether the card did not answer in time
func (e *StatusError) Timeout() bool {
	return e.Status&statusErrorMask == 0x01
}
