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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport timeout", err: ErrTransportTimeout, want: true},
		{name: "transport read", err: ErrTransportRead, want: true},
		{name: "transport write", err: ErrTransportWrite, want: true},
		{name: "communication failed", err: ErrCommunicationFailed, want: true},
		{name: "no ACK", err: ErrNoACK, want: true},
		{name: "frame corrupted", err: ErrFrameCorrupted, want: true},
		{name: "wrapped timeout", err: fmt.Errorf("read: %w", ErrTransportTimeout), want: true},
		{name: "device busy", err: ErrDeviceBusy, want: false},
		{name: "no target", err: ErrNoTarget, want: false},
		{name: "data too large", err: NewDataTooLargeError("sendFrame", "/dev/ttyUSB0"), want: false},
		{name: "timeout error", err: NewTimeoutError("receiveFrame", "/dev/ttyUSB0"), want: true},
		{name: "not ready error", err: NewTransportNotReadyError("waitReady", "i2c-1"), want: true},
		{
			name: "permanent transport error overrides sentinel",
			err:  NewTransportError("write", "COM3", ErrTransportWrite, ErrorTypePermanent),
			want: false,
		},
		{name: "status error", err: &StatusError{Cmd: cmdInCommunicateThru, Status: 0x01}, want: false},
		{name: "plain error", err: errors.New("something else"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewNoACKError("waitAck", "/dev/ttyUSB0")
	assert.Equal(t, "waitAck on /dev/ttyUSB0: no ACK received", err.Error())
	assert.ErrorIs(t, err, ErrNoACK)
	assert.Equal(t, ErrorTypeTransient, err.Type)

	noPort := NewFrameCorruptedError("receiveFrame", "")
	assert.Equal(t, "receiveFrame: frame corrupted", noPort.Error())

	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "ErrorType(7)", ErrorType(7).String())
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		status  byte
		timeout bool
	}{
		{name: "timeout", status: 0x01, want: "command 42 failed with status 01 (timeout)", timeout: true},
		{name: "timeout with MI flag", status: 0x41, want: "command 42 failed with status 01 (timeout)", timeout: true},
		{name: "CRC", status: 0x02, want: "command 42 failed with status 02 (CRC error)"},
		{name: "card disappeared", status: 0x2B, want: "command 42 failed with status 2B (card disappeared)"},
		{name: "unknown", status: 0x3F, want: "command 42 failed with status 3F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := &StatusError{Cmd: cmdInCommunicateThru, Status: tt.status}
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.timeout, err.Timeout())
		})
	}
}
