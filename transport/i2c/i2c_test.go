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

package i2c

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-iso14443/internal/frame"
	"github.com/ZaparooProject/go-iso14443/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus answers reads from a queue, reporting not-ready when it runs dry
type fakeBus struct {
	readErr error
	reads   [][]byte
	written [][]byte
	mu      sync.Mutex
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w != nil {
		b.written = append(b.written, append([]byte(nil), w...))
	}
	if r == nil {
		return nil
	}
	if b.readErr != nil {
		return b.readErr
	}
	clear(r)
	if len(b.reads) == 0 {
		return nil
	}
	copy(r, b.reads[0])
	b.reads = b.reads[1:]
	return nil
}

func (b *fakeBus) Writes() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.written...)
}

// ready prefixes data with the ready status byte
func ready(data []byte) []byte {
	return append([]byte{pn532Ready}, data...)
}

func responseFrame(data ...byte) []byte {
	body := append([]byte{frame.Pn532ToHost}, data...)
	out := []byte{0x00, 0x00, 0xFF, byte(len(body)), frame.CalculateLengthChecksum(byte(len(body)))}
	out = append(out, body...)
	return append(out, frame.CalculateDataChecksum(frame.Pn532ToHost, data), 0x00)
}

func TestTransportProperties(t *testing.T) {
	t.Parallel()

	tr := newTransport("/dev/i2c-1", &fakeBus{})
	assert.Equal(t, pn532.TransportI2C, tr.Type())
	assert.True(t, tr.IsConnected())
	require.ErrorIs(t, tr.SetTimeout(-time.Second), pn532.ErrInvalidParameter)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{reads: [][]byte{
		{0x00},
		ready(frame.AckFrame),
		{0x00},
		ready(responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)),
	}}
	tr := newTransport("/dev/i2c-1", bus)

	resp, err := tr.SendCommand(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, resp)

	cmdFrame, err := frame.Build(0x02, nil)
	require.NoError(t, err)
	writes := bus.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, cmdFrame, writes[0])
	assert.Equal(t, frame.AckFrame, writes[1])
}

func TestSendCommand_CorruptedFrameIsNacked(t *testing.T) {
	t.Parallel()

	bad := responseFrame(0x4B, 0x00)
	bad[len(bad)-2] ^= 0x55
	bus := &fakeBus{reads: [][]byte{
		ready(frame.AckFrame),
		ready(bad),
		ready(responseFrame(0x4B, 0x00)),
	}}
	tr := newTransport("/dev/i2c-1", bus)

	resp, err := tr.SendCommand(0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4B, 0x00}, resp)

	writes := bus.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, frame.NackFrame, writes[1])
	assert.Equal(t, frame.AckFrame, writes[2])
}

func TestSendCommand_Errors(t *testing.T) {
	t.Parallel()

	t.Run("never ready", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{})
		require.NoError(t, tr.SetTimeout(10*time.Millisecond))

		_, err := tr.SendCommand(0x02, nil)
		require.ErrorIs(t, err, pn532.ErrNoACK)
	})

	t.Run("no response", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{reads: [][]byte{ready(frame.AckFrame)}})
		require.NoError(t, tr.SetTimeout(10*time.Millisecond))

		_, err := tr.SendCommand(0x02, nil)
		require.ErrorIs(t, err, pn532.ErrTransportTimeout)
	})

	t.Run("bus failure", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{readErr: errors.New("remote I/O error")})

		_, err := tr.SendCommand(0x02, nil)
		require.ErrorIs(t, err, pn532.ErrTransportRead)
	})

	t.Run("data too large", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{})

		_, err := tr.SendCommand(0x40, make([]byte, 256))
		require.ErrorIs(t, err, pn532.ErrDataTooLarge)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.SendCommandContext(ctx, 0x02, nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		tr := newTransport("/dev/i2c-1", &fakeBus{})
		require.NoError(t, tr.Close())
		assert.False(t, tr.IsConnected())

		_, err := tr.SendCommand(0x02, nil)
		require.ErrorIs(t, err, pn532.ErrTransportClosed)
	})
}
