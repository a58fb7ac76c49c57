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

// Package i2c provides the PN532 I2C host transport
package i2c

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-iso14443/internal/frame"
	"github.com/ZaparooProject/go-iso14443/internal/transport"
	"github.com/ZaparooProject/go-iso14443/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the 7-bit PN532 I2C address
	Address = 0x24

	// pn532Ready is the status byte preceding every read once the PN532
	// has data
	pn532Ready = 0x01

	maxClockFreq      = 400 * physic.KiloHertz
	defaultTimeout    = 100 * time.Millisecond
	processingDelay   = 6 * time.Millisecond
	maxReceiveRetries = 3
)

// txer is the part of a periph I2C device the transport uses
type txer interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.Transport over I2C
type Transport struct {
	dev     txer
	closer  io.Closer
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens busName ("" selects the first bus) and addresses the PN532 on it
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// Bus speed is best effort; the default speed works too.
	_ = bus.SetSpeed(maxClockFreq)

	t := newTransport(busName, &i2c.Dev{Addr: Address, Bus: bus})
	t.closer = bus
	return t, nil
}

func newTransport(busName string, dev txer) *Transport {
	return &Transport{
		dev:     dev,
		busName: busName,
		timeout: defaultTimeout,
	}
}

// SendCommand sends a command to the PN532 and waits for its response
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandContext(context.Background(), cmd, args)
}

// SendCommandContext sends a command and reads the response, giving up
// when ctx is done
func (t *Transport) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.dev == nil {
		return nil, pn532.NewTransportError("sendCommand", t.busName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	out, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("sendFrame", t.busName)
	}
	if err := t.write(out); err != nil {
		return nil, err
	}

	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	time.Sleep(processingDelay)

	return t.receiveFrame(ctx)
}

func (t *Transport) write(data []byte) error {
	if err := t.dev.Tx(data, nil); err != nil {
		return pn532.NewTransportError("write", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err),
			pn532.ErrorTypeTransient)
	}
	return nil
}

// readReady reads n bytes after the status byte. ok is false while the
// PN532 is still busy.
func (t *Transport) readReady(n int) (data []byte, ok bool, err error) {
	buf := make([]byte, n+1)
	if err := t.dev.Tx(nil, buf); err != nil {
		return nil, false, pn532.NewTransportError("read", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err),
			pn532.ErrorTypeTransient)
	}
	if buf[0] != pn532Ready {
		return nil, false, nil
	}
	return buf[1:], true, nil
}

// waitAck polls until the PN532 is ready and has sent its ACK frame
func (t *Transport) waitAck(ctx context.Context) error {
	_, err := transport.TimeoutRetry(t.timeout, t.busName, func() (struct{}, bool, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, false, err
		}
		data, ok, err := t.readReady(len(frame.AckFrame))
		if err != nil || !ok {
			return struct{}{}, err == nil, err
		}
		return struct{}{}, frame.AckEnd(data) < 0, nil
	})
	if err != nil {
		var te *pn532.TransportError
		if errors.As(err, &te) && te.Type == pn532.ErrorTypeTimeout {
			return pn532.NewNoACKError("waitAck", t.busName)
		}
		return err
	}
	return nil
}

// receiveFrame reads the response frame, answering corrupted frames with
// NACK and good ones with ACK
func (t *Transport) receiveFrame(ctx context.Context) ([]byte, error) {
	cfg := transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.busName,
		MaxRetries:  maxReceiveRetries,
		OnRetry: func() error {
			return t.write(frame.NackFrame)
		},
	}

	payload, err := transport.WithRetry(ctx, cfg, func() ([]byte, bool, error) {
		return t.receiveFrameAttempt(ctx)
	})
	if err != nil {
		return nil, err
	}
	if err := t.write(frame.AckFrame); err != nil {
		return nil, err
	}
	return payload, nil
}

func (t *Transport) receiveFrameAttempt(ctx context.Context) ([]byte, bool, error) {
	buf, err := transport.TimeoutRetry(t.timeout, t.busName, func() ([]byte, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		data, ok, err := t.readReady(frame.MaxDataLength + frame.Overhead)
		return data, err == nil && !ok, err
	})
	if err != nil {
		return nil, false, err
	}

	payload, _, err := frame.Parse(buf)
	switch {
	case err == nil:
		return payload, false, nil
	case frame.IsRetryable(err), errors.Is(err, frame.ErrShortFrame):
		return nil, true, nil
	case errors.Is(err, frame.ErrErrorFrame):
		return nil, false, fmt.Errorf("%w: %w", pn532.ErrInvalidResponse, err)
	default:
		return nil, false, fmt.Errorf("%w: %w", pn532.ErrFrameCorrupted, err)
	}
}

// SetTimeout sets how long to wait for the ACK and for the response
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", pn532.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the I2C bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dev = nil
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	if err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true while the bus is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

var _ pn532.TransportContext = (*Transport)(nil)
