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

// Package uart provides the PN532 high speed UART (HSU) host transport
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-iso14443/internal/frame"
	"github.com/ZaparooProject/go-iso14443/internal/transport"
	"github.com/ZaparooProject/go-iso14443/pn532"
	"go.bug.st/serial"
)

const (
	// BaudRate is the PN532 HSU default speed
	BaudRate = 115200

	defaultTimeout = 100 * time.Millisecond
	// readPollInterval bounds every blocking serial read so deadlines and
	// cancellation are observed.
	readPollInterval = 10 * time.Millisecond
	// maxReceiveRetries is the number of NACK driven re-reads of a
	// corrupted response frame
	maxReceiveRetries = 3
)

// wakeUp brings the PN532 out of low power mode before the first command
var wakeUp = []byte{
	0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Transport implements pn532.Transport over a serial port
type Transport struct {
	port     serial.Port
	lock     *portLock
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	awake    bool
}

// New opens portName at 115200 8N1. The device is locked for the lifetime
// of the transport; a second opener gets pn532.ErrDeviceBusy.
func New(portName string) (*Transport, error) {
	lock, err := acquireLock(portName)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		_ = lock.release()
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
			return nil, pn532.NewTransportError("open", portName, pn532.ErrDeviceBusy, pn532.ErrorTypePermanent)
		}
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readPollInterval); err != nil {
		_ = port.Close()
		_ = lock.release()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	t := newTransport(portName, port)
	t.lock = lock
	return t, nil
}

func newTransport(portName string, port serial.Port) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}
}

// SendCommand sends a command to the PN532 and waits for its response
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandContext(context.Background(), cmd, args)
}

// SendCommandContext sends a command and reads the response, giving up
// when ctx is done. The response starts with the response code.
func (t *Transport) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.port == nil {
		return nil, pn532.NewTransportError("sendCommand", t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	out, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("sendCommand", t.portName)
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, pn532.NewTransportError("sendCommand", t.portName, err, pn532.ErrorTypeTransient)
	}
	if !t.awake {
		if err := t.write(wakeUp); err != nil {
			return nil, err
		}
		t.awake = true
	}
	if err := t.write(out); err != nil {
		return nil, err
	}

	rest, err := t.waitAck(ctx)
	if err != nil {
		return nil, err
	}
	return t.receiveFrame(ctx, rest)
}

func (t *Transport) write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return pn532.NewTransportError("write", t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err),
			pn532.ErrorTypeTransient)
	}
	if n != len(data) {
		return pn532.NewTransportError("write", t.portName,
			fmt.Errorf("%w: short write %d of %d", pn532.ErrTransportWrite, n, len(data)), pn532.ErrorTypeTransient)
	}
	return nil
}

// read appends whatever arrives within one poll interval to buf
func (t *Transport) read(buf []byte) ([]byte, error) {
	chunk := make([]byte, frame.MaxDataLength+frame.Overhead)
	n, err := t.port.Read(chunk)
	if err != nil {
		return buf, pn532.NewTransportError("read", t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err),
			pn532.ErrorTypeTransient)
	}
	return append(buf, chunk[:n]...), nil
}

// waitAck reads until an ACK frame arrives and returns any bytes received
// after it.
func (t *Transport) waitAck(ctx context.Context) ([]byte, error) {
	var buf []byte
	rest, err := transport.TimeoutRetry(t.timeout, t.portName, func() ([]byte, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		var err error
		if buf, err = t.read(buf); err != nil {
			return nil, false, err
		}
		if end := frame.AckEnd(buf); end >= 0 {
			return buf[end:], false, nil
		}
		return nil, true, nil
	})
	if err != nil {
		var te *pn532.TransportError
		if errors.As(err, &te) && te.Type == pn532.ErrorTypeTimeout {
			return nil, pn532.NewNoACKError("waitAck", t.portName)
		}
		return nil, err
	}
	return rest, nil
}

// receiveFrame reads the response frame starting with the bytes in buf,
// answering corrupted frames with NACK.
func (t *Transport) receiveFrame(ctx context.Context, buf []byte) ([]byte, error) {
	cfg := transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.portName,
		MaxRetries:  maxReceiveRetries,
		OnRetry: func() error {
			buf = nil
			return t.write(frame.NackFrame)
		},
	}

	return transport.WithRetry(ctx, cfg, func() ([]byte, bool, error) {
		return t.receiveFrameAttempt(ctx, &buf)
	})
}

func (t *Transport) receiveFrameAttempt(ctx context.Context, buf *[]byte) ([]byte, bool, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		payload, _, err := frame.Parse(*buf)
		switch {
		case err == nil:
			return payload, false, nil
		case frame.IsRetryable(err):
			return nil, true, nil
		case errors.Is(err, frame.ErrErrorFrame):
			return nil, false, fmt.Errorf("%w: %w", pn532.ErrInvalidResponse, err)
		case !errors.Is(err, frame.ErrShortFrame) && !errors.Is(err, frame.ErrNoStartCode):
			return nil, false, fmt.Errorf("%w: %w", pn532.ErrFrameCorrupted, err)
		}

		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !time.Now().Before(deadline) {
			return nil, false, pn532.NewTimeoutError("receiveFrame", t.portName)
		}
		if *buf, err = t.read(*buf); err != nil {
			return nil, false, err
		}
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

// Close closes the serial port and releases the device lock
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.awake = false
	if lockErr := t.lock.release(); lockErr != nil && err == nil {
		err = lockErr
	}
	t.lock = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// PortName returns the serial device path
func (t *Transport) PortName() string {
	return t.portName
}

var _ pn532.TransportContext = (*Transport)(nil)
