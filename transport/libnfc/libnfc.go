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

//go:build libnfc

// Package libnfc adapts any reader supported by libnfc into a raw ISO/IEC
// 14443 type A frame transceiver. It requires cgo and libnfc; build with
// the libnfc tag.
package libnfc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-iso14443"
	"github.com/clausecker/nfc/v2"
	"go.uber.org/zap"
)

// maxFrameSize covers a 256 byte frame plus the CRC_A trailer
const maxFrameSize = 258

var typeA106 = nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}

// device is the part of nfc.Device the reader uses
type device interface {
	InitiatorInit() error
	SetPropertyBool(property int, value bool) error
	InitiatorSelectPassiveTarget(m nfc.Modulation, initData []byte) (nfc.Target, error)
	InitiatorTransceiveBytes(tx, rx []byte, timeout int) (int, error)
	InitiatorDeselectTarget() error
	Close() error
}

// Reader is a libnfc device in initiator mode
type Reader struct {
	dev     device
	log     *zap.SugaredLogger
	target  *iso14443.Target
	timeout time.Duration
}

// Option configures a Reader
type Option func(*Reader) error

// WithLogger sets the reader logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Reader) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", iso14443.ErrInvalidParameter)
		}
		r.log = logger
		return nil
	}
}

// WithTimeout sets the per-frame timeout handed to libnfc
func WithTimeout(timeout time.Duration) Option {
	return func(r *Reader) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", iso14443.ErrInvalidParameter)
		}
		r.timeout = timeout
		return nil
	}
}

// Open opens the libnfc device named by connstring ("" picks the first
// one) and puts it in initiator mode with raw framing.
func Open(connstring string, opts ...Option) (*Reader, error) {
	dev, err := nfc.Open(connstring)
	if err != nil {
		return nil, fmt.Errorf("failed to open libnfc device %q: %w", connstring, err)
	}
	r, err := newReader(dev, opts...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return r, nil
}

func newReader(dev device, opts ...Option) (*Reader, error) {
	r := &Reader{
		dev:     dev,
		log:     zap.NewNop().Sugar(),
		timeout: time.Second,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if err := dev.InitiatorInit(); err != nil {
		return nil, fmt.Errorf("failed to initialize initiator: %w", err)
	}
	// RATS is sent by the protocol engine, frames go out as built.
	for _, p := range []struct {
		property int
		value    bool
	}{
		{nfc.InfiniteSelect, false},
		{nfc.AutoISO14443_4, false},
		{nfc.EasyFraming, false},
	} {
		if err := dev.SetPropertyBool(p.property, p.value); err != nil {
			return nil, fmt.Errorf("failed to set property %d: %w", p.property, err)
		}
	}
	return r, nil
}

// Detect runs anticollision for one type A card at 106 kbps. The reader
// computes CRC_A during anticollision only.
func (r *Reader) Detect(ctx context.Context) (*iso14443.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.dev.SetPropertyBool(nfc.HandleCRC, true); err != nil {
		return nil, fmt.Errorf("failed to enable CRC handling: %w", err)
	}

	t, err := r.dev.InitiatorSelectPassiveTarget(typeA106, nil)
	if err != nil {
		var nerr nfc.Error
		if errors.As(err, &nerr) && nerr == nfc.ETIMEOUT {
			return nil, iso14443.ErrNoTarget
		}
		return nil, fmt.Errorf("passive target selection failed: %w", err)
	}
	card, ok := t.(*nfc.ISO14443aTarget)
	if !ok || card.UIDLen == 0 {
		return nil, iso14443.ErrNoTarget
	}

	if err := r.dev.SetPropertyBool(nfc.HandleCRC, false); err != nil {
		return nil, fmt.Errorf("failed to disable CRC handling: %w", err)
	}

	r.target = &iso14443.Target{
		UID:  append([]byte(nil), card.UID[:card.UIDLen]...),
		ATQA: card.Atqa,
		SAK:  card.Sak,
	}
	r.log.Debugw("target selected", "target", r.target.String())
	return r.target, nil
}

// Target returns the last detected target
func (r *Reader) Target() *iso14443.Target {
	return r.target
}

// Transceive sends one raw frame and returns the reply, CRC_A included
func (r *Reader) Transceive(out []byte) ([]byte, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty frame", iso14443.ErrInvalidParameter)
	}
	rx := make([]byte, maxFrameSize)
	n, err := r.dev.InitiatorTransceiveBytes(out, rx, int(r.timeout/time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("transceive failed: %w", err)
	}
	return rx[:n], nil
}

// TransceiveContext checks ctx and sends one frame. libnfc bounds the
// exchange with the reader timeout.
func (r *Reader) TransceiveContext(ctx context.Context, out []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Transceive(out)
}

// Release deselects the current target
func (r *Reader) Release(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.target = nil
	if err := r.dev.InitiatorDeselectTarget(); err != nil {
		return fmt.Errorf("failed to deselect target: %w", err)
	}
	return nil
}

// Close closes the libnfc device
func (r *Reader) Close() error {
	if err := r.dev.Close(); err != nil {
		return fmt.Errorf("failed to close libnfc device: %w", err)
	}
	return nil
}

var _ iso14443.TransceiverContext = (*Reader)(nil)
