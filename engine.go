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
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Engine drives the ISO/IEC 14443-4 half-duplex block protocol over a raw
// Transceiver. It owns no per-card state: everything that changes during a
// card session lives in the Session handed to each call.
//
// Thread Safety: Engine is NOT thread-safe. The protocol is half-duplex and
// a reader carries one card session at a time; serialize all calls.
type Engine struct {
	transceiver TransceiverContext
	config      *Config
	log         *zap.SugaredLogger
	bt          *blockTransceiver
}

// New creates an engine on top of the given transceiver
func New(transceiver Transceiver, opts ...Option) (*Engine, error) {
	if transceiver == nil {
		return nil, fmt.Errorf("%w: nil transceiver", ErrInvalidParameter)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	tc := AsTransceiverContext(transceiver)
	return &Engine{
		transceiver: tc,
		config:      config,
		log:         config.Logger,
		bt: &blockTransceiver{
			t:       tc,
			log:     config.Logger,
			traceTx: config.TraceTx,
			traceRx: config.TraceRx,
		},
	}, nil
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() Config {
	return *e.config
}

// Transceiver returns the underlying transceiver
func (e *Engine) Transceiver() Transceiver {
	return e.transceiver
}

// NegotiateSession runs RATS once and returns the resulting session. It
// must be called after anticollision and before any Exchange.
func (e *Engine) NegotiateSession(ctx context.Context) (*Session, error) {
	return e.negotiate(ctx, nil)
}

func (e *Engine) negotiate(ctx context.Context, target *Target) (*Session, error) {
	const op = "rats"

	rats := BuildRATS(e.config.FSDI, 0)
	reply, err := e.bt.send(ctx, rats)
	if err != nil {
		return nil, &ExchangeError{Op: op, Kind: ErrRatsFailed, Err: transceiveError(err)}
	}

	ats, err := ParseATS(reply)
	if err != nil {
		return nil, &ExchangeError{Op: op, Kind: ErrRatsFailed, Err: err}
	}

	session := newSession(target)
	session.applyATS(ats)
	e.log.Debugw("session negotiated", "ats", ats.String(), "fsc", session.FrameSize())
	return session, nil
}

// Activate checks that target supports ISO/IEC 14443-4 and negotiates a
// session with it. No RATS is sent to a non-compliant card.
func (e *Engine) Activate(ctx context.Context, target *Target) (*Card, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrInvalidParameter)
	}
	if !target.IsISO14443_4Compliant() {
		return nil, &ExchangeError{
			Op:   "activate",
			Kind: ErrNotISO14443_4Compliant,
			Err:  fmt.Errorf("SAK %02X", target.SAK),
		}
	}

	session, err := e.negotiate(ctx, target)
	if err != nil {
		return nil, err
	}
	return &Card{engine: e, session: session, target: target}, nil
}

// Deselect sends S(DESELECT) and waits for the card to confirm it. The block
// number is left untouched; the session is finished either way.
func (e *Engine) Deselect(ctx context.Context, s *Session) error {
	const op = "deselect"

	if s == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidParameter)
	}

	reply, err := e.bt.send(ctx, BuildSBlockDeselect())
	if err != nil {
		return &ExchangeError{Op: op, Kind: ErrTransceiveFailed, Err: transceiveError(err)}
	}

	bt, err := Classify(reply)
	if err != nil {
		return unsupportedBlockError(op, StateIdle, reply, err)
	}
	if bt != BlockTypeS || SBlockSubtype(reply[0]) != SBlockDeselect {
		return unsupportedBlockError(op, StateIdle, reply, nil)
	}
	return nil
}

func unsupportedBlockError(op string, state ExchangeState, reply []byte, cause error) *ExchangeError {
	xerr := &ExchangeError{Op: op, Kind: ErrUnsupportedBlock, State: state, Err: cause}
	if len(reply) > 0 {
		xerr.PCB = reply[0]
		xerr.HasPCB = true
	}
	if cause != nil && errors.Is(cause, ErrUnsupportedBlock) {
		xerr.Err = nil
	}
	return xerr
}
