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
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
)

// Transceiver is the raw single-frame primitive of a contactless reader.
// Transceive sends out exactly as given (the CRC_A trailer is already
// appended) and returns the card's reply bytes, trailer included. Readers
// must leave CRC generation and checking to the caller.
type Transceiver interface {
	Transceive(out []byte) ([]byte, error)
}

// TransceiverContext is a Transceiver that honours context cancellation.
type TransceiverContext interface {
	Transceiver

	// TransceiveContext sends one frame with context support
	TransceiveContext(ctx context.Context, out []byte) ([]byte, error)
}

// transceiverContextAdapter wraps a Transceiver to provide context support
type transceiverContextAdapter struct {
	Transceiver
}

// TransceiveContext runs the frame exchange in a goroutine so that the
// caller is released as soon as ctx is done. The abandoned exchange still
// completes on the reader; the session must not be reused afterwards.
func (t *transceiverContextAdapter) TransceiveContext(ctx context.Context, out []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled before transceive: %w", ctx.Err())
	default:
	}

	type result struct {
		err  error
		data []byte
	}
	resultChan := make(chan result, 1)

	go func() {
		data, err := t.Transceive(out)
		resultChan <- result{err, data}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for reply: %w", ctx.Err())
	case res := <-resultChan:
		return res.data, res.err
	}
}

// AsTransceiverContext converts a Transceiver to TransceiverContext
func AsTransceiverContext(t Transceiver) TransceiverContext {
	if tc, ok := t.(TransceiverContext); ok {
		return tc
	}
	return &transceiverContextAdapter{Transceiver: t}
}

// blockTransceiver sends one block and returns the raw reply. It neither
// retries nor interprets the reply; that is the engine's job.
type blockTransceiver struct {
	t       TransceiverContext
	log     *zap.SugaredLogger
	traceTx bool
	traceRx bool
}

func (b *blockTransceiver) send(ctx context.Context, blk Block) ([]byte, error) {
	frame := blk.Bytes()
	if b.traceTx {
		b.log.Debugw("tx", "pcb", fmt.Sprintf("%02X", blk.PCB), "frame", hex.EncodeToString(frame))
	}

	reply, err := b.t.TransceiveContext(ctx, frame)
	if err != nil {
		if b.traceRx {
			b.log.Debugw("rx failed", "pcb", fmt.Sprintf("%02X", blk.PCB), "error", err)
		}
		return nil, err
	}

	if b.traceRx {
		name := "unknown"
		if bt, cerr := Classify(reply); cerr == nil {
			name = bt.String()
		}
		b.log.Debugw("rx", "type", name, "frame", hex.EncodeToString(reply))
	}
	return reply, nil
}
