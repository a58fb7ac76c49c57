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
	"fmt"
)

// ExchangeState is the position of an APDU exchange in the block protocol.
type ExchangeState int

const (
	StateIdle ExchangeState = iota
	StateFragmenting
	StateAwaitingChainAck
	StateReceivingChained
	StateDone
	StateAborted
)

// String returns the state name
func (s ExchangeState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFragmenting:
		return "Fragmenting"
	case StateAwaitingChainAck:
		return "AwaitingChainAck"
	case StateReceivingChained:
		return "ReceivingChained"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("ExchangeState(%d)", int(s))
	}
}

const opExchange = "exchange"

// Exchange sends one APDU and returns the card's complete response. The
// command is chained over as many I-blocks as the frame sizes require and a
// chained response is reassembled. Up to MaxWTXRetries waiting time
// extensions are granted per chained block.
//
// Any error is fatal to the card session: the block numbers of reader and
// card may disagree afterwards.
func (e *Engine) Exchange(ctx context.Context, s *Session, cmd []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidParameter)
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidParameter)
	}

	x := &exchange{engine: e, session: s}
	reply, err := x.transmit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return x.receive(ctx, reply)
}

// exchange is the state of one Exchange call.
type exchange struct {
	engine  *Engine
	session *Session
	state   ExchangeState
	wtx     int
}

func (x *exchange) abort(kind error, reply []byte, cause error) error {
	xerr := &ExchangeError{Op: opExchange, Kind: kind, State: x.state, Err: cause}
	if len(reply) > 0 {
		xerr.PCB = reply[0]
		xerr.HasPCB = true
	}
	x.state = StateAborted
	x.engine.log.Debugw("exchange aborted", "state", xerr.State.String(), "error", xerr)
	return xerr
}

// transmit sends cmd as a chain of I-blocks and returns the card's reply to
// the last one.
func (x *exchange) transmit(ctx context.Context, cmd []byte) ([]byte, error) {
	s := x.session
	maxFragment := s.MaxTxFragment(x.engine.config.HardwareFrameLimit)
	if maxFragment < 1 {
		return nil, fmt.Errorf("%w: frame size %d leaves no room for INF", ErrInvalidParameter, s.FrameSize())
	}

	x.state = StateFragmenting
	for start := 0; start < len(cmd); start += maxFragment {
		end := min(start+maxFragment, len(cmd))
		last := end == len(cmd)

		reply, err := x.engine.bt.send(ctx, BuildIBlock(cmd[start:end], s.toggle, !last))
		s.flip()

		if last {
			if err != nil {
				return nil, x.abort(ErrTransceiveFailed, nil, transceiveError(err))
			}
			x.state = StateReceivingChained
			return reply, nil
		}

		x.state = StateAwaitingChainAck
		if err != nil {
			return nil, x.abort(ErrChainedTransmitRejected, nil, transceiveError(err))
		}
		if err := x.checkChainAck(reply); err != nil {
			return nil, err
		}
		x.state = StateFragmenting
	}

	return nil, fmt.Errorf("%w: empty command", ErrInvalidParameter)
}

// checkChainAck accepts only R(ACK) as the reply to a chaining I-block.
func (x *exchange) checkChainAck(reply []byte) error {
	if x.engine.config.CheckRxCRC && !CheckCRC(reply) {
		return x.abort(ErrChainedTransmitRejected, reply, ErrCRCMismatch)
	}

	bt, err := Classify(reply)
	if err != nil {
		return x.abort(ErrChainedTransmitRejected, reply, err)
	}
	if bt != BlockTypeR {
		return x.abort(ErrChainedTransmitRejected, reply, fmt.Errorf("got %s", bt))
	}
	if IsNAK(reply[0]) {
		return x.abort(ErrChainedTransmitRejected, reply, fmt.Errorf("got R(NAK)"))
	}
	return nil
}

// receive collects the response starting with reply, acknowledging chained
// I-blocks and granting WTX requests.
func (x *exchange) receive(ctx context.Context, reply []byte) ([]byte, error) {
	s := x.session
	var response []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, x.abort(ErrTransceiveFailed, nil, err)
		}
		if x.engine.config.CheckRxCRC && !CheckCRC(reply) {
			return nil, x.abort(ErrTransceiveFailed, reply, ErrCRCMismatch)
		}

		bt, err := Classify(reply)
		if err != nil {
			return nil, x.abort(ErrUnsupportedBlock, reply, err)
		}
		pcb := reply[0]

		switch bt {
		case BlockTypeI:
			if len(reply) < blockFrameOverhead {
				return nil, x.abort(ErrUnsupportedBlock, reply, ErrMalformedBlock)
			}
			response = append(response, INF(reply)...)
			if !IsChaining(pcb) {
				x.state = StateDone
				if response == nil {
					response = []byte{}
				}
				return response, nil
			}

			x.wtx = 0
			reply, err = x.engine.bt.send(ctx, BuildRBlock(s.toggle, false))
			s.flip()
			if err != nil {
				return nil, x.abort(ErrTransceiveFailed, nil, transceiveError(err))
			}

		case BlockTypeS:
			if SBlockSubtype(pcb) != SBlockWTX {
				return nil, x.abort(ErrUnsupportedBlock, reply, nil)
			}
			if len(reply) < pcbLen+1 {
				return nil, x.abort(ErrUnsupportedBlock, reply, ErrMalformedBlock)
			}
			wtxm := reply[1] & wtxMultiplierMask
			x.engine.log.Debugw("granting WTX", "multiplier", wtxm, "count", x.wtx+1)

			reply, err = x.engine.bt.send(ctx, BuildSBlockWTX(wtxm))
			if err != nil {
				return nil, x.abort(ErrTransceiveFailed, nil, transceiveError(err))
			}
			x.wtx++
			if x.wtx >= MaxWTXRetries {
				return nil, x.abort(ErrWTXRetryExceeded, nil, fmt.Errorf("%d consecutive requests", x.wtx))
			}

		default:
			return nil, x.abort(ErrUnsupportedBlock, reply, nil)
		}
	}
}
