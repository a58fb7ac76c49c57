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

package apdu

import (
	"context"
	"fmt"
)

// maxGetResponse bounds the GET RESPONSE rounds of one command
const maxGetResponse = 16

// Transmitter exchanges one command APDU with a card. *iso14443.Card is
// one.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// TransmitterContext is a Transmitter with context support
type TransmitterContext interface {
	Transmitter
	TransmitContext(ctx context.Context, cmd []byte) ([]byte, error)
}

// Send transmits cmd and parses the response. A 61XX status is followed by
// GET RESPONSE and the data joined; 6CXX repeats cmd with the Le the card
// asked for. The status word is not checked; use Response.Err.
func Send(ctx context.Context, t Transmitter, cmd []byte) (*Response, error) {
	if len(cmd) < 4 {
		return nil, fmt.Errorf("%w: %d byte header", ErrInvalidCommand, len(cmd))
	}

	resp, err := transmit(ctx, t, cmd)
	if err != nil {
		return nil, err
	}

	if resp.SW.SW1() == 0x6C {
		retry := append([]byte(nil), cmd...)
		if len(retry) == 4 {
			retry = append(retry, resp.SW.SW2())
		} else {
			retry[len(retry)-1] = resp.SW.SW2()
		}
		if resp, err = transmit(ctx, t, retry); err != nil {
			return nil, err
		}
	}

	data := resp.Data
	for round := 0; resp.SW.SW1() == 0x61; round++ {
		if round == maxGetResponse {
			return nil, fmt.Errorf("%w: more than %d GET RESPONSE rounds", ErrInvalidCommand, maxGetResponse)
		}
		if resp, err = transmit(ctx, t, GetResponse(resp.SW.SW2())); err != nil {
			return nil, err
		}
		data = append(data, resp.Data...)
	}
	resp.Data = data
	return resp, nil
}

func transmit(ctx context.Context, t Transmitter, cmd []byte) (*Response, error) {
	var raw []byte
	var err error
	if tc, ok := t.(TransmitterContext); ok {
		raw, err = tc.TransmitContext(ctx, cmd)
	} else {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err = t.Transmit(cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	return ParseResponse(raw)
}
