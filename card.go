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
)

// Card is an activated ISO/IEC 14443-4 card: the engine, the negotiated
// session and the target it was negotiated with. It satisfies the APDU
// transmitter interfaces of the apdu and type4 packages.
//
// Thread Safety: Card is NOT thread-safe.
type Card struct {
	engine  *Engine
	session *Session
	target  *Target
}

// Transmit exchanges one APDU with the card
func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	return c.TransmitContext(context.Background(), cmd)
}

// TransmitContext exchanges one APDU with the card with context support
func (c *Card) TransmitContext(ctx context.Context, cmd []byte) ([]byte, error) {
	return c.engine.Exchange(ctx, c.session, cmd)
}

// Session returns the card's link session
func (c *Card) Session() *Session {
	return c.session
}

// Target returns the anticollision data of the card
func (c *Card) Target() *Target {
	return c.target
}

// ATS returns the card's Answer To Select
func (c *Card) ATS() *ATS {
	return c.session.ATS()
}

// Close deselects the card. The card cannot be used afterwards even when
// deselection fails.
func (c *Card) Close() error {
	return c.CloseContext(context.Background())
}

// CloseContext deselects the card with context support
func (c *Card) CloseContext(ctx context.Context) error {
	return c.engine.Deselect(ctx, c.session)
}
