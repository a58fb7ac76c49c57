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

/*
Package pn532 drives an NXP PN532 as a raw ISO/IEC 14443 type A reader for
the iso14443 block protocol.

The PN532 firmware can activate cards to layer 4 on its own and wrap
InDataExchange around T=CL. This package deliberately does not use that:
automatic RATS is switched off, anticollision stops at layer 3 and every
block goes out through InCommunicateThru with the CIU CRC engine disabled.
The host then sees the ATS and owns block numbering, chaining and WTX.

Basic Usage:

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := pn532.New(transport, pn532.WithLogger(logger))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	if err := device.Init(ctx); err != nil {
	    log.Fatal(err)
	}

	target, err := device.Detect(ctx)
	if errors.Is(err, pn532.ErrNoTarget) {
	    // nothing in the field
	}

	engine, _ := iso14443.New(device)
	card, err := engine.Activate(ctx, target)

Transport Selection:

  - UART (HSU): USB-to-serial adapters and most breakout boards
  - I2C: embedded hosts, via periph.io

Error Handling:

Transport failures are *TransportError values; IsRetryable tells transient
ones apart. A card-level failure reported by the PN532 status byte is a
*StatusError:

	var se *pn532.StatusError
	if errors.As(err, &se) && se.Timeout() {
	    // the card did not answer
	}

Thread Safety:

Device operations are not thread-safe. If you need concurrent access,
implement appropriate synchronization in your application.
*/
package pn532
