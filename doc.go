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
Package iso14443 implements the ISO/IEC 14443-4 half-duplex block
transmission protocol (T=CL) as profiled by the EMV Contactless
Communication Protocol.

The package sits between a raw contactless reader, which performs
anticollision and sends single frames, and APDU-level application code. It
provides:
  - I, R and S block framing with CRC_A
  - RATS/ATS negotiation of the card frame size
  - chaining of long commands and reassembly of chained responses
  - waiting time extension (WTX) handling bounded to 32 requests
  - typed, fatal protocol errors

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-iso14443"
	    "github.com/ZaparooProject/go-iso14443/pn532"
	    "github.com/ZaparooProject/go-iso14443/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	reader, err := pn532.New(transport)
	if err != nil {
	    log.Fatal(err)
	}
	defer reader.Close()
	if err := reader.Init(ctx); err != nil {
	    log.Fatal(err)
	}

	engine, err := iso14443.New(reader, iso14443.WithLogger(logger.Sugar()))
	if err != nil {
	    log.Fatal(err)
	}

	target, err := reader.Detect(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	card, err := engine.Activate(ctx, target)
	if err != nil {
	    log.Fatal(err)
	}
	resp, err := card.TransmitContext(ctx, apdu.SelectByName("2PAY.SYS.DDF01"))

Readers:

Any type implementing Transceiver can carry the protocol. It must send
frames verbatim and return replies including their CRC_A trailer. The
repository ships PN532 (UART, I2C) and libnfc backed readers.

Error Handling:

Every protocol failure is fatal to the card session and can be inspected
with errors.Is:

	if errors.Is(err, iso14443.ErrWTXRetryExceeded) {
	    // card kept asking for more time
	}

GetErrorKind maps an error to its ErrorKind.

Thread Safety:

Engine, Session and Card are not thread-safe. The protocol is half-duplex;
one card session must be processed at a time.
*/
package iso14443
