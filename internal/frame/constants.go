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

// Package frame builds and parses PN532 host interface frames
package frame

// Frame identifiers (TFI)
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
	ErrorTFI    = 0x7F // Application level error frame
)

// Frame markers
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// Frame size limits
const (
	// MaxDataLength is the largest TFI+PD payload of a normal frame
	MaxDataLength = 255
	// Overhead is preamble, start code, LEN, LCS, DCS and postamble
	Overhead = 7
	// headerLength covers the start code, LEN and LCS
	headerLength = 4
)

// ACK and NACK frames
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)
