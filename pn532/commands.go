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

package pn532

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdReadRegister        = 0x06
	cmdWriteRegister       = 0x08
	cmdSetParameters       = 0x12
	cmdSamConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInCommunicateThru   = 0x42
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// SAMConfiguration parameters
const (
	samModeNormal = 0x01
	samTimeout    = 0x14 // 20 * 50ms
	samUseIRQ     = 0x01
)

// SetParameters flags. Automatic RATS stays off: activation to layer 4 is
// done by the host so that it sees the ATS.
const (
	paramAutomaticATRRes = 0x04
)

// RFConfiguration items
const (
	rfItemMaxRetries = 0x05
)

// InListPassiveTarget baud rate for 106 kbps type A
const brTypeA106 = 0x00

// CIU registers
const (
	regCIUTxMode = 0x6302
	regCIURxMode = 0x6303

	ciuCRCEnable = 0x80
)
