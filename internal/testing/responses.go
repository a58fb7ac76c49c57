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

package testing

import (
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CRC_A)

// WithCRC appends a CRC_A trailer to frame
func WithCRC(frame ...byte) []byte {
	crc := crc16.Checksum(frame, crcTable)
	out := append([]byte(nil), frame...)
	return append(out, byte(crc), byte(crc>>8))
}

// IBlock builds a card I-block with CRC
func IBlock(blockNumber byte, chaining bool, inf ...byte) []byte {
	pcb := 0x02 | blockNumber&0x01
	if chaining {
		pcb |= 0x10
	}
	return WithCRC(append([]byte{pcb}, inf...)...)
}

// RAck builds a card R(ACK) with CRC
func RAck(blockNumber byte) []byte {
	return WithCRC(0xA2 | blockNumber&0x01)
}

// RNak builds a card R(NAK) with CRC
func RNak(blockNumber byte) []byte {
	return WithCRC(0xB2 | blockNumber&0x01)
}

// SWTX builds a card S(WTX) request with CRC
func SWTX(multiplier byte) []byte {
	return WithCRC(0xF2, multiplier)
}

// SDeselect builds a card S(DESELECT) with CRC
func SDeselect() []byte {
	return WithCRC(0xC2)
}

// ATS builds an ATS (TL is computed) followed by CRC
func ATS(t0 byte, rest ...byte) []byte {
	body := append([]byte{byte(2 + len(rest)), t0}, rest...)
	return WithCRC(body...)
}

// PN532 command codes used by the reader tests
const (
	CmdGetFirmwareVersion  = 0x02
	CmdReadRegister        = 0x06
	CmdWriteRegister       = 0x08
	CmdSetParameters       = 0x12
	CmdSAMConfiguration    = 0x14
	CmdRFConfiguration     = 0x32
	CmdInCommunicateThru   = 0x42
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
)

// BuildFirmwareVersionResponse creates a GetFirmwareVersion response
func BuildFirmwareVersionResponse() []byte {
	// IC=PN532, Ver 1.6, supports ISO14443A/B and ISO18092
	return []byte{0x03, 0x32, 0x01, 0x06, 0x07}
}

// BuildSAMConfigurationResponse creates a SAMConfiguration response
func BuildSAMConfigurationResponse() []byte {
	return []byte{0x15}
}

// BuildSetParametersResponse creates a SetParameters response
func BuildSetParametersResponse() []byte {
	return []byte{0x13}
}

// BuildRFConfigurationResponse creates a RFConfiguration response
func BuildRFConfigurationResponse() []byte {
	return []byte{0x33}
}

// BuildReadRegisterResponse creates a ReadRegister response
func BuildReadRegisterResponse(values ...byte) []byte {
	return append([]byte{0x07}, values...)
}

// BuildWriteRegisterResponse creates a WriteRegister response
func BuildWriteRegisterResponse() []byte {
	return []byte{0x09}
}

// BuildTargetResponse creates an InListPassiveTarget response for one
// 106 kbps type A target
func BuildTargetResponse(atqa [2]byte, sak byte, uid []byte) []byte {
	response := []byte{0x4B, 0x01, 0x01}
	response = append(response, atqa[0], atqa[1], sak, byte(len(uid)))
	return append(response, uid...)
}

// BuildNoTargetResponse creates an empty InListPassiveTarget response
func BuildNoTargetResponse() []byte {
	return []byte{0x4B, 0x00}
}

// BuildCommunicateThruResponse creates an InCommunicateThru response
func BuildCommunicateThruResponse(status byte, data ...byte) []byte {
	return append([]byte{0x43, status}, data...)
}

// BuildInReleaseResponse creates an InRelease response
func BuildInReleaseResponse() []byte {
	return []byte{0x53, 0x00}
}

// Common UIDs and anticollision data for testing
var (
	// TestEMVUID is a sample 4 byte random UID of a payment card
	TestEMVUID = []byte{0x08, 0x1A, 0x2B, 0x3C}
	// TestEMVATQA is the ATQA of a typical payment card
	TestEMVATQA = [2]byte{0x00, 0x04}
	// TestEMVSAK announces ISO14443-4 support
	TestEMVSAK byte = 0x20
	// TestMIFARESAK is a MIFARE Classic 1K SAK without ISO14443-4
	TestMIFARESAK byte = 0x08
)
