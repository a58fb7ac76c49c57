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

// Package apdu builds the ISO/IEC 7816-4 command APDUs used with
// contactless payment and NFC Forum Type 4 cards, parses their responses
// and looks up BER-TLV data objects in them.
//
// It carries no EMV kernel logic; application selection and transaction
// flow are left to the caller.
package apdu

import (
	"fmt"
)

// Instruction bytes
const (
	InsSelect               = 0xA4
	InsReadBinary           = 0xB0
	InsReadRecord           = 0xB2
	InsGetResponse          = 0xC0
	InsGetProcessingOptions = 0xA8
)

// Class bytes
const (
	ClaISO         = 0x00
	ClaProprietary = 0x80
)

// Directory names of the payment system environments
const (
	// PPSE is the Proximity Payment System Environment
	PPSE = "2PAY.SYS.DDF01"
	// PSE is the contact Payment System Environment
	PSE = "1PAY.SYS.DDF01"
)

// SELECT P1 values
const (
	selectByFileID = 0x00
	selectByName   = 0x04
)

// SELECT P2 values
const (
	selectFirstWithFCI = 0x00
	selectNoResponse   = 0x0C
)

// SelectByName selects a DF by name, e.g. PPSE
func SelectByName(name string) []byte {
	return SelectByAID([]byte(name))
}

// SelectByAID selects an application by AID, first occurrence, FCI
// returned
func SelectByAID(aid []byte) []byte {
	cmd := []byte{ClaISO, InsSelect, selectByName, selectFirstWithFCI, byte(len(aid))}
	cmd = append(cmd, aid...)
	return append(cmd, 0x00)
}

// SelectFile selects an elementary file by its two byte identifier without
// asking for FCI
func SelectFile(fileID uint16) []byte {
	return []byte{ClaISO, InsSelect, selectByFileID, selectNoResponse, 0x02, byte(fileID >> 8), byte(fileID)}
}

// GetProcessingOptions builds GET PROCESSING OPTIONS. A nil pdolData sends
// the empty command template 83 00.
func GetProcessingOptions(pdolData []byte) []byte {
	if pdolData == nil {
		pdolData = []byte{0x83, 0x00}
	}
	cmd := []byte{ClaProprietary, InsGetProcessingOptions, 0x00, 0x00, byte(len(pdolData))}
	cmd = append(cmd, pdolData...)
	return append(cmd, 0x00)
}

// ReadRecord reads record number record of the file with short file
// identifier sfi
func ReadRecord(sfi, record byte) []byte {
	return []byte{ClaISO, InsReadRecord, record, sfi<<3 | 0x04, 0x00}
}

// ReadBinary reads le bytes of the current EF starting at offset. le 0
// asks for up to 256 bytes.
func ReadBinary(offset uint16, le byte) ([]byte, error) {
	if offset > 0x7FFF {
		return nil, fmt.Errorf("%w: offset %d exceeds 15 bits", ErrInvalidCommand, offset)
	}
	return []byte{ClaISO, InsReadBinary, byte(offset >> 8), byte(offset), le}, nil
}

// GetResponse fetches le bytes left pending by a 61XX status
func GetResponse(le byte) []byte {
	return []byte{ClaISO, InsGetResponse, 0x00, 0x00, le}
}
