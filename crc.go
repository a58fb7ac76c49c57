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
	"github.com/sigurn/crc16"
)

// crcTable is the ISO/IEC 14443-3 Type A CRC (CRC_A).
var crcTable = crc16.MakeTable(crc16.CRC16_CRC_A)

// ComputeCRC returns CRC_A over data, least significant byte first as it
// goes over the air.
func ComputeCRC(data []byte) [2]byte {
	crc := crc16.Checksum(data, crcTable)
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// AppendCRC appends the CRC_A trailer to frame.
func AppendCRC(frame []byte) []byte {
	crc := ComputeCRC(frame)
	return append(frame, crc[0], crc[1])
}

// CheckCRC reports whether the last two bytes of frame are a valid CRC_A
// over the bytes before them.
func CheckCRC(frame []byte) bool {
	if len(frame) < crcLen {
		return false
	}
	body := frame[:len(frame)-crcLen]
	crc := ComputeCRC(body)
	return frame[len(frame)-2] == crc[0] && frame[len(frame)-1] == crc[1]
}
