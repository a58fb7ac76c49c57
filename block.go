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
	"encoding/hex"
	"fmt"
)

// BlockType is the link-layer block kind encoded in PCB bits 7..6.
type BlockType int

const (
	// BlockTypeI carries application data and may chain.
	BlockTypeI BlockType = iota
	// BlockTypeR acknowledges (ACK) or rejects (NAK) a block.
	BlockTypeR
	// BlockTypeS is a supervisory block (WTX, DESELECT).
	BlockTypeS
)

// String returns the conventional block name
func (b BlockType) String() string {
	switch b {
	case BlockTypeI:
		return "I-block"
	case BlockTypeR:
		return "R-block"
	case BlockTypeS:
		return "S-block"
	default:
		return fmt.Sprintf("BlockType(%d)", int(b))
	}
}

// PCB layout
const (
	pcbIBlock = 0x02
	pcbRBlock = 0xA2
	pcbSBlock = 0xC2

	pcbTypeMask     = 0xC0
	pcbTypeI        = 0x00
	pcbTypeReserved = 0x40
	pcbTypeR        = 0x80
	pcbTypeS        = 0xC0

	pcbBlockNumber = 0x01
	pcbChaining    = 0x10 // I-block
	pcbNAK         = 0x10 // R-block
	pcbSubtypeMask = 0x30 // S-block

	pcbWTX = pcbSBlock | 0x30

	cmdRATS = 0xE0

	wtxMultiplierMask = 0x3F
)

// S-block subtypes (PCB bits 5..4)
const (
	SBlockDeselect byte = 0x00
	SBlockWTX      byte = 0x03
)

// Frame overhead: 1 byte PCB plus 2 bytes CRC_A.
const (
	pcbLen             = 1
	crcLen             = 2
	blockFrameOverhead = pcbLen + crcLen
)

// Block is one link-layer transmission unit. Blocks are built once and never
// mutated; Bytes always returns a fresh slice with the CRC trailer appended.
type Block struct {
	Payload []byte
	PCB     byte
}

// Bytes serialises the block as PCB ++ payload ++ CRC_A.
func (b Block) Bytes() []byte {
	out := make([]byte, 0, pcbLen+len(b.Payload)+crcLen)
	out = append(out, b.PCB)
	out = append(out, b.Payload...)
	return AppendCRC(out)
}

// Type classifies the block by its own PCB.
func (b Block) Type() (BlockType, error) {
	return classifyPCB(b.PCB)
}

// String renders the block for logs
func (b Block) String() string {
	return fmt.Sprintf("PCB=%02X INF=%s", b.PCB, hex.EncodeToString(b.Payload))
}

// BuildIBlock builds an information block carrying payload.
func BuildIBlock(payload []byte, toggle byte, chaining bool) Block {
	pcb := byte(pcbIBlock) | toggle&pcbBlockNumber
	if chaining {
		pcb |= pcbChaining
	}
	return Block{PCB: pcb, Payload: append([]byte(nil), payload...)}
}

// BuildRBlock builds a receive-ready block; nak selects R(NAK) over R(ACK).
func BuildRBlock(toggle byte, nak bool) Block {
	pcb := byte(pcbRBlock) | toggle&pcbBlockNumber
	if nak {
		pcb |= pcbNAK
	}
	return Block{PCB: pcb}
}

// BuildSBlockWTX builds the S(WTX) response echoing the card's multiplier.
func BuildSBlockWTX(wtxm byte) Block {
	return Block{PCB: pcbWTX, Payload: []byte{wtxm}}
}

// BuildSBlockDeselect builds S(DESELECT).
func BuildSBlockDeselect() Block {
	return Block{PCB: pcbSBlock}
}

// BuildRATS builds the Request for Answer To Select command frame. fsdi is
// the reader's receive frame size index, cid the card identifier.
func BuildRATS(fsdi, cid byte) Block {
	return Block{PCB: cmdRATS, Payload: []byte{fsdi<<4 | cid&0x0F}}
}

// Classify returns the block type of a raw received frame.
func Classify(raw []byte) (BlockType, error) {
	if len(raw) == 0 {
		return 0, &BlockError{Err: ErrMalformedBlock}
	}
	return classifyPCB(raw[0])
}

func classifyPCB(pcb byte) (BlockType, error) {
	switch pcb & pcbTypeMask {
	case pcbTypeI:
		return BlockTypeI, nil
	case pcbTypeR:
		return BlockTypeR, nil
	case pcbTypeS:
		return BlockTypeS, nil
	default:
		return 0, &BlockError{PCB: pcb, Err: ErrUnsupportedBlock}
	}
}

// IsChaining reports the I-block chaining bit.
func IsChaining(pcb byte) bool {
	return pcb&pcbChaining != 0
}

// IsNAK reports the R-block NAK bit.
func IsNAK(pcb byte) bool {
	return pcb&pcbNAK != 0
}

// BlockNumber returns the block number bit of an I or R block.
func BlockNumber(pcb byte) byte {
	return pcb & pcbBlockNumber
}

// SBlockSubtype returns PCB bits 5..4 of an S-block.
func SBlockSubtype(pcb byte) byte {
	return (pcb & pcbSubtypeMask) >> 4
}

// INF strips the PCB header and the CRC trailer from a received frame.
func INF(raw []byte) []byte {
	if len(raw) < blockFrameOverhead {
		return []byte{}
	}
	return raw[pcbLen : len(raw)-crcLen]
}
