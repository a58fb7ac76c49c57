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

// Package type4 reads NDEF messages from NFC Forum Type 4 Tags over an
// ISO-DEP session.
package type4

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-iso14443/apdu"
	"github.com/hsanjuan/go-ndef"
)

const (
	// NDEFApplication is the AID of the NDEF tag application (version 2)
	NDEFApplication = "\xD2\x76\x00\x00\x85\x01\x01"
	// CCFile is the file ID of the capability container
	CCFile uint16 = 0xE103
	// DefaultNDEFFile is the NDEF file ID most tags use
	DefaultNDEFFile uint16 = 0xE104

	ccLength       = 15
	tlvNDEFControl = 0x04
	accessGranted  = 0x00
	maxShortLe     = 0xFF
)

// Errors
var (
	ErrInvalidCC    = errors.New("invalid capability container")
	ErrAccessDenied = errors.New("NDEF file is not readable")
	ErrEmptyNDEF    = errors.New("NDEF file is empty")
	ErrNDEFTooLarge = errors.New("NDEF length exceeds file size")
	ErrShortRead    = errors.New("card returned no data")
	ErrInvalidRead  = errors.New("invalid read size")
)

// CapabilityContainer describes the NDEF file of a Type 4 Tag
type CapabilityContainer struct {
	Len         uint16
	Version     byte
	MLe         uint16
	MLc         uint16
	FileID      uint16
	MaxSize     uint16
	ReadAccess  byte
	WriteAccess byte
}

// ParseCapabilityContainer decodes the CC file contents. The NDEF File
// Control TLV must be the first TLV.
func ParseCapabilityContainer(data []byte) (*CapabilityContainer, error) {
	if len(data) < ccLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCC, len(data))
	}
	if data[7] != tlvNDEFControl || data[8] < 6 {
		return nil, fmt.Errorf("%w: no NDEF file control TLV (tag %02X)", ErrInvalidCC, data[7])
	}
	cc := &CapabilityContainer{
		Len:         binary.BigEndian.Uint16(data[0:2]),
		Version:     data[2],
		MLe:         binary.BigEndian.Uint16(data[3:5]),
		MLc:         binary.BigEndian.Uint16(data[5:7]),
		FileID:      binary.BigEndian.Uint16(data[9:11]),
		MaxSize:     binary.BigEndian.Uint16(data[11:13]),
		ReadAccess:  data[13],
		WriteAccess: data[14],
	}
	if cc.MLe == 0 {
		return nil, fmt.Errorf("%w: MLe is zero", ErrInvalidCC)
	}
	return cc, nil
}

// ReadCapabilityContainer selects the NDEF application and reads its CC
func ReadCapabilityContainer(ctx context.Context, t apdu.Transmitter) (*CapabilityContainer, error) {
	if _, err := command(ctx, t, apdu.SelectByName(NDEFApplication)); err != nil {
		return nil, fmt.Errorf("failed to select NDEF application: %w", err)
	}
	if _, err := command(ctx, t, apdu.SelectFile(CCFile)); err != nil {
		return nil, fmt.Errorf("failed to select CC file: %w", err)
	}
	data, err := readBinary(ctx, t, 0, ccLength)
	if err != nil {
		return nil, fmt.Errorf("failed to read CC file: %w", err)
	}
	return ParseCapabilityContainer(data)
}

// ReadNDEF reads and decodes the NDEF message of a Type 4 Tag
func ReadNDEF(ctx context.Context, t apdu.Transmitter) (*ndef.Message, error) {
	raw, err := ReadNDEFBytes(ctx, t)
	if err != nil {
		return nil, err
	}
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("failed to decode NDEF message: %w", err)
	}
	return msg, nil
}

// ReadNDEFBytes reads the raw NDEF message of a Type 4 Tag
func ReadNDEFBytes(ctx context.Context, t apdu.Transmitter) ([]byte, error) {
	cc, err := ReadCapabilityContainer(ctx, t)
	if err != nil {
		return nil, err
	}
	if cc.ReadAccess != accessGranted {
		return nil, fmt.Errorf("%w: access condition %02X", ErrAccessDenied, cc.ReadAccess)
	}

	if _, err := command(ctx, t, apdu.SelectFile(cc.FileID)); err != nil {
		return nil, fmt.Errorf("failed to select NDEF file %04X: %w", cc.FileID, err)
	}

	nlenData, err := readBinary(ctx, t, 0, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to read NLEN: %w", err)
	}
	if len(nlenData) < 2 {
		return nil, fmt.Errorf("%w: NLEN is %d bytes", ErrShortRead, len(nlenData))
	}
	nlen := int(binary.BigEndian.Uint16(nlenData))
	if nlen == 0 {
		return nil, ErrEmptyNDEF
	}
	if cc.MaxSize > 2 && nlen > int(cc.MaxSize)-2 {
		return nil, fmt.Errorf("%w: %d > %d", ErrNDEFTooLarge, nlen, cc.MaxSize-2)
	}

	chunk := min(int(cc.MLe), maxShortLe)
	data := make([]byte, 0, nlen)
	offset := 2
	for len(data) < nlen {
		n := min(nlen-len(data), chunk)
		part, err := readBinary(ctx, t, offset, n)
		if err != nil {
			return nil, fmt.Errorf("failed to read NDEF at offset %d: %w", offset, err)
		}
		if len(part) == 0 {
			return nil, fmt.Errorf("%w: offset %d", ErrShortRead, offset)
		}
		if len(part) > n {
			part = part[:n]
		}
		data = append(data, part...)
		offset += len(part)
	}
	return data, nil
}

func readBinary(ctx context.Context, t apdu.Transmitter, offset, n int) ([]byte, error) {
	if offset < 0 || offset > 0x7FFF || n <= 0 || n > maxShortLe {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidRead, offset, n)
	}
	cmd, err := apdu.ReadBinary(uint16(offset), byte(n))
	if err != nil {
		return nil, err
	}
	return command(ctx, t, cmd)
}

// command sends cmd and fails on a non-success status word
func command(ctx context.Context, t apdu.Transmitter, cmd []byte) ([]byte, error) {
	resp, err := apdu.Send(ctx, t, cmd)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
