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
	"strings"
)

// frameSizes maps FSCI/FSDI 0..8 to a frame size in bytes.
var frameSizes = [...]int{16, 24, 32, 40, 48, 64, 96, 128, 256}

// FrameSizeFromFSCI converts a frame size integer to bytes. Only the low
// nibble is used; the reserved values 9..15 read as 256.
func FrameSizeFromFSCI(fsci byte) int {
	fsci &= 0x0F
	if int(fsci) >= len(frameSizes) {
		return frameSizes[len(frameSizes)-1]
	}
	return frameSizes[fsci]
}

// FSDIFromFrameSize is the inverse of FrameSizeFromFSCI.
func FSDIFromFrameSize(size int) (byte, error) {
	for i, s := range frameSizes {
		if s == size {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("%w: frame size %d is not an ISO14443-4 frame size", ErrInvalidParameter, size)
}

// T0 format byte bits
const (
	t0FSCIMask = 0x0F
	t0TA1      = 0x10
	t0TB1      = 0x20
	t0TC1      = 0x40

	minATSWithT0 = 3
)

// ATS is the card's Answer To Select.
type ATS struct {
	// Raw is the ATS as received, TL through the last historical byte.
	Raw        []byte
	Historical []byte
	FrameSize  int
	TL         byte
	T0         byte
	FSCI       byte
	TA1        byte
	TB1        byte
	TC1        byte
	HasT0      bool
	HasTA1     bool
	HasTB1     bool
	HasTC1     bool
}

// ParseATS decodes the ATS in raw. Bytes past TL, the CRC trailer when the
// reader does not strip it, are ignored. A TL below 3 is a minimal ATS that
// leaves the frame size at its 64 byte default. Interface bytes announced by
// T0 but missing from raw are left unset: they are informational only.
func ParseATS(raw []byte) (*ATS, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty ATS", ErrRatsFailed)
	}

	tl := int(raw[0])
	if tl > len(raw) {
		tl = len(raw)
	}
	body := raw[:tl]

	ats := &ATS{
		Raw:       append([]byte(nil), body...),
		TL:        raw[0],
		FrameSize: DefaultFrameSize,
	}
	if raw[0] < minATSWithT0 || len(body) < 2 {
		return ats, nil
	}

	ats.HasT0 = true
	ats.T0 = body[1]
	ats.FSCI = ats.T0 & t0FSCIMask
	ats.FrameSize = FrameSizeFromFSCI(ats.FSCI)

	pos := 2
	next := func(present bool) (byte, bool) {
		if !present || pos >= len(body) {
			return 0, false
		}
		b := body[pos]
		pos++
		return b, true
	}
	ats.TA1, ats.HasTA1 = next(ats.T0&t0TA1 != 0)
	ats.TB1, ats.HasTB1 = next(ats.T0&t0TB1 != 0)
	ats.TC1, ats.HasTC1 = next(ats.T0&t0TC1 != 0)

	if pos < len(body) {
		ats.Historical = append([]byte(nil), body[pos:]...)
	}
	return ats, nil
}

// FWI returns the frame waiting time integer from TB(1), or 4 when TB(1)
// is absent.
func (a *ATS) FWI() byte {
	if !a.HasTB1 {
		return 4
	}
	return a.TB1 >> 4
}

// SFGI returns the start-up frame guard time integer from TB(1), or 0.
func (a *ATS) SFGI() byte {
	if !a.HasTB1 {
		return 0
	}
	return a.TB1 & 0x0F
}

// String returns a one-line description of the ATS
func (a *ATS) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "ATS len=%d", a.TL)
	if a.HasT0 {
		_, _ = fmt.Fprintf(&sb, " T0=%02X FSCI=%d(%d bytes)", a.T0, a.FSCI, a.FrameSize)
	}
	if a.HasTA1 {
		_, _ = fmt.Fprintf(&sb, " TA(1)=%02X", a.TA1)
	}
	if a.HasTB1 {
		_, _ = fmt.Fprintf(&sb, " TB(1)=%02X", a.TB1)
	}
	if a.HasTC1 {
		_, _ = fmt.Fprintf(&sb, " TC(1)=%02X", a.TC1)
	}
	if len(a.Historical) > 0 {
		_, _ = fmt.Fprintf(&sb, " historical=%s", strings.ToUpper(hex.EncodeToString(a.Historical)))
	}
	return sb.String()
}
