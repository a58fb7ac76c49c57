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

// sakISO14443_4 is the SAK bit announcing ISO/IEC 14443-4 support.
const sakISO14443_4 = 0x20

// Target is a type A card that completed anticollision.
type Target struct {
	UID  []byte
	ATQA [2]byte
	SAK  byte
}

// IsISO14443_4Compliant reports whether the card speaks T=CL.
func (t *Target) IsISO14443_4Compliant() bool {
	return t.SAK&sakISO14443_4 != 0
}

// UIDString returns the UID as upper-case hex
func (t *Target) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(t.UID))
}

// String returns a one-line description of the target
func (t *Target) String() string {
	return fmt.Sprintf("UID=%s ATQA=%02X%02X SAK=%02X", t.UIDString(), t.ATQA[0], t.ATQA[1], t.SAK)
}
