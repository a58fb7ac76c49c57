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

package apdu

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// EMV data object tags
const (
	TagFCI                 = "6F"
	TagDFName              = "84"
	TagFCIProprietary      = "A5"
	TagFCIIssuerData       = "BF0C"
	TagApplicationTemplate = "61"
	TagAID                 = "4F"
	TagApplicationLabel    = "50"
	TagRecordTemplate      = "70"
)

// Decode parses data as a list of BER-TLV data objects
func Decode(data []byte) ([]bertlv.TLV, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	return packets, nil
}

// FindTag returns the value of the first data object tagged tag, searching
// constructed objects depth first
func FindTag(data []byte, tag string) ([]byte, error) {
	packets, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if tlv, ok := find(packets, tag); ok {
		return tlv.Value, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTagNotFound, strings.ToUpper(tag))
}

// FindAllTags returns the values of every data object tagged tag in
// document order
func FindAllTags(data []byte, tag string) ([][]byte, error) {
	packets, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var values [][]byte
	walk(packets, func(tlv bertlv.TLV) {
		if strings.EqualFold(tlv.Tag, tag) {
			values = append(values, tlv.Value)
		}
	})
	return values, nil
}

func find(packets []bertlv.TLV, tag string) (bertlv.TLV, bool) {
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			return p, true
		}
		if found, ok := find(p.TLVs, tag); ok {
			return found, true
		}
	}
	return bertlv.TLV{}, false
}

func walk(packets []bertlv.TLV, fn func(bertlv.TLV)) {
	for _, p := range packets {
		fn(p)
		walk(p.TLVs, fn)
	}
}

// Application is one entry of a PPSE or PSE directory
type Application struct {
	AID   []byte
	Label string
}

// Applications lists the application templates (tag 61) of a directory
// response
func Applications(data []byte) ([]Application, error) {
	packets, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var apps []Application
	walk(packets, func(tlv bertlv.TLV) {
		if !strings.EqualFold(tlv.Tag, TagApplicationTemplate) {
			return
		}
		var app Application
		if aid, ok := find(tlv.TLVs, TagAID); ok {
			app.AID = aid.Value
		}
		if label, ok := find(tlv.TLVs, TagApplicationLabel); ok {
			app.Label = string(label.Value)
		}
		if app.AID != nil {
			apps = append(apps, app)
		}
	})
	return apps, nil
}
