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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-iso14443"
	"github.com/ZaparooProject/go-iso14443/apdu"
	"github.com/ZaparooProject/go-iso14443/type4"
)

func colonHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

func printCard(card *iso14443.Card) {
	target := card.Target()
	_, _ = fmt.Printf("\nCARD: %s\n", target)
	_, _ = fmt.Printf("SAK: %02X\n", target.SAK)
	_, _ = fmt.Printf("UID: % X\n", target.UID)
	if ats := card.ATS(); ats != nil {
		_, _ = fmt.Printf("ATS: %s (frame size %d)\n", colonHex(ats.Raw), ats.FrameSize)
	}
}

// printEMV selects the PPSE and every application it lists
func printEMV(ctx context.Context, card *iso14443.Card) error {
	printCard(card)

	resp, err := apdu.Send(ctx, card, apdu.SelectByName(apdu.PPSE))
	if err != nil {
		return fmt.Errorf("select PPSE failed: %w", err)
	}
	_, _ = fmt.Printf("Select PPSE Response: %s [%s]\n", colonHex(resp.Data), resp.SW)
	if err := resp.Err(); err != nil {
		_, _ = fmt.Println("No payment directory on this card")
		return nil
	}

	apps, err := apdu.Applications(resp.Data)
	if err != nil {
		return fmt.Errorf("failed to parse PPSE: %w", err)
	}
	if len(apps) == 0 {
		_, _ = fmt.Println("PPSE lists no applications")
		return nil
	}

	for i, app := range apps {
		label := app.Label
		if label == "" {
			label = "(no label)"
		}
		_, _ = fmt.Printf("  [%d] AID %s %s\n", i+1, strings.ToUpper(hex.EncodeToString(app.AID)), label)
		if err := printApplication(ctx, card, app); err != nil {
			return err
		}
	}
	return nil
}

func printApplication(ctx context.Context, card *iso14443.Card, app apdu.Application) error {
	resp, err := apdu.Send(ctx, card, apdu.SelectByAID(app.AID))
	if err != nil {
		return fmt.Errorf("select AID failed: %w", err)
	}
	_, _ = fmt.Printf("      Select: %s [%s]\n", colonHex(resp.Data), resp.SW)
	if resp.Err() != nil {
		return nil
	}
	if name, err := apdu.FindTag(resp.Data, apdu.TagDFName); err == nil {
		_, _ = fmt.Printf("      DF name: %s\n", strings.ToUpper(hex.EncodeToString(name)))
	}

	// Most cards refuse GPO with an empty PDOL when they ask for one.
	gpo, err := apdu.Send(ctx, card, apdu.GetProcessingOptions(nil))
	if err != nil {
		return fmt.Errorf("get processing options failed: %w", err)
	}
	_, _ = fmt.Printf("      GPO: %s [%s]\n", colonHex(gpo.Data), gpo.SW)

	record, err := apdu.Send(ctx, card, apdu.ReadRecord(1, 1))
	if err != nil {
		return fmt.Errorf("read record failed: %w", err)
	}
	_, _ = fmt.Printf("      Record 1/1: %s [%s]\n", colonHex(record.Data), record.SW)
	return nil
}

// printNDEF reads the NDEF message of a Type 4 Tag
func printNDEF(ctx context.Context, card *iso14443.Card) error {
	printCard(card)

	msg, err := type4.ReadNDEF(ctx, card)
	var statusErr *apdu.StatusError
	switch {
	case errors.As(err, &statusErr):
		_, _ = fmt.Printf("Not an NDEF tag: %v\n", err)
		return nil
	case errors.Is(err, type4.ErrEmptyNDEF):
		_, _ = fmt.Println("NDEF file is empty")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read NDEF: %w", err)
	}

	_, _ = fmt.Printf("NDEF: %d record(s)\n", len(msg.Records))
	_, _ = fmt.Println(msg.String())
	return nil
}
