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

//go:build libnfc

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-iso14443/transport/libnfc"
	"go.uber.org/zap"
)

func openReader(ctx context.Context, path string, log *zap.SugaredLogger) (reader, error) {
	connstring, ok := strings.CutPrefix(path, libnfcPrefix)
	if !ok {
		return openPN532(ctx, path, log)
	}

	_, _ = fmt.Printf("Opening libnfc device: %q\n", connstring)
	rd, err := libnfc.Open(connstring, libnfc.WithLogger(log.Named("libnfc")))
	if err != nil {
		return nil, err
	}
	return rd, nil
}
