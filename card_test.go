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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/ZaparooProject/go-iso14443/internal/testing"
)

func activateVirtualCard(t *testing.T, vc *testutil.VirtualCard, opts ...Option) *Card {
	t.Helper()
	e := newTestEngine(t, vc, opts...)
	target := &Target{UID: testutil.TestEMVUID, ATQA: testutil.TestEMVATQA, SAK: testutil.TestEMVSAK}
	card, err := e.Activate(context.Background(), target)
	require.NoError(t, err)
	return card
}

func TestCard_Transmit(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, func([]byte) []byte { return []byte{0x6F, 0x00, 0x90, 0x00} })
	card := activateVirtualCard(t, vc, WithRxCRCCheck())

	resp, err := card.Transmit([]byte{0x00, 0xA4, 0x04, 0x00, 0x0E})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6F, 0x00, 0x90, 0x00}, resp)
	require.Len(t, vc.Commands, 1)
	assert.Equal(t, []byte{0x00, 0xA4, 0x04, 0x00, 0x0E}, vc.Commands[0])
}

func TestCard_LongCommandAndResponse(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	card := activateVirtualCard(t, vc, WithRxCRCCheck())

	cmd := sequence(300)
	resp, err := card.TransmitContext(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte(nil), cmd...), 0x90, 0x00), resp)
	require.Len(t, vc.Commands, 1)
	assert.Equal(t, cmd, vc.Commands[0])

	for i, f := range vc.Frames {
		assert.LessOrEqual(t, len(f), DefaultHardwareFrameLimit, "frame %d", i)
	}
}

func TestCard_SmallCardFrame(t *testing.T) {
	t.Parallel()

	// FSCI 0: 16 byte frames
	vc := testutil.NewVirtualCard([]byte{0x03, 0x00, 0x80}, testutil.EchoHandler)
	card := activateVirtualCard(t, vc)
	assert.Equal(t, 16, card.Session().FrameSize())

	cmd := sequence(40)
	resp, err := card.Transmit(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd, resp[:len(cmd)])

	// RATS + 4 I-blocks of at most 13 bytes INF + response acknowledgements
	for i, f := range vc.Frames[1:] {
		assert.LessOrEqual(t, len(f), 16, "frame %d", i)
	}
}

func TestCard_WTX(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	vc.WTXPerCommand = 5
	vc.WTXMultiplier = 0x0A
	card := activateVirtualCard(t, vc)

	resp, err := card.Transmit([]byte{0x80, 0xCA, 0x9F, 0x17, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0xCA, 0x9F, 0x17, 0x00, 0x90, 0x00}, resp)

	wtx := 0
	for _, f := range vc.Frames {
		if f[0] == 0xF2 {
			wtx++
			assert.Equal(t, byte(0x0A), f[1])
		}
	}
	assert.Equal(t, 5, wtx)
}

func TestCard_WTXExceeded(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	vc.WTXPerCommand = MaxWTXRetries
	card := activateVirtualCard(t, vc)

	_, err := card.Transmit([]byte{0x00, 0xB2, 0x01, 0x0C, 0x00})
	require.ErrorIs(t, err, ErrWTXRetryExceeded)
}

func TestCard_SequentialExchanges(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	card := activateVirtualCard(t, vc)

	for i := range 5 {
		cmd := sequence(20 + i*40)
		resp, err := card.Transmit(cmd)
		require.NoError(t, err, "exchange %d", i)
		assert.Equal(t, cmd, resp[:len(cmd)], "exchange %d", i)
	}
	assert.Len(t, vc.Commands, 5)
}

func TestCard_RemovedFromField(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	card := activateVirtualCard(t, vc)
	vc.RemoveFromField()

	_, err := card.Transmit([]byte{0x00, 0xA4})
	require.ErrorIs(t, err, ErrTransceiveFailed)
	require.ErrorIs(t, err, testutil.ErrCardNotPresent)
	assert.True(t, IsSessionFatal(err))
}

func TestCard_Close(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(nil, testutil.EchoHandler)
	card := activateVirtualCard(t, vc)

	require.NoError(t, card.Close())
	assert.True(t, vc.Deselected)
}
