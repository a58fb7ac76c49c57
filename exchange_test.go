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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/ZaparooProject/go-iso14443/internal/testing"
)

var errRadio = errors.New("radio timeout")

func newTestEngine(t *testing.T, tr Transceiver, opts ...Option) *Engine {
	t.Helper()
	e, err := New(tr, opts...)
	require.NoError(t, err)
	return e
}

// sessionWithFSCI returns a freshly negotiated session with the given card
// frame size index.
func sessionWithFSCI(t *testing.T, fsci byte) *Session {
	t.Helper()
	ats, err := ParseATS([]byte{0x03, fsci})
	require.NoError(t, err)
	s := newSession(nil)
	s.applyATS(ats)
	return s
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func pcbs(frames [][]byte) []byte {
	out := make([]byte, 0, len(frames))
	for _, f := range frames {
		out = append(out, f[0])
	}
	return out
}

func TestExchange_SingleFragment(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(testutil.IBlock(0, false, 0x90, 0x00))
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	cmd := []byte{0x00, 0xA4, 0x04, 0x00, 0x02, 0x3F, 0x00}
	resp, err := e.Exchange(context.Background(), s, cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)

	frames := tr.Frames()
	require.Len(t, frames, 1)
	want := AppendCRC(append([]byte{0x02}, cmd...))
	if diff := cmp.Diff(want, frames[0]); diff != "" {
		t.Errorf("I-block mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_ToggleAlternatesAcrossExchanges(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(
		testutil.IBlock(0, false, 0x90, 0x00),
		testutil.IBlock(1, false, 0x90, 0x00),
		testutil.IBlock(0, false, 0x90, 0x00),
	)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 5)

	for range 3 {
		_, err := e.Exchange(context.Background(), s, []byte{0x00, 0xB0, 0x00, 0x00, 0x00})
		require.NoError(t, err)
	}
	assert.Equal(t, []byte{0x02, 0x03, 0x02}, pcbs(tr.Frames()))
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_ChainedTransmit(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(
		testutil.RAck(0),
		testutil.RAck(1),
		testutil.IBlock(0, false, 0x90, 0x00),
	)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	cmd := sequence(130)
	resp, err := e.Exchange(context.Background(), s, cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)

	frames := tr.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte{0x12, 0x13, 0x02}, pcbs(frames))

	// 61 + 61 + 8 bytes of INF, concatenating back to the command
	var joined []byte
	for i, f := range frames {
		assert.True(t, CheckCRC(f), "frame %d CRC", i)
		assert.LessOrEqual(t, len(f), DefaultHardwareFrameLimit)
		joined = append(joined, INF(f)...)
	}
	assert.Len(t, INF(frames[0]), 61)
	assert.Len(t, INF(frames[2]), 8)
	assert.True(t, bytes.Equal(cmd, joined))
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_FragmentCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cmdLen    int
		fsci      byte
		hwLimit   int
		wantCount int
	}{
		{name: "fits exactly", cmdLen: 61, fsci: 8, hwLimit: 64, wantCount: 1},
		{name: "one byte over", cmdLen: 62, fsci: 8, hwLimit: 64, wantCount: 2},
		{name: "small card frame", cmdLen: 60, fsci: 2, hwLimit: 64, wantCount: 3},
		{name: "large reader frame", cmdLen: 260, fsci: 8, hwLimit: 256, wantCount: 2},
		{name: "FSC 16", cmdLen: 26, fsci: 0, hwLimit: 64, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := sessionWithFSCI(t, tt.fsci)
			fragment := s.MaxTxFragment(tt.hwLimit)

			replies := make([][]byte, 0, tt.wantCount)
			for i := 0; i < tt.wantCount-1; i++ {
				replies = append(replies, testutil.RAck(byte(i)))
			}
			replies = append(replies, testutil.IBlock(0, false, 0x90, 0x00))
			tr := testutil.NewScriptedTransceiver(replies...)
			e := newTestEngine(t, tr, WithHardwareFrameLimit(tt.hwLimit))

			cmd := sequence(tt.cmdLen)
			_, err := e.Exchange(context.Background(), s, cmd)
			require.NoError(t, err)

			frames := tr.Frames()
			require.Len(t, frames, tt.wantCount)
			var joined []byte
			for i, f := range frames {
				assert.LessOrEqual(t, len(INF(f)), fragment)
				assert.Equal(t, i < tt.wantCount-1, IsChaining(f[0]), "frame %d chaining bit", i)
				assert.Equal(t, byte(i%2), BlockNumber(f[0]), "frame %d block number", i)
				joined = append(joined, INF(f)...)
			}
			assert.Equal(t, cmd, joined)
		})
	}
}

func TestExchange_ChainedTransmitRejectedByNAK(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(testutil.RNak(0))
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	_, err := e.Exchange(context.Background(), s, sequence(130))
	require.ErrorIs(t, err, ErrChainedTransmitRejected)
	assert.Equal(t, KindChainedTransmitRejected, GetErrorKind(err))
	assert.Equal(t, 1, tr.Calls())

	var xerr *ExchangeError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, StateAwaitingChainAck, xerr.State)
	assert.True(t, xerr.HasPCB)
	assert.Equal(t, byte(0xB2), xerr.PCB)
}

func TestExchange_ChainedTransmitRejectedByOtherBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "I-block", reply: testutil.IBlock(0, false, 0x6A, 0x82)},
		{name: "S(WTX)", reply: testutil.SWTX(1)},
		{name: "reserved PCB", reply: testutil.WithCRC(0x42)},
		{name: "empty reply", reply: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := testutil.NewScriptedTransceiver(tt.reply)
			e := newTestEngine(t, tr)

			_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), sequence(100))
			require.ErrorIs(t, err, ErrChainedTransmitRejected)
			assert.Equal(t, 1, tr.Calls())
		})
	}
}

func TestExchange_TransceiveFailureWhileChaining(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(testutil.RAck(0)).FailAt(1, errRadio)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	_, err := e.Exchange(context.Background(), s, sequence(150))
	require.ErrorIs(t, err, ErrChainedTransmitRejected)
	require.ErrorIs(t, err, ErrTransceiveFailed)
	require.ErrorIs(t, err, errRadio)
	assert.Equal(t, KindChainedTransmitRejected, GetErrorKind(err))
	assert.Equal(t, 2, tr.Calls())
	// Both attempts flipped the block number
	assert.Equal(t, byte(0), s.Toggle())
}

func TestExchange_TransceiveFailureOnLastBlock(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver().FailAt(0, errRadio)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	_, err := e.Exchange(context.Background(), s, []byte{0x00, 0xA4, 0x04, 0x00})
	require.ErrorIs(t, err, ErrTransceiveFailed)
	require.ErrorIs(t, err, errRadio)
	assert.NotErrorIs(t, err, ErrChainedTransmitRejected)
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_ChainedReceive(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(
		testutil.IBlock(0, true, 0x01, 0x02, 0x03),
		testutil.IBlock(1, true, 0x04, 0x05),
		testutil.IBlock(0, false, 0x06, 0x90, 0x00),
	)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	resp, err := e.Exchange(context.Background(), s, []byte{0x80, 0xA8, 0x00, 0x00, 0x02, 0x83, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x90, 0x00}, resp)

	frames := tr.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte{0x02, 0xA3, 0xA2}, pcbs(frames))
	assert.Equal(t, testutil.RAck(1), frames[1])
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_EmptyFinalBlock(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(testutil.IBlock(0, false))
	e := newTestEngine(t, tr)

	resp, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Empty(t, resp)
}

func TestExchange_WTX(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(
		testutil.SWTX(0x45),
		testutil.SWTX(0x01),
		testutil.IBlock(0, false, 0x90, 0x00),
	)
	e := newTestEngine(t, tr)
	s := sessionWithFSCI(t, 8)

	resp, err := e.Exchange(context.Background(), s, []byte{0x00, 0xB2, 0x01, 0x0C, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)

	frames := tr.Frames()
	require.Len(t, frames, 3)
	// Power level bits are dropped from the echoed multiplier
	assert.Equal(t, AppendCRC([]byte{0xF2, 0x05}), frames[1])
	assert.Equal(t, AppendCRC([]byte{0xF2, 0x01}), frames[2])
	// S-blocks leave the block number alone
	assert.Equal(t, byte(1), s.Toggle())
}

func TestExchange_WTXLimit(t *testing.T) {
	t.Parallel()

	t.Run("32 requests abort", func(t *testing.T) {
		t.Parallel()
		replies := make([][]byte, 0, MaxWTXRetries+1)
		for range MaxWTXRetries + 1 {
			replies = append(replies, testutil.SWTX(0x01))
		}
		tr := testutil.NewScriptedTransceiver(replies...)
		e := newTestEngine(t, tr)

		_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xB0, 0x00, 0x00, 0x00})
		require.ErrorIs(t, err, ErrWTXRetryExceeded)
		assert.Equal(t, KindWTXRetryExceeded, GetErrorKind(err))
		assert.Equal(t, 1+MaxWTXRetries, tr.Calls())
	})

	t.Run("31 requests succeed", func(t *testing.T) {
		t.Parallel()
		replies := make([][]byte, 0, MaxWTXRetries)
		for range MaxWTXRetries - 1 {
			replies = append(replies, testutil.SWTX(0x01))
		}
		replies = append(replies, testutil.IBlock(0, false, 0x90, 0x00))
		tr := testutil.NewScriptedTransceiver(replies...)
		e := newTestEngine(t, tr)

		resp, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xB0, 0x00, 0x00, 0x00})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x90, 0x00}, resp)
		assert.Equal(t, MaxWTXRetries, tr.Calls())
	})

	t.Run("counter resets on chained block", func(t *testing.T) {
		t.Parallel()
		replies := make([][]byte, 0, 2*MaxWTXRetries)
		for range MaxWTXRetries - 1 {
			replies = append(replies, testutil.SWTX(0x01))
		}
		replies = append(replies, testutil.IBlock(0, true, 0x01))
		for range MaxWTXRetries - 1 {
			replies = append(replies, testutil.SWTX(0x01))
		}
		replies = append(replies, testutil.IBlock(1, false, 0x90, 0x00))
		tr := testutil.NewScriptedTransceiver(replies...)
		e := newTestEngine(t, tr)

		resp, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xB0, 0x00, 0x00, 0x00})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x90, 0x00}, resp)
	})
}

func TestExchange_UnsupportedBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "R(ACK) after last block", reply: testutil.RAck(0)},
		{name: "R(NAK) after last block", reply: testutil.RNak(0)},
		{name: "S(DESELECT)", reply: testutil.SDeselect()},
		{name: "reserved PCB", reply: testutil.WithCRC(0x42, 0x00)},
		{name: "empty reply", reply: []byte{}},
		{name: "truncated I-block", reply: []byte{0x02, 0x90}},
		{name: "truncated S(WTX)", reply: []byte{0xF2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := testutil.NewScriptedTransceiver(tt.reply)
			e := newTestEngine(t, tr)

			_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xA4})
			require.ErrorIs(t, err, ErrUnsupportedBlock)
			assert.Equal(t, KindUnsupportedBlock, GetErrorKind(err))
			assert.True(t, IsSessionFatal(err))
			assert.Equal(t, 1, tr.Calls())
		})
	}
}

func TestExchange_RxCRCCheck(t *testing.T) {
	t.Parallel()

	bad := testutil.IBlock(0, false, 0x90, 0x00)
	bad[len(bad)-1] ^= 0xFF

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()
		tr := testutil.NewScriptedTransceiver(bad)
		e := newTestEngine(t, tr)
		resp, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x90, 0x00}, resp)
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		tr := testutil.NewScriptedTransceiver(bad)
		e := newTestEngine(t, tr, WithRxCRCCheck())
		_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00})
		require.ErrorIs(t, err, ErrCRCMismatch)
		require.ErrorIs(t, err, ErrTransceiveFailed)
	})
}

func TestExchange_InvalidInput(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver()
	e := newTestEngine(t, tr)

	_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = e.Exchange(context.Background(), nil, []byte{0x00})
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, 0, tr.Calls())
}

func TestExchange_CancelledContext(t *testing.T) {
	t.Parallel()

	tr := testutil.NewScriptedTransceiver(testutil.IBlock(0, false, 0x90, 0x00))
	e := newTestEngine(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Exchange(ctx, sessionWithFSCI(t, 8), []byte{0x00})
	require.ErrorIs(t, err, ErrTransceiveFailed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExchangeState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "AwaitingChainAck", StateAwaitingChainAck.String())
	assert.Equal(t, "Aborted", StateAborted.String())
	assert.Equal(t, "ExchangeState(42)", ExchangeState(42).String())
}
