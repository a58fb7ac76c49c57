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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	testutil "github.com/ZaparooProject/go-iso14443/internal/testing"
)

// slowTransceiver answers after a fixed delay
type slowTransceiver struct {
	reply []byte
	delay time.Duration
	calls int32
}

func (s *slowTransceiver) Transceive(_ []byte) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	time.Sleep(s.delay)
	return s.reply, nil
}

func TestAsTransceiverContext_Cancellation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		delay     time.Duration
		timeout   time.Duration
		expectErr bool
	}{
		{name: "reply before deadline", delay: 5 * time.Millisecond, timeout: 500 * time.Millisecond},
		{name: "deadline before reply", delay: time.Second, timeout: 10 * time.Millisecond, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := &slowTransceiver{delay: tt.delay, reply: []byte{0x02, 0x90, 0x00}}
			tc := AsTransceiverContext(st)

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			start := time.Now()
			reply, err := tc.TransceiveContext(ctx, []byte{0x02})
			if tt.expectErr {
				require.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Less(t, time.Since(start), tt.delay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte{0x02, 0x90, 0x00}, reply)
		})
	}
}

func TestAsTransceiverContext_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	st := &slowTransceiver{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AsTransceiverContext(st).TransceiveContext(ctx, []byte{0x02})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&st.calls))
}

// contextTransceiver already supports contexts
type contextTransceiver struct {
	slowTransceiver
}

func (c *contextTransceiver) TransceiveContext(_ context.Context, out []byte) ([]byte, error) {
	return c.Transceive(out)
}

func TestAsTransceiverContext_PassThrough(t *testing.T) {
	t.Parallel()

	ct := &contextTransceiver{}
	assert.Same(t, ct, AsTransceiverContext(ct))
}

func TestBlockTransceiver_Trace(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	tr := testutil.NewScriptedTransceiver(testutil.IBlock(0, false, 0x90, 0x00)).FailAt(1, errors.New("gone"))
	e := newTestEngine(t, tr, WithLogger(zap.New(core).Sugar()), WithTrace(true, true))

	_, err := e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xA4})
	require.NoError(t, err)
	_, err = e.Exchange(context.Background(), sessionWithFSCI(t, 8), []byte{0x00, 0xA4})
	require.Error(t, err)

	assert.Equal(t, 2, logs.FilterMessage("tx").Len())
	assert.Equal(t, 1, logs.FilterMessage("rx").Len())
	assert.Equal(t, 1, logs.FilterMessage("rx failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("exchange aborted").Len())
}
