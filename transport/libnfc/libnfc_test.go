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

package libnfc

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-iso14443"
	testutil "github.com/ZaparooProject/go-iso14443/internal/testing"
	"github.com/clausecker/nfc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	selectErr  error
	target     nfc.Target
	card       *testutil.VirtualCard
	properties map[int]bool
	deselected bool
	closed     bool
}

func newFakeDevice() *fakeDevice {
	card := &nfc.ISO14443aTarget{Atqa: testutil.TestEMVATQA, Sak: testutil.TestEMVSAK, UIDLen: len(testutil.TestEMVUID)}
	copy(card.UID[:], testutil.TestEMVUID)
	return &fakeDevice{
		target:     card,
		card:       testutil.NewVirtualCard(nil, testutil.EchoHandler),
		properties: map[int]bool{},
	}
}

func (*fakeDevice) InitiatorInit() error { return nil }

func (f *fakeDevice) SetPropertyBool(property int, value bool) error {
	f.properties[property] = value
	return nil
}

func (f *fakeDevice) InitiatorSelectPassiveTarget(nfc.Modulation, []byte) (nfc.Target, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.target, nil
}

func (f *fakeDevice) InitiatorTransceiveBytes(tx, rx []byte, _ int) (int, error) {
	reply, err := f.card.Transceive(tx)
	if err != nil {
		return 0, nfc.Error(nfc.ERFTRANS)
	}
	return copy(rx, reply), nil
}

func (f *fakeDevice) InitiatorDeselectTarget() error {
	f.deselected = true
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

func TestNewReader_RawFraming(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	_, err := newReader(dev)
	require.NoError(t, err)

	assert.False(t, dev.properties[nfc.AutoISO14443_4])
	assert.False(t, dev.properties[nfc.EasyFraming])
	assert.False(t, dev.properties[nfc.InfiniteSelect])
}

func TestNewReader_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := newReader(newFakeDevice(), WithTimeout(0))
	require.ErrorIs(t, err, iso14443.ErrInvalidParameter)
	_, err = newReader(newFakeDevice(), WithLogger(nil))
	require.ErrorIs(t, err, iso14443.ErrInvalidParameter)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	r, err := newReader(dev)
	require.NoError(t, err)

	target, err := r.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.TestEMVUID, target.UID)
	assert.Equal(t, testutil.TestEMVSAK, target.SAK)
	assert.True(t, target.IsISO14443_4Compliant())
	assert.False(t, dev.properties[nfc.HandleCRC])
	assert.Same(t, target, r.Target())
}

func TestDetect_NoTarget(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		dev := newFakeDevice()
		dev.selectErr = nfc.Error(nfc.ETIMEOUT)
		r, err := newReader(dev)
		require.NoError(t, err)

		_, err = r.Detect(context.Background())
		require.ErrorIs(t, err, iso14443.ErrNoTarget)
	})

	t.Run("empty target", func(t *testing.T) {
		t.Parallel()
		dev := newFakeDevice()
		dev.target = &nfc.ISO14443aTarget{}
		r, err := newReader(dev)
		require.NoError(t, err)

		_, err = r.Detect(context.Background())
		require.ErrorIs(t, err, iso14443.ErrNoTarget)
	})

	t.Run("device error", func(t *testing.T) {
		t.Parallel()
		dev := newFakeDevice()
		dev.selectErr = nfc.Error(nfc.EIO)
		r, err := newReader(dev)
		require.NoError(t, err)

		_, err = r.Detect(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, iso14443.ErrNoTarget))
	})
}

func TestReader_CarriesEngine(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	r, err := newReader(dev)
	require.NoError(t, err)
	ctx := context.Background()

	target, err := r.Detect(ctx)
	require.NoError(t, err)

	engine, err := iso14443.New(r)
	require.NoError(t, err)
	card, err := engine.Activate(ctx, target)
	require.NoError(t, err)

	resp, err := card.TransmitContext(ctx, []byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xA4, 0x04, 0x00, 0x00, 0x90, 0x00}, resp)

	require.NoError(t, card.CloseContext(ctx))
	require.NoError(t, r.Release(ctx))
	assert.True(t, dev.deselected)
	assert.Nil(t, r.Target())
	require.NoError(t, r.Close())
	assert.True(t, dev.closed)
}

func TestTransceive_Errors(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	r, err := newReader(dev)
	require.NoError(t, err)

	_, err = r.Transceive(nil)
	require.ErrorIs(t, err, iso14443.ErrInvalidParameter)

	dev.card.RemoveFromField()
	_, err = r.Transceive(testutil.WithCRC(0xE0, 0x50))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.TransceiveContext(ctx, testutil.WithCRC(0xE0, 0x50))
	require.ErrorIs(t, err, context.Canceled)
}
