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

package pn532

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZaparooProject/go-iso14443"
)

// FirmwareVersion is the answer to GetFirmwareVersion
type FirmwareVersion struct {
	IC      byte
	Ver     byte
	Rev     byte
	Support byte
}

// String returns the version as "PN5xx v1.6"
func (f *FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Ver, f.Rev)
}

// SupportsISO14443A reports the type A capability bit
func (f *FirmwareVersion) SupportsISO14443A() bool {
	return f.Support&0x01 != 0
}

// Device represents a PN532 NFC reader used as a raw ISO/IEC 14443-3 type A
// frame transceiver. Detect runs anticollision; Transceive sends single
// frames through InCommunicateThru with the CIU CRC engine switched off, so
// the protocol layer above owns block framing and CRC_A.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization.
type Device struct {
	transport   TransportContext
	config      *DeviceConfig
	log         *zap.SugaredLogger
	firmware    *FirmwareVersion
	target      *iso14443.Target
	crcDisabled bool
}

// New creates a new PN532 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	config := DefaultDeviceConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	tc := AsTransportContext(transport)
	if err := tc.SetTimeout(config.Timeout); err != nil {
		return nil, fmt.Errorf("failed to set timeout: %w", err)
	}

	return &Device{
		transport: tc,
		config:    config,
		log:       config.Logger,
	}, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// FirmwareVersion returns the version read by Init, or nil before Init
func (d *Device) FirmwareVersion() *FirmwareVersion {
	return d.firmware
}

// Target returns the card found by the last Detect, or nil
func (d *Device) Target() *iso14443.Target {
	return d.target
}

// command sends cmd and checks the response code. The returned slice starts
// after the response code.
func (d *Device) command(ctx context.Context, cmd byte, args ...byte) ([]byte, error) {
	resp, err := d.transport.SendCommandContext(ctx, cmd, args)
	if err != nil {
		return nil, fmt.Errorf("command %02X: %w", cmd, err)
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, fmt.Errorf("%w: command %02X answered with % X", ErrInvalidResponse, cmd, resp)
	}
	return resp[1:], nil
}

// Init wakes the PN532 up and configures it as a type A initiator that
// leaves layer 4 activation to the host.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.command(ctx, cmdGetFirmwareVersion)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}
	if len(fw) < 4 {
		return fmt.Errorf("%w: firmware version too short: % X", ErrInvalidResponse, fw)
	}
	d.firmware = &FirmwareVersion{IC: fw[0], Ver: fw[1], Rev: fw[2], Support: fw[3]}
	d.log.Debugw("PN532 found", "firmware", d.firmware.String())
	if !d.firmware.SupportsISO14443A() {
		return fmt.Errorf("%w: reader does not support ISO14443A", ErrInvalidResponse)
	}

	if _, err := d.command(ctx, cmdSamConfiguration, samModeNormal, samTimeout, samUseIRQ); err != nil {
		return fmt.Errorf("failed to configure SAM: %w", err)
	}
	if _, err := d.command(ctx, cmdSetParameters, paramAutomaticATRRes); err != nil {
		return fmt.Errorf("failed to set parameters: %w", err)
	}
	if _, err := d.command(ctx, cmdRFConfiguration,
		rfItemMaxRetries, 0xFF, 0x01, d.config.PassiveActivationRetries); err != nil {
		return fmt.Errorf("failed to configure RF retries: %w", err)
	}
	return nil
}

// Detect runs type A anticollision for one card at 106 kbps. It returns
// ErrNoTarget when no card answered.
func (d *Device) Detect(ctx context.Context) (*iso14443.Target, error) {
	if d.firmware == nil {
		return nil, ErrNotInitialized
	}

	resp, err := d.command(ctx, cmdInListPassiveTarget, 0x01, brTypeA106)
	if err != nil {
		return nil, fmt.Errorf("failed to list passive targets: %w", err)
	}
	// Anticollision configures the CIU with hardware CRC again
	d.crcDisabled = false
	d.target = nil

	if len(resp) == 0 || resp[0] == 0 {
		return nil, ErrNoTarget
	}

	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID
	if len(resp) < 6 {
		return nil, fmt.Errorf("%w: target data too short: % X", ErrInvalidResponse, resp)
	}
	uidLen := int(resp[5])
	if len(resp) < 6+uidLen {
		return nil, fmt.Errorf("%w: UID truncated: % X", ErrInvalidResponse, resp)
	}

	target := &iso14443.Target{
		ATQA: [2]byte{resp[2], resp[3]},
		SAK:  resp[4],
		UID:  append([]byte(nil), resp[6:6+uidLen]...),
	}
	d.target = target
	d.log.Debugw("target detected", "uid", target.UIDString(), "sak", fmt.Sprintf("%02X", target.SAK))
	return target, nil
}

// setHardwareCRC switches the CIU CRC generator and checker on or off
func (d *Device) setHardwareCRC(ctx context.Context, enabled bool) error {
	regs, err := d.command(ctx, cmdReadRegister,
		byte(regCIUTxMode>>8), byte(regCIUTxMode),
		byte(regCIURxMode>>8), byte(regCIURxMode))
	if err != nil {
		return fmt.Errorf("failed to read CIU mode registers: %w", err)
	}
	if len(regs) < 2 {
		return fmt.Errorf("%w: register read too short: % X", ErrInvalidResponse, regs)
	}

	tx, rx := regs[0]&^ciuCRCEnable, regs[1]&^ciuCRCEnable
	if enabled {
		tx |= ciuCRCEnable
		rx |= ciuCRCEnable
	}
	if _, err := d.command(ctx, cmdWriteRegister,
		byte(regCIUTxMode>>8), byte(regCIUTxMode), tx,
		byte(regCIURxMode>>8), byte(regCIURxMode), rx); err != nil {
		return fmt.Errorf("failed to write CIU mode registers: %w", err)
	}
	return nil
}

// Transceive sends one raw frame to the card
func (d *Device) Transceive(out []byte) ([]byte, error) {
	return d.TransceiveContext(context.Background(), out)
}

// TransceiveContext sends one raw frame, CRC_A included, and returns the
// card's reply with its CRC_A trailer.
func (d *Device) TransceiveContext(ctx context.Context, out []byte) ([]byte, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidParameter)
	}
	if !d.crcDisabled {
		if err := d.setHardwareCRC(ctx, false); err != nil {
			return nil, err
		}
		d.crcDisabled = true
	}

	resp, err := d.command(ctx, cmdInCommunicateThru, out...)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: missing status byte", ErrInvalidResponse)
	}
	if resp[0]&statusErrorMask != 0 {
		return nil, &StatusError{Cmd: cmdInCommunicateThru, Status: resp[0]}
	}
	d.log.Debugw("frame exchanged", "tx", hex.EncodeToString(out), "rx", hex.EncodeToString(resp[1:]))
	return resp[1:], nil
}

// Release deselects every target held by the PN532 and turns the hardware
// CRC back on for the next anticollision.
func (d *Device) Release(ctx context.Context) error {
	resp, err := d.command(ctx, cmdInRelease, 0x00)
	d.target = nil
	if err != nil {
		return fmt.Errorf("failed to release target: %w", err)
	}
	if len(resp) > 0 && resp[0]&statusErrorMask != 0 {
		return &StatusError{Cmd: cmdInRelease, Status: resp[0]}
	}
	if d.crcDisabled {
		if err := d.setHardwareCRC(ctx, true); err != nil {
			return err
		}
		d.crcDisabled = false
	}
	return nil
}

// Close closes the device connection
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

var _ iso14443.TransceiverContext = (*Device)(nil)
