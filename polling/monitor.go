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

// Package polling runs the card detection loop: it waits for a card,
// activates it over ISO/IEC 14443-4 and hands one card session at a time
// to the application.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-iso14443"
	"go.uber.org/zap"
)

// Detector is a reader that runs anticollision and carries raw frames
type Detector interface {
	iso14443.Transceiver

	// Detect runs anticollision and returns iso14443.ErrNoTarget when no
	// card answered
	Detect(ctx context.Context) (*iso14443.Target, error)

	// Release drops the reader's current target
	Release(ctx context.Context) error
}

// Monitor polls a Detector and drives each new card through activation and
// the OnCard callback. Callbacks run on the polling goroutine.
type Monitor struct {
	detector Detector
	engine   *iso14443.Engine
	config   *Config
	log      *zap.SugaredLogger
	now      func() time.Time

	// OnCard runs once per card presence with the activated card. The card
	// is deselected after it returns.
	OnCard func(ctx context.Context, card *iso14443.Card) error
	// OnCardRemoved runs when a card has left the field
	OnCardRemoved func(target *iso14443.Target)
	// OnNotCompliant runs for cards without ISO/IEC 14443-4 support
	OnNotCompliant func(target *iso14443.Target)

	mu    sync.Mutex
	state CardState
}

// NewMonitor creates a monitor for detector. The engine carrying the
// protocol is built from detector with engineOpts.
func NewMonitor(detector Detector, config *Config, logger *zap.SugaredLogger,
	engineOpts ...iso14443.Option,
) (*Monitor, error) {
	if detector == nil {
		return nil, fmt.Errorf("%w: nil detector", ErrInvalidConfig)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	engine, err := iso14443.New(detector, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create protocol engine: %w", err)
	}

	return &Monitor{
		detector: detector,
		engine:   engine,
		config:   config,
		log:      logger,
		now:      time.Now,
	}, nil
}

// Engine returns the protocol engine used for activation
func (m *Monitor) Engine() *iso14443.Engine {
	return m.engine
}

// GetState returns a copy of the current card state
func (m *Monitor) GetState() CardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run polls until ctx is done and returns ctx.Err()
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Infow("card monitor started", "poll_interval", m.config.PollInterval)
	defer m.log.Infow("card monitor stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.Poll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}
}

// Poll performs one detection cycle
func (m *Monitor) Poll(ctx context.Context) {
	detectCtx, cancel := context.WithTimeout(ctx, m.config.DetectTimeout)
	target, err := m.detector.Detect(detectCtx)
	cancel()

	if err != nil {
		m.handleDetectError(ctx, err)
		return
	}

	m.handleTarget(ctx, target)
	m.release(ctx)
}

func (m *Monitor) handleDetectError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		return
	case errors.Is(err, iso14443.ErrNoTarget), errors.Is(err, context.DeadlineExceeded):
		m.checkRemoval()
	default:
		m.log.Warnw("card detection failed", "error", err)
		m.removeCard()
	}
}

func (m *Monitor) checkRemoval() {
	m.mu.Lock()
	due := m.state.RemovalDue(m.now(), m.config.CardRemovalTimeout)
	m.mu.Unlock()

	if due {
		m.removeCard()
	}
}

func (m *Monitor) removeCard() {
	m.mu.Lock()
	if !m.state.Present {
		m.mu.Unlock()
		return
	}
	target := m.state.Target
	m.state.TransitionToIdle()
	m.mu.Unlock()

	m.log.Infow("card removed", "uid", target.UIDString())
	if m.OnCardRemoved != nil {
		m.OnCardRemoved(target)
	}
}

func (m *Monitor) handleTarget(ctx context.Context, target *iso14443.Target) {
	m.mu.Lock()
	same := m.state.SameCard(target, m.config.RequireRemoval)
	if same {
		m.state.Seen(m.now())
	}
	m.mu.Unlock()
	if same {
		return
	}

	// A different card took the place of the previous one.
	m.removeCard()

	m.mu.Lock()
	m.state.TransitionToDetected(target, m.now())
	m.mu.Unlock()
	m.log.Infow("card detected", "uid", target.UIDString(), "sak", fmt.Sprintf("%02X", target.SAK))

	err := m.serveCard(ctx, target)

	m.mu.Lock()
	m.state.TransitionToHandled(err)
	m.state.Seen(m.now())
	m.mu.Unlock()
}

// serveCard activates target and runs OnCard with it
func (m *Monitor) serveCard(ctx context.Context, target *iso14443.Target) error {
	if !target.IsISO14443_4Compliant() {
		m.log.Infow("card is not ISO14443-4 compliant", "uid", target.UIDString())
		if m.OnNotCompliant != nil {
			m.OnNotCompliant(target)
		}
		return iso14443.ErrNotISO14443_4Compliant
	}

	m.mu.Lock()
	m.state.TransitionToReading(m.now())
	m.mu.Unlock()

	activateCtx, cancel := context.WithTimeout(ctx, m.config.ActivateTimeout)
	card, err := m.engine.Activate(activateCtx, target)
	cancel()
	if err != nil {
		m.log.Warnw("card activation failed", "uid", target.UIDString(), "error", err)
		return err
	}
	m.log.Debugw("card activated", "uid", target.UIDString(), "ats", card.ATS().String())

	if m.OnCard != nil {
		err = m.OnCard(ctx, card)
		if err != nil {
			m.log.Warnw("card session failed", "uid", target.UIDString(), "kind", iso14443.GetErrorKind(err).String(),
				"error", err)
		}
	}

	// Deselect even after a failed session.
	if derr := card.CloseContext(ctx); derr != nil {
		m.log.Debugw("card deselect failed", "uid", target.UIDString(), "error", derr)
	}
	return err
}

func (m *Monitor) release(ctx context.Context) {
	if err := m.detector.Release(ctx); err != nil && ctx.Err() == nil {
		m.log.Debugw("target release failed", "error", err)
	}
}
