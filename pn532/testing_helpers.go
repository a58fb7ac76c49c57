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
	"fmt"
	"sync"
	"time"
)

// MockTransport is a scriptable Transport for tests. Responses are queued
// per command code; a command with an empty queue falls back to its fixed
// response, then to an error.
type MockTransport struct {
	queued  map[byte][][]byte
	fixed   map[byte][]byte
	errs    map[byte]error
	calls   []MockCall
	delay   time.Duration
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// MockCall records one SendCommand invocation
type MockCall struct {
	Args []byte
	Cmd  byte
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		queued: make(map[byte][][]byte),
		fixed:  make(map[byte][]byte),
		errs:   make(map[byte]error),
	}
}

// SetResponse sets the response returned for cmd whenever nothing is queued
func (m *MockTransport) SetResponse(cmd byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[cmd] = resp
}

// QueueResponse appends one-shot responses for cmd
func (m *MockTransport) QueueResponse(cmd byte, resps ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[cmd] = append(m.queued[cmd], resps...)
}

// SetError makes every cmd fail with err; nil clears it
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, cmd)
		return
	}
	m.errs[cmd] = err
}

// SetDelay makes every command take at least d
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SendCommand returns the scripted response for cmd
func (m *MockTransport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrTransportClosed
	}
	m.calls = append(m.calls, MockCall{Cmd: cmd, Args: append([]byte(nil), args...)})
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[cmd]; ok {
		return nil, err
	}
	if q := m.queued[cmd]; len(q) > 0 {
		m.queued[cmd] = q[1:]
		return append([]byte(nil), q[0]...), nil
	}
	if resp, ok := m.fixed[cmd]; ok {
		return append([]byte(nil), resp...), nil
	}
	return nil, fmt.Errorf("mock: no response for command %02X", cmd)
}

// Calls returns every recorded invocation
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how often cmd was sent
func (m *MockTransport) CallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Cmd == cmd {
			n++
		}
	}
	return n
}

// LastArgs returns the arguments of the last cmd invocation, or nil
func (m *MockTransport) LastArgs(cmd byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Cmd == cmd {
			return m.calls[i].Args
		}
	}
	return nil
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetTimeout records the timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// IsConnected reports whether Close was not called yet
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
