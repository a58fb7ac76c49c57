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
	"fmt"
	"time"
)

// TransportContext is a Transport with context support for cancellation
// and timeouts.
type TransportContext interface {
	Transport

	// SendCommandContext sends a command to the PN532 with context support
	SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error)
}

// transportContextAdapter wraps a Transport to provide context support
type transportContextAdapter struct {
	Transport
	timeout time.Duration
}

// SendCommandContext narrows the transport timeout to the context deadline
// and stops waiting when ctx is done. The command keeps running on the
// transport in that case.
func (t *transportContextAdapter) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled before sending command: %w", ctx.Err())
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (t.timeout == 0 || remaining < t.timeout) {
			if err := t.Transport.SetTimeout(remaining); err != nil {
				return nil, fmt.Errorf("failed to set transport timeout: %w", err)
			}
			defer func() {
				if t.timeout > 0 {
					_ = t.Transport.SetTimeout(t.timeout)
				}
			}()
		}
	}

	type result struct {
		err  error
		data []byte
	}
	resultChan := make(chan result, 1)

	go func() {
		data, err := t.SendCommand(cmd, args)
		resultChan <- result{err, data}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for command response: %w", ctx.Err())
	case res := <-resultChan:
		return res.data, res.err
	}
}

// SetTimeout records the base timeout so it can be restored after a
// deadline-bound command
func (t *transportContextAdapter) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	if err := t.Transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set transport timeout: %w", err)
	}
	return nil
}

// AsTransportContext converts a Transport to TransportContext
func AsTransportContext(t Transport) TransportContext {
	if tc, ok := t.(TransportContext); ok {
		return tc
	}
	return &transportContextAdapter{Transport: t}
}
