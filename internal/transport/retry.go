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

// Package transport holds helpers shared by the PN532 host transports
package transport

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-iso14443/pn532"
)

// RetryOperation is one attempt of a retried operation. It returns the
// result, whether another attempt is wanted, and a permanent error that
// stops retrying.
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// OnRetry runs before every further attempt, typically sending a NACK
	OnRetry     func() error
	Description string
	Port        string
	MaxRetries  int
	RetryDelay  time.Duration
}

// WithRetry runs operation until it stops asking for a retry, fails, the
// retries run out or ctx is done.
func WithRetry[T any](ctx context.Context, config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt == config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}

	return zero, pn532.NewTransportError(config.Description, config.Port,
		pn532.ErrCommunicationFailed, pn532.ErrorTypeTransient)
}

// TimeoutRetry polls operation until it stops asking for a retry or the
// timeout expires. Used for waiting on device readiness.
func TimeoutRetry[T any](timeout time.Duration, port string, operation RetryOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, pn532.NewTimeoutError("timeoutRetry", port)
		}
		time.Sleep(time.Millisecond)
	}
}
