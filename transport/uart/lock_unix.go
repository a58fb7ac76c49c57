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

//go:build linux || darwin || freebsd || netbsd || openbsd

package uart

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-iso14443/pn532"
	"golang.org/x/sys/unix"
)

// portLock is an advisory exclusive flock on the serial device node
type portLock struct {
	fd int
}

func acquireLock(path string) (*portLock, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for locking: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, pn532.NewTransportError("lock", path, pn532.ErrDeviceBusy, pn532.ErrorTypePermanent)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &portLock{fd: fd}, nil
}

func (l *portLock) release() error {
	if l == nil {
		return nil
	}
	_ = unix.Flock(l.fd, unix.LOCK_UN)
	if err := unix.Close(l.fd); err != nil {
		return fmt.Errorf("failed to release port lock: %w", err)
	}
	return nil
}
