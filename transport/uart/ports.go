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

package uart

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port that may host a PN532
type PortInfo struct {
	Name         string
	VIDPID       string
	SerialNumber string
	Product      string
	IsUSB        bool
}

// DefaultBlocklist returns USB VID:PID pairs of serial devices that are
// never PN532 readers and misbehave when probed.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno
		"2341:0001", // Arduino Uno (old firmware)
		"1A86:55D4", // CH9102 on ESP32 boards
	}
}

// ListPorts returns the serial ports of the system, skipping devices whose
// VID:PID appears in blocklist and paths listed in ignorePaths.
func ListPorts(blocklist, ignorePaths []string) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			info.VIDPID = ParseVIDPID("VID:" + d.VID + " PID:" + d.PID)
		}
		if IsBlocked(info.VIDPID, blocklist) || IsPathIgnored(info.Name, ignorePaths) {
			continue
		}
		ports = append(ports, info)
	}
	return ports, nil
}

// IsBlocked reports whether vidpid is in blocklist, ignoring case
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// ParseVIDPID extracts an upper case VID:PID from descriptors such as
// "VID:1234 PID:5678", "vendor=1234 product=5678" or "1234:5678".
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	vid := hexAfter(descriptor, "VID:", "VENDOR=", "VID=")
	pid := hexAfter(descriptor, "PID:", "PRODUCT=", "PID=")
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if parts := strings.Split(descriptor, ":"); len(parts) == 2 && isHex(parts[0]) && isHex(parts[1]) {
		return descriptor
	}
	return ""
}

// hexAfter returns the hex digits following the first key found
func hexAfter(s string, keys ...string) string {
	for _, key := range keys {
		if idx := strings.Index(s, key); idx >= 0 {
			return leadingHex(s[idx+len(key):])
		}
	}
	return ""
}

func leadingHex(s string) string {
	end := 0
	for end < len(s) && isHexDigit(s[end]) {
		end++
	}
	return s[:end]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// IsPathIgnored reports whether devicePath matches one of ignorePaths after
// cleaning, case-insensitively.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalized := normalizePath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizePath(p) == normalized {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
