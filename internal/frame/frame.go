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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame errors. Checksum and short-read errors are worth a NACK and a
// re-read; the others mean the peer sent something else entirely.
var (
	ErrNoStartCode    = errors.New("frame start code not found")
	ErrShortFrame     = errors.New("frame incomplete")
	ErrLengthChecksum = errors.New("frame length checksum mismatch")
	ErrDataChecksum   = errors.New("frame data checksum mismatch")
	ErrUnexpectedTFI  = errors.New("unexpected frame identifier")
	ErrErrorFrame     = errors.New("PN532 reported an application error")
	ErrDataTooLarge   = errors.New("data too large for a normal frame")
)

// CalculateChecksum returns the byte sum of data
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumValid reports whether data, checksum byte included, sums to zero
func ChecksumValid(data []byte) bool {
	return CalculateChecksum(data) == 0
}

// CalculateLengthChecksum returns LCS for length
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// CalculateDataChecksum returns DCS over TFI and data
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// Build returns the normal information frame carrying cmd and args from
// the host to the PN532.
func Build(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args)
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, dataLen)
	}

	out := make([]byte, 0, Overhead+dataLen)
	out = append(out, Preamble, StartCode1, StartCode2, byte(dataLen), CalculateLengthChecksum(byte(dataLen)))
	out = append(out, HostToPn532, cmd)
	out = append(out, args...)
	out = append(out, CalculateDataChecksum(HostToPn532, append([]byte{cmd}, args...)), Postamble)
	return out, nil
}

// findStart returns the index of the LEN byte after the first start code
func findStart(buf []byte) int {
	idx := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if idx < 0 {
		return -1
	}
	return idx + 2
}

// IsAck reports whether buf starts with an ACK frame, leading preamble
// bytes aside
func IsAck(buf []byte) bool {
	off := findStart(buf)
	if off < 0 || len(buf) < off+2 {
		return false
	}
	return buf[off] == 0x00 && buf[off+1] == 0xFF
}

// AckEnd returns the index just past the first ACK frame in buf, postamble
// included, or -1 when buf holds no ACK
func AckEnd(buf []byte) int {
	idx := bytes.Index(buf, AckFrame[1:1+headerLength])
	if idx < 0 {
		return -1
	}
	end := idx + headerLength
	if end < len(buf) && buf[end] == Postamble {
		end++
	}
	return end
}

// Parse extracts the payload of a PN532 to host frame: the response code
// followed by the response data. ErrShortFrame means more bytes are needed;
// consumed is the number of bytes of buf the frame occupied.
func Parse(buf []byte) (payload []byte, consumed int, err error) {
	off := findStart(buf)
	if off < 0 {
		if len(buf) > 0 && buf[len(buf)-1] == StartCode1 {
			return nil, 0, ErrShortFrame
		}
		return nil, 0, ErrNoStartCode
	}
	if len(buf) < off+2 {
		return nil, 0, ErrShortFrame
	}

	length, lcs := buf[off], buf[off+1]
	if length == 0x00 && lcs == 0xFF {
		return nil, 0, fmt.Errorf("%w: got ACK", ErrUnexpectedTFI)
	}
	if length+lcs != 0 {
		return nil, off + 2, ErrLengthChecksum
	}
	if length == 0 {
		return nil, off + 2, fmt.Errorf("%w: empty frame", ErrUnexpectedTFI)
	}

	dataStart := off + 2
	dataEnd := dataStart + int(length)
	if len(buf) < dataEnd+1 {
		return nil, 0, ErrShortFrame
	}
	consumed = dataEnd + 1
	if len(buf) > consumed && buf[consumed] == Postamble {
		consumed++
	}

	data := buf[dataStart:dataEnd]
	if !ChecksumValid(buf[dataStart : dataEnd+1]) {
		return nil, consumed, ErrDataChecksum
	}

	switch data[0] {
	case Pn532ToHost:
		return append([]byte(nil), data[1:]...), consumed, nil
	case ErrorTFI:
		return nil, consumed, ErrErrorFrame
	default:
		return nil, consumed, fmt.Errorf("%w: %02X", ErrUnexpectedTFI, data[0])
	}
}

// IsRetryable reports whether a Parse error should be answered with NACK
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLengthChecksum) || errors.Is(err, ErrDataChecksum)
}
