// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
)

// ErrIncomplete means the buffer does not hold a whole frame yet.
var ErrIncomplete = errors.New("incomplete frame")

// Kind identifies a parsed frame.
type Kind int

const (
	KindData Kind = iota
	KindAck
	KindNack
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ACK"
	case KindNack:
		return "NACK"
	case KindError:
		return "error"
	default:
		return "data"
	}
}

// Frame is one decoded PN532 frame.
type Frame struct {
	// Data is the response code followed by its parameters for KindData,
	// and the error code for KindError. It is empty for ACK and NACK.
	Data []byte
	Kind Kind
}

// Build returns the normal information frame carrying cmd and params:
//
//	00 00 FF LEN LCS D4 cmd params... DCS 00
func Build(cmd byte, params []byte) ([]byte, error) {
	if len(params) > MaxParamsLength {
		return nil, mfclassic.NewDataTooLargeError("build frame", "")
	}

	bodyLen := byte(len(params) + 2) //nolint:gosec // bounded by MaxBodyLength
	buf := make([]byte, 0, len(params)+2+Overhead)
	buf = append(buf, Preamble, StartCode1, StartCode2, bodyLen, Complement(bodyLen))
	buf = append(buf, HostToPn532, cmd)
	buf = append(buf, params...)
	buf = append(buf, Complement(buf[5:]...), Postamble)
	return buf, nil
}

// Parse decodes the first frame in buf and reports how many bytes of buf it
// used, including any garbage before the start code. It returns
// ErrIncomplete when more bytes are needed.
func Parse(buf []byte) (Frame, int, error) {
	return parse(buf, Pn532ToHost)
}

// ParseCommand is Parse for the other direction: it decodes a frame sent by
// the host, as a simulated PN532 receives it.
func ParseCommand(buf []byte) (Frame, int, error) {
	return parse(buf, HostToPn532)
}

func parse(buf []byte, tfi byte) (Frame, int, error) {
	start := findStartCode(buf)
	if start < 0 {
		return Frame{}, 0, ErrIncomplete
	}

	lenPos := start + 2
	if lenPos+1 >= len(buf) {
		return Frame{}, 0, ErrIncomplete
	}
	bodyLen, lcs := buf[lenPos], buf[lenPos+1]

	switch {
	case bodyLen == 0x00 && lcs == 0xFF:
		return Frame{Kind: KindAck}, consumed(buf, lenPos+2), nil
	case bodyLen == 0xFF && lcs == 0x00:
		return Frame{Kind: KindNack}, consumed(buf, lenPos+2), nil
	case bodyLen == 0, bodyLen+lcs != 0:
		return Frame{}, lenPos + 2, mfclassic.NewFrameCorruptedError("parse frame", "")
	}

	bodyPos := lenPos + 2
	dcsPos := bodyPos + int(bodyLen)
	if dcsPos >= len(buf) {
		return Frame{}, 0, ErrIncomplete
	}
	body := buf[bodyPos:dcsPos]
	used := consumed(buf, dcsPos+1)

	if CalculateChecksum(body)+buf[dcsPos] != 0 {
		return Frame{}, used, mfclassic.NewTransportError(
			"parse frame", "", mfclassic.ErrChecksumMismatch, mfclassic.ErrorTypeTransient)
	}

	data := make([]byte, len(body)-1)
	copy(data, body[1:])

	switch body[0] {
	case ErrorTFI:
		return Frame{Kind: KindError, Data: data}, used, nil
	case tfi:
		return Frame{Kind: KindData, Data: data}, used, nil
	default:
		return Frame{}, used, fmt.Errorf("%w: TFI 0x%02X", mfclassic.ErrInvalidResponse, body[0])
	}
}

func findStartCode(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i
		}
	}
	return -1
}

// consumed adds the postamble to end when it has already arrived.
func consumed(buf []byte, end int) int {
	if end < len(buf) && buf[end] == Postamble {
		return end + 1
	}
	return end
}
