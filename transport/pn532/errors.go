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

package pn532

import (
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
)

// PN532Error is a non-zero status byte returned by the PN532 for a command
// that reached the tag. Error codes are from the PN532 User Manual, 7.1.
type PN532Error struct {
	Command   string
	ErrorCode byte
}

// NewPN532Error creates a status error for command.
func NewPN532Error(code byte, command string) *PN532Error {
	return &PN532Error{Command: command, ErrorCode: code}
}

func (e *PN532Error) Error() string {
	return fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.ErrorCode, errorCodeMeaning(e.ErrorCode))
}

// Unwrap lets errors.Is match a key rejection as mfclassic.ErrAuthFailed.
func (e *PN532Error) Unwrap() error {
	if e.IsAuthenticationError() {
		return mfclassic.ErrAuthFailed
	}
	return nil
}

// IsAuthenticationError reports a rejected MIFARE key
func (e *PN532Error) IsAuthenticationError() bool {
	return e.ErrorCode == statusAuthFailed
}

// IsTimeoutError reports that the tag did not answer
func (e *PN532Error) IsTimeoutError() bool {
	return e.ErrorCode == statusTimeout
}

var errorMeanings = map[byte]string{
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x04: "erroneous bit count during anti-collision",
	0x05: "framing error during mifare operation",
	0x06: "abnormal bit collision",
	0x07: "communication buffer size insufficient",
	0x09: "RF buffer overflow",
	0x0A: "RF field not activated in time",
	0x0B: "RF protocol error",
	0x0D: "overheating",
	0x0E: "internal buffer overflow",
	0x10: "invalid parameter",
	0x13: "dataformat does not match",
	0x14: "authentication error",
	0x23: "UID check byte is wrong",
	0x26: "operation not allowed",
	0x27: "wrong context for command",
	0x29: "target released by initiator",
	0x2A: "card ID mismatch",
	0x2B: "card disappeared",
	0x2D: "over-current event",
	0x81: "command not supported",
}

func errorCodeMeaning(code byte) string {
	if m, ok := errorMeanings[code]; ok {
		return m
	}
	return "unknown error"
}
