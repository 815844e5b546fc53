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

// Frame identifiers (TFI)
const (
	HostToPn532 = 0xD4 // host to PN532
	Pn532ToHost = 0xD5 // PN532 to host
	ErrorTFI    = 0x7F // application level error frame
)

// Frame markers
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// Frame size limits
const (
	// MaxBodyLength is the largest LEN of a normal information frame. LEN
	// counts the TFI, the command code and the parameters.
	MaxBodyLength = 0xFE
	// MaxParamsLength is how many parameter bytes fit after TFI and command.
	MaxParamsLength = MaxBodyLength - 2
	// Overhead is preamble, start code, LEN, LCS, DCS and postamble.
	Overhead = 7
)

// ACK and NACK frames
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)
