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

package mfclassic

import (
	"context"
	"encoding/hex"
	"fmt"
)

// Transport is the reader-side capability set a Session drives. It can be
// implemented by a PN532 (see transport/pn532), a PC/SC reader (see
// transport/pcsc) or a simulator in tests.
//
// Implementations return ErrTagNotFound from SelectTag when no tag answers,
// and an error wrapping ErrAuthFailed when the tag rejects a key. Any other
// error from Authenticate is treated as a transport failure.
type Transport interface {
	// SelectTag runs anti-collision and selects a single ISO14443A tag.
	SelectTag(ctx context.Context) (*TagInfo, error)

	// Authenticate opens the sector containing block with key.
	Authenticate(ctx context.Context, block uint8, key Key, role KeyRole, uid []byte) error

	// ReadBlock returns the 16 bytes of block.
	ReadBlock(ctx context.Context, block uint8) ([]byte, error)

	// WriteBlock writes 16 bytes to block.
	WriteBlock(ctx context.Context, block uint8, data []byte) error
}

// TagInfo is what anti-collision reports about the selected tag.
type TagInfo struct {
	UID  []byte
	ATQA [2]byte // SENS_RES, most significant byte first
	SAK  byte
}

// IsMIFAREClassic reports whether the SAK advertises MIFARE Classic support.
func (t *TagInfo) IsMIFAREClassic() bool {
	return t.SAK&0x08 != 0
}

// Capacity returns the size class advertised by the ATQA.
func (t *TagInfo) Capacity() Capacity {
	if t.ATQA[1] == 0x02 {
		return Capacity4K
	}
	return Capacity1K
}

// UIDString returns the UID as lower-case hex
func (t *TagInfo) UIDString() string {
	return hex.EncodeToString(t.UID)
}

// ShortUID formats the first four UID bytes as an 8 digit hex number.
// Shorter UIDs are zero padded.
func ShortUID(uid []byte) string {
	var b [4]byte
	copy(b[:], uid)
	return fmt.Sprintf("%02x%02x%02x%02x", b[0], b[1], b[2], b[3])
}
