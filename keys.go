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
	"encoding/hex"
	"fmt"
	"strings"
)

// Key is a 6-byte MIFARE Classic sector key.
type Key [KeySize]byte

// String returns the key as upper-case hex
func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// ParseKey parses a 12 hex digit key such as "FFFFFFFFFFFF".
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return k, fmt.Errorf("%w: key %q: %w", ErrInvalidParameter, s, err)
	}
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: key %q must be %d bytes, got %d", ErrInvalidParameter, s, KeySize, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// KeyRole selects which of the two sector keys is used.
type KeyRole byte

// Key roles. The values match the MIFARE AUTH command offsets (0x60 + role).
const (
	KeyA KeyRole = 0x00
	KeyB KeyRole = 0x01
)

// String returns "A" or "B"
func (r KeyRole) String() string {
	if r == KeyB {
		return "B"
	}
	return "A"
}

// Other returns the opposite role.
func (r KeyRole) Other() KeyRole {
	if r == KeyB {
		return KeyA
	}
	return KeyB
}

// ParseKeyRole accepts "a", "A", "b" or "B".
func ParseKeyRole(s string) (KeyRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return KeyA, nil
	case "b":
		return KeyB, nil
	default:
		return KeyA, fmt.Errorf("%w: key role %q (want a or b)", ErrInvalidParameter, s)
	}
}

// NamedKey is a well-known key with a short description.
type NamedKey struct {
	Name string
	Key  Key
}

// DefaultKeys are the well-known keys tried in auto mode, in priority order.
var DefaultKeys = []NamedKey{
	{Name: "factory default", Key: Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	{Name: "NFC Forum", Key: Key{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}},
	{Name: "MAD", Key: Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
	{Name: "common B", Key: Key{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5}},
	{Name: "4D3A99C351DD", Key: Key{0x4D, 0x3A, 0x99, 0xC3, 0x51, 0xDD}},
	{Name: "1A982C7E459A", Key: Key{0x1A, 0x98, 0x2C, 0x7E, 0x45, 0x9A}},
	{Name: "AABBCCDDEEFF", Key: Key{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}},
	{Name: "zero", Key: Key{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
}

// KeyPair is what is known about a sector's two keys.
type KeyPair struct {
	KeyA    Key
	KeyB    Key
	HasKeyA bool
	HasKeyB bool
}

// Key returns the key for role and whether it is known.
func (p KeyPair) Key(role KeyRole) (Key, bool) {
	if role == KeyB {
		return p.KeyB, p.HasKeyB
	}
	return p.KeyA, p.HasKeyA
}

// KeySet maps a sector trailer address to the keys known to work for it.
type KeySet map[int]KeyPair

// Record stores key for role in the sector containing block.
func (s KeySet) Record(block int, role KeyRole, key Key) {
	trailer := TrailerOf(block)
	pair := s[trailer]
	if role == KeyB {
		pair.KeyB, pair.HasKeyB = key, true
	} else {
		pair.KeyA, pair.HasKeyA = key, true
	}
	s[trailer] = pair
}

// Lookup returns the known key for role in the sector containing block.
func (s KeySet) Lookup(block int, role KeyRole) (Key, bool) {
	return s[TrailerOf(block)].Key(role)
}

// Pair returns everything known about the sector containing block. Unknown
// keys are zero.
func (s KeySet) Pair(block int) KeyPair {
	return s[TrailerOf(block)]
}
