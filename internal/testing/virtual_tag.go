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

// Package testing provides an in-memory MIFARE Classic card and simulated
// readers for tests.
package testing

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
)

// Test UIDs
var (
	TestMIFARE1KUID   = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	TestMIFARE4KUID   = []byte{0x12, 0x34, 0x56, 0x78}
	TestUltralightUID = []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
)

// TransportAccessBits are the access conditions of a card fresh from the
// factory: data blocks and key B readable and writable with key A or B.
var TransportAccessBits = [4]byte{0xFF, 0x07, 0x80, 0x69}

// FactoryKey is the key every sector of a blank card answers to.
var FactoryKey = mfclassic.Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// VirtualTag is an in-memory MIFARE Classic card. Like a real card it
// refuses data access outside the authenticated sector, halts after a
// rejected key until it is selected again, never reveals keys when its
// trailer is read, and keeps block 0 read-only.
type VirtualTag struct {
	UID                 []byte
	Memory              [][]byte
	ATQA                [2]byte
	authenticatedSector int
	SAK                 byte
	Present             bool
	halted              bool
}

// NewVirtualMIFARE1K creates a blank 1K card. A nil uid uses TestMIFARE1KUID.
func NewVirtualMIFARE1K(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestMIFARE1KUID
	}
	return newVirtualTag(uid, mfclassic.Capacity1K, [2]byte{0x00, 0x04}, 0x08)
}

// NewVirtualMIFARE4K creates a blank 4K card. A nil uid uses TestMIFARE4KUID.
func NewVirtualMIFARE4K(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestMIFARE4KUID
	}
	return newVirtualTag(uid, mfclassic.Capacity4K, [2]byte{0x00, 0x02}, 0x18)
}

// NewVirtualUltralight creates a tag that answers anti-collision like a
// MIFARE Ultralight, which is not a MIFARE Classic card. A nil uid uses
// TestUltralightUID.
func NewVirtualUltralight(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestUltralightUID
	}
	return newVirtualTag(uid, mfclassic.Capacity1K, [2]byte{0x00, 0x44}, 0x00)
}

func newVirtualTag(uid []byte, c mfclassic.Capacity, atqa [2]byte, sak byte) *VirtualTag {
	tag := &VirtualTag{
		UID:                 append([]byte(nil), uid...),
		Memory:              make([][]byte, c.Blocks()),
		ATQA:                atqa,
		SAK:                 sak,
		Present:             true,
		authenticatedSector: -1,
	}
	for n := range tag.Memory {
		tag.Memory[n] = make([]byte, mfclassic.BlockSize)
	}

	block0 := tag.Memory[mfclassic.ManufacturerBlock]
	copy(block0, uid[:min(4, len(uid))])
	block0[4] = block0[0] ^ block0[1] ^ block0[2] ^ block0[3]
	block0[5] = sak
	block0[6], block0[7] = atqa[1], atqa[0]
	copy(block0[8:], "VIRTUAL!")

	for sector := 0; sector < c.Sectors(); sector++ {
		tag.SetSectorKeys(sector, FactoryKey, FactoryKey)
	}
	return tag
}

// UIDString returns the UID as hex
func (v *VirtualTag) UIDString() string {
	return hex.EncodeToString(v.UID)
}

// Capacity returns the size class of the card
func (v *VirtualTag) Capacity() mfclassic.Capacity {
	if len(v.Memory) == mfclassic.Capacity4K.Blocks() {
		return mfclassic.Capacity4K
	}
	return mfclassic.Capacity1K
}

// SetSectorKeys rewrites the trailer of sector with the transport access
// bits and the given keys.
func (v *VirtualTag) SetSectorKeys(sector int, keyA, keyB mfclassic.Key) {
	t := &mfclassic.TrailerBlock{KeyA: keyA, AccessBits: TransportAccessBits, KeyB: keyB}
	raw := t.Bytes()
	copy(v.Memory[mfclassic.SectorTrailer(sector)], raw[:])
}

// Key returns the stored key of role for the sector containing block.
func (v *VirtualTag) Key(block int, role mfclassic.KeyRole) mfclassic.Key {
	raw := v.Memory[mfclassic.TrailerOf(block)]
	var k mfclassic.Key
	if role == mfclassic.KeyB {
		copy(k[:], raw[10:16])
	} else {
		copy(k[:], raw[0:6])
	}
	return k
}

// Select answers anti-collision and wakes a halted card.
func (v *VirtualTag) Select() (*mfclassic.TagInfo, error) {
	if !v.Present {
		return nil, mfclassic.ErrTagNotFound
	}
	v.halted = false
	v.authenticatedSector = -1
	return &mfclassic.TagInfo{UID: append([]byte(nil), v.UID...), ATQA: v.ATQA, SAK: v.SAK}, nil
}

// Authenticate checks key against the trailer of the sector containing
// block. A wrong key halts the card.
func (v *VirtualTag) Authenticate(block int, role mfclassic.KeyRole, key mfclassic.Key) error {
	if err := v.check(block); err != nil {
		return fmt.Errorf("%w: %w", mfclassic.ErrAuthFailed, err)
	}
	if v.Key(block, role) != key {
		v.halted = true
		v.authenticatedSector = -1
		return fmt.Errorf("%w: wrong key %s for block %d", mfclassic.ErrAuthFailed, role, block)
	}
	v.authenticatedSector = mfclassic.SectorOf(block)
	return nil
}

// ReadBlock returns a copy of block. Keys read back as zeros.
func (v *VirtualTag) ReadBlock(block int) ([]byte, error) {
	if err := v.checkAccess(block); err != nil {
		return nil, fmt.Errorf("%w: %w", mfclassic.ErrTagReadFailed, err)
	}

	data := append([]byte(nil), v.Memory[block]...)
	if mfclassic.IsTrailerBlock(block) {
		clear(data[0:6])
		clear(data[10:16])
	}
	return data, nil
}

// WriteBlock stores data in block.
func (v *VirtualTag) WriteBlock(block int, data []byte) error {
	if err := v.checkAccess(block); err != nil {
		return fmt.Errorf("%w: %w", mfclassic.ErrTagWriteFailed, err)
	}
	if block == mfclassic.ManufacturerBlock {
		return fmt.Errorf("%w: block 0 is read-only", mfclassic.ErrTagWriteFailed)
	}
	if len(data) != mfclassic.BlockSize {
		return fmt.Errorf("%w: %d bytes", mfclassic.ErrInvalidParameter, len(data))
	}
	copy(v.Memory[block], data)
	return nil
}

// Contents returns the memory as a dump, keys included.
func (v *VirtualTag) Contents() []byte {
	return bytes.Join(v.Memory, nil)
}

// Remove takes the card out of the field.
func (v *VirtualTag) Remove() {
	v.Present = false
	v.authenticatedSector = -1
}

// Insert puts the card back. It must be selected before use.
func (v *VirtualTag) Insert() {
	v.Present = true
	v.halted = true
}

// AuthenticatedSector returns the open sector, or -1.
func (v *VirtualTag) AuthenticatedSector() int {
	return v.authenticatedSector
}

// Halted reports whether the card ignores commands until reselected.
func (v *VirtualTag) Halted() bool {
	return v.halted
}

func (v *VirtualTag) check(block int) error {
	switch {
	case !v.Present:
		return fmt.Errorf("no answer from card")
	case v.halted:
		return fmt.Errorf("card is halted")
	case block < 0 || block >= len(v.Memory):
		return fmt.Errorf("block %d out of range", block)
	}
	return nil
}

func (v *VirtualTag) checkAccess(block int) error {
	if err := v.check(block); err != nil {
		return err
	}
	if sector := mfclassic.SectorOf(block); v.authenticatedSector != sector {
		return fmt.Errorf("not authenticated to sector %d", sector)
	}
	return nil
}
