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

import "fmt"

// MIFARE Classic memory structure
const (
	BlockSize = 16 // 16 bytes per block
	KeySize   = 6  // 6 bytes per key

	// ManufacturerBlock holds UID, BCC, SAK, ATQA and vendor data. It is
	// read-only on genuine cards.
	ManufacturerBlock = 0

	// Blocks below this address live in 4-block sectors, blocks at or above
	// it in 16-block sectors (4K only).
	bigSectorStart      = 128
	smallSectorBlocks   = 4
	bigSectorBlocks     = 16
	smallSectorCount    = 32
	accessBitsSize      = 4
	trailerAccessOffset = KeySize
	trailerKeyBOffset   = KeySize + accessBitsSize
)

// IsFirstBlock reports whether n is the first block of its sector.
func IsFirstBlock(n int) bool {
	if n < bigSectorStart {
		return n%smallSectorBlocks == 0
	}
	return n%bigSectorBlocks == 0
}

// IsTrailerBlock reports whether n is the last block of its sector.
func IsTrailerBlock(n int) bool {
	if n < bigSectorStart {
		return (n+1)%smallSectorBlocks == 0
	}
	return (n+1)%bigSectorBlocks == 0
}

// TrailerOf returns the trailer block address of the sector containing n.
func TrailerOf(n int) int {
	if n < bigSectorStart {
		return n + (smallSectorBlocks - 1 - n%smallSectorBlocks)
	}
	return n + (bigSectorBlocks - 1 - n%bigSectorBlocks)
}

// FirstBlockOf returns the first block address of the sector containing n.
func FirstBlockOf(n int) int {
	if n < bigSectorStart {
		return n - n%smallSectorBlocks
	}
	return n - n%bigSectorBlocks
}

// SectorOf returns the sector number containing block n.
func SectorOf(n int) int {
	if n < bigSectorStart {
		return n / smallSectorBlocks
	}
	return smallSectorCount + (n-bigSectorStart)/bigSectorBlocks
}

// BlocksInSector returns the number of blocks in the given sector.
func BlocksInSector(sector int) int {
	if sector < smallSectorCount {
		return smallSectorBlocks
	}
	return bigSectorBlocks
}

// SectorTrailer returns the trailer block address of the given sector.
func SectorTrailer(sector int) int {
	if sector < smallSectorCount {
		return sector*smallSectorBlocks + smallSectorBlocks - 1
	}
	return bigSectorStart + (sector-smallSectorCount)*bigSectorBlocks + bigSectorBlocks - 1
}

// BlockRole identifies what a block holds, derived from its address.
type BlockRole int

const (
	// RoleData is a plain 16-byte data block
	RoleData BlockRole = iota
	// RoleManufacturer is block 0
	RoleManufacturer
	// RoleTrailer is the last block of a sector
	RoleTrailer
)

// String returns a human-readable role name
func (r BlockRole) String() string {
	switch r {
	case RoleData:
		return "data"
	case RoleManufacturer:
		return "manufacturer"
	case RoleTrailer:
		return "trailer"
	default:
		return fmt.Sprintf("BlockRole(%d)", int(r))
	}
}

// RoleOf returns the role of block n.
func RoleOf(n int) BlockRole {
	switch {
	case n == ManufacturerBlock:
		return RoleManufacturer
	case IsTrailerBlock(n):
		return RoleTrailer
	default:
		return RoleData
	}
}

// Block is a typed view of one 16-byte block. The concrete type is one of
// *ManufacturerData, *DataBlock or *TrailerBlock.
type Block interface {
	Role() BlockRole
	Bytes() [BlockSize]byte
	block()
}

// ManufacturerData is the typed view of block 0.
type ManufacturerData struct {
	UID          [4]byte
	BCC          byte
	SAK          byte
	ATQA         [2]byte
	Manufacturer [8]byte
}

// Role implements Block
func (*ManufacturerData) Role() BlockRole { return RoleManufacturer }

// Bytes implements Block
func (m *ManufacturerData) Bytes() [BlockSize]byte {
	var b [BlockSize]byte
	copy(b[0:4], m.UID[:])
	b[4] = m.BCC
	b[5] = m.SAK
	copy(b[6:8], m.ATQA[:])
	copy(b[8:16], m.Manufacturer[:])
	return b
}

func (*ManufacturerData) block() {}

// DataBlock is a plain data block.
type DataBlock struct {
	Data [BlockSize]byte
}

// Role implements Block
func (*DataBlock) Role() BlockRole { return RoleData }

// Bytes implements Block
func (d *DataBlock) Bytes() [BlockSize]byte { return d.Data }

func (*DataBlock) block() {}

// TrailerBlock holds the keys and access conditions of a sector.
type TrailerBlock struct {
	KeyA       Key
	AccessBits [accessBitsSize]byte
	KeyB       Key
}

// Role implements Block
func (*TrailerBlock) Role() BlockRole { return RoleTrailer }

// Bytes implements Block. The layout is KeyA(6) || AccessBits(4) || KeyB(6),
// which is also the payload of a trailer write command.
func (t *TrailerBlock) Bytes() [BlockSize]byte {
	var b [BlockSize]byte
	copy(b[0:KeySize], t.KeyA[:])
	copy(b[trailerAccessOffset:trailerKeyBOffset], t.AccessBits[:])
	copy(b[trailerKeyBOffset:], t.KeyB[:])
	return b
}

// Key returns KeyA or KeyB depending on role.
func (t *TrailerBlock) Key(role KeyRole) Key {
	if role == KeyB {
		return t.KeyB
	}
	return t.KeyA
}

func (*TrailerBlock) block() {}

// decodeBlock builds the typed view of raw block contents at address n.
func decodeBlock(n int, raw []byte) Block {
	switch RoleOf(n) {
	case RoleManufacturer:
		m := &ManufacturerData{BCC: raw[4], SAK: raw[5]}
		copy(m.UID[:], raw[0:4])
		copy(m.ATQA[:], raw[6:8])
		copy(m.Manufacturer[:], raw[8:16])
		return m
	case RoleTrailer:
		t := &TrailerBlock{}
		copy(t.KeyA[:], raw[0:KeySize])
		copy(t.AccessBits[:], raw[trailerAccessOffset:trailerKeyBOffset])
		copy(t.KeyB[:], raw[trailerKeyBOffset:BlockSize])
		return t
	default:
		d := &DataBlock{}
		copy(d.Data[:], raw[:BlockSize])
		return d
	}
}
