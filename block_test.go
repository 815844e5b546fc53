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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockAddressing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		block   int
		sector  int
		first   int
		trailer int
		isFirst bool
		isTrail bool
	}{
		{block: 0, sector: 0, first: 0, trailer: 3, isFirst: true},
		{block: 3, sector: 0, first: 0, trailer: 3, isTrail: true},
		{block: 4, sector: 1, first: 4, trailer: 7, isFirst: true},
		{block: 62, sector: 15, first: 60, trailer: 63},
		{block: 127, sector: 31, first: 124, trailer: 127, isTrail: true},
		{block: 128, sector: 32, first: 128, trailer: 143, isFirst: true},
		{block: 130, sector: 32, first: 128, trailer: 143},
		{block: 143, sector: 32, first: 128, trailer: 143, isTrail: true},
		{block: 144, sector: 33, first: 144, trailer: 159, isFirst: true},
		{block: 255, sector: 39, first: 240, trailer: 255, isTrail: true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.sector, SectorOf(tt.block), "SectorOf(%d)", tt.block)
		assert.Equal(t, tt.first, FirstBlockOf(tt.block), "FirstBlockOf(%d)", tt.block)
		assert.Equal(t, tt.trailer, TrailerOf(tt.block), "TrailerOf(%d)", tt.block)
		assert.Equal(t, tt.isFirst, IsFirstBlock(tt.block), "IsFirstBlock(%d)", tt.block)
		assert.Equal(t, tt.isTrail, IsTrailerBlock(tt.block), "IsTrailerBlock(%d)", tt.block)
	}
}

func TestBlockAddressing_Properties(t *testing.T) {
	t.Parallel()

	for n := 0; n < Capacity4K.Blocks(); n++ {
		trailer := TrailerOf(n)
		assert.True(t, IsTrailerBlock(trailer), "trailer of %d", n)
		assert.Equal(t, trailer, TrailerOf(trailer), "TrailerOf idempotent at %d", n)
		assert.True(t, IsFirstBlock(FirstBlockOf(n)), "first block of %d", n)
		assert.Equal(t, SectorOf(n), SectorOf(trailer))
		assert.Equal(t, BlocksInSector(SectorOf(n))-1, trailer-FirstBlockOf(n))
		assert.Equal(t, trailer, SectorTrailer(SectorOf(n)))
		if n > 0 {
			// The block after a trailer always starts a new sector.
			assert.Equal(t, IsTrailerBlock(n-1), IsFirstBlock(n), "block %d", n)
		}
	}
}

func TestBlocksInSector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4, BlocksInSector(0))
	assert.Equal(t, 4, BlocksInSector(31))
	assert.Equal(t, 16, BlocksInSector(32))
	assert.Equal(t, 16, BlocksInSector(39))
}

func TestRoleOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleManufacturer, RoleOf(0))
	assert.Equal(t, RoleData, RoleOf(1))
	assert.Equal(t, RoleTrailer, RoleOf(3))
	assert.Equal(t, RoleData, RoleOf(128))
	assert.Equal(t, RoleTrailer, RoleOf(143))
	assert.Equal(t, "trailer", RoleTrailer.String())
	assert.Equal(t, "BlockRole(9)", BlockRole(9).String())
}

func TestDecodeBlock(t *testing.T) {
	t.Parallel()

	raw := []byte{
		0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5,
		0xFF, 0x07, 0x80, 0x69,
		0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5,
	}

	tb, ok := decodeBlock(7, raw).(*TrailerBlock)
	if assert.True(t, ok) {
		assert.Equal(t, Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}, tb.KeyA)
		assert.Equal(t, [4]byte{0xFF, 0x07, 0x80, 0x69}, tb.AccessBits)
		assert.Equal(t, Key{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5}, tb.KeyB)
		assert.Equal(t, tb.KeyB, tb.Key(KeyB))
		got := tb.Bytes()
		assert.Equal(t, raw, got[:])
	}

	db, ok := decodeBlock(6, raw).(*DataBlock)
	if assert.True(t, ok) {
		got := db.Bytes()
		assert.Equal(t, raw, got[:])
	}

	m, ok := decodeBlock(0, raw).(*ManufacturerData)
	if assert.True(t, ok) {
		assert.Equal(t, [4]byte{0xA0, 0xA1, 0xA2, 0xA3}, m.UID)
		assert.Equal(t, byte(0xA4), m.BCC)
		assert.Equal(t, byte(0xA5), m.SAK)
		got := m.Bytes()
		assert.Equal(t, raw, got[:])
	}
}
