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
	"fmt"
	"os"
)

// Capacity is the size class of a MIFARE Classic tag.
type Capacity int

const (
	// Capacity1K has 16 sectors of 4 blocks
	Capacity1K Capacity = 64
	// Capacity4K has 32 sectors of 4 blocks and 8 sectors of 16 blocks
	Capacity4K Capacity = 256
)

// Blocks returns the number of blocks for the capacity class
func (c Capacity) Blocks() int { return int(c) }

// Bytes returns the dump size for the capacity class
func (c Capacity) Bytes() int { return int(c) * BlockSize }

// Sectors returns the number of sectors for the capacity class
func (c Capacity) Sectors() int { return SectorOf(c.Blocks()-1) + 1 }

// String returns "1K" or "4K"
func (c Capacity) String() string {
	switch c {
	case Capacity1K:
		return "1K"
	case Capacity4K:
		return "4K"
	default:
		return fmt.Sprintf("Capacity(%d)", int(c))
	}
}

// CapacityForSize returns the capacity class for a dump of n bytes.
func CapacityForSize(n int) (Capacity, error) {
	switch n {
	case Capacity1K.Bytes():
		return Capacity1K, nil
	case Capacity4K.Bytes():
		return Capacity4K, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes (want %d or %d)",
			ErrMalformedDump, n, Capacity1K.Bytes(), Capacity4K.Bytes())
	}
}

// Dump mirrors the entire block layout of one tag as a flat buffer. The
// buffer is the on-disk format; there is no header or checksum.
type Dump struct {
	buf      []byte
	capacity Capacity
}

// NewDump returns a zero-initialized dump for the capacity class.
func NewDump(c Capacity) *Dump {
	return &Dump{buf: make([]byte, c.Bytes()), capacity: c}
}

// ParseDump wraps a raw buffer. The buffer is used in place, not copied.
func ParseDump(raw []byte) (*Dump, error) {
	c, err := CapacityForSize(len(raw))
	if err != nil {
		return nil, err
	}
	return &Dump{buf: raw, capacity: c}, nil
}

// LoadDump reads and validates a dump file.
func LoadDump(path string) (*Dump, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("could not read dump file %s: %w", path, err)
	}
	d, err := ParseDump(raw)
	if err != nil {
		return nil, fmt.Errorf("dump file %s: %w", path, err)
	}
	return d, nil
}

// Save writes the dump to path.
func (d *Dump) Save(path string) error {
	if err := os.WriteFile(path, d.buf, 0o600); err != nil {
		return fmt.Errorf("could not write to file %s: %w", path, err)
	}
	return nil
}

// Capacity returns the capacity class of the dump
func (d *Dump) Capacity() Capacity { return d.capacity }

// Bytes returns the underlying buffer
func (d *Dump) Bytes() []byte { return d.buf }

// Raw returns the 16 bytes of block n, aliasing the dump buffer.
func (d *Dump) Raw(n int) []byte {
	off := n * BlockSize
	return d.buf[off : off+BlockSize]
}

// SetRaw copies 16 bytes into block n.
func (d *Dump) SetRaw(n int, data []byte) {
	copy(d.Raw(n), data[:BlockSize])
}

// Block returns the typed view of block n.
func (d *Dump) Block(n int) Block {
	return decodeBlock(n, d.Raw(n))
}

// SetBlock stores the typed block b at address n.
func (d *Dump) SetBlock(n int, b Block) error {
	if b.Role() != RoleOf(n) {
		return fmt.Errorf("%w: block %d is a %s block, got %s",
			ErrInvalidParameter, n, RoleOf(n), b.Role())
	}
	raw := b.Bytes()
	d.SetRaw(n, raw[:])
	return nil
}

// Trailer returns the trailer of the sector containing block n.
func (d *Dump) Trailer(n int) *TrailerBlock {
	t, _ := d.Block(TrailerOf(n)).(*TrailerBlock)
	return t
}

// Manufacturer returns the typed view of block 0.
func (d *Dump) Manufacturer() *ManufacturerData {
	m, _ := d.Block(ManufacturerBlock).(*ManufacturerData)
	return m
}

// UID returns the 4-byte UID stored in the manufacturer block.
func (d *Dump) UID() []byte {
	uid := make([]byte, 4)
	copy(uid, d.buf[:4])
	return uid
}
