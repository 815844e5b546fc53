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

package testing

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
)

// Call is one operation received by a SimulatedTransport.
type Call struct {
	Op    string // "select", "auth", "read" or "write"
	Block int
	Role  mfclassic.KeyRole
	Key   mfclassic.Key
}

// SimulatedTransport implements mfclassic.Transport directly on a
// VirtualTag, with hooks to inject failures the card alone cannot produce.
//
// Thread Safety: SimulatedTransport is NOT thread-safe, like the Session
// driving it.
type SimulatedTransport struct {
	Tag *VirtualTag

	// FailRead and FailWrite make the given blocks fail with a non-fatal
	// error, as a flaky RF link would.
	FailRead  map[int]error
	FailWrite map[int]error
	// FatalErr, when set, is returned by every operation after
	// FatalAfter successful calls.
	FatalErr   error
	FatalAfter int
	// RemoveAfterSelects takes the tag out of the field once that many
	// selects have succeeded. Zero disables it.
	RemoveAfterSelects int

	Calls   []Call
	selects int
}

var _ mfclassic.Transport = (*SimulatedTransport)(nil)

// NewSimulatedTransport creates a transport with tag in its field.
func NewSimulatedTransport(tag *VirtualTag) *SimulatedTransport {
	return &SimulatedTransport{
		Tag:       tag,
		FailRead:  make(map[int]error),
		FailWrite: make(map[int]error),
	}
}

func (t *SimulatedTransport) record(c Call) error {
	if t.FatalErr != nil && len(t.Calls) >= t.FatalAfter {
		return t.FatalErr
	}
	t.Calls = append(t.Calls, c)
	return nil
}

// SelectTag implements mfclassic.Transport
func (t *SimulatedTransport) SelectTag(ctx context.Context) (*mfclassic.TagInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.record(Call{Op: "select"}); err != nil {
		return nil, err
	}
	if t.RemoveAfterSelects > 0 && t.selects >= t.RemoveAfterSelects {
		t.Tag.Remove()
	}
	info, err := t.Tag.Select()
	if err != nil {
		return nil, err
	}
	t.selects++
	return info, nil
}

// Authenticate implements mfclassic.Transport
func (t *SimulatedTransport) Authenticate(
	ctx context.Context, block uint8, key mfclassic.Key, role mfclassic.KeyRole, _ []byte,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.record(Call{Op: "auth", Block: int(block), Role: role, Key: key}); err != nil {
		return err
	}
	return t.Tag.Authenticate(int(block), role, key)
}

// ReadBlock implements mfclassic.Transport
func (t *SimulatedTransport) ReadBlock(ctx context.Context, block uint8) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.record(Call{Op: "read", Block: int(block)}); err != nil {
		return nil, err
	}
	if err, ok := t.FailRead[int(block)]; ok {
		return nil, fmt.Errorf("read block %d: %w", block, err)
	}
	return t.Tag.ReadBlock(int(block))
}

// WriteBlock implements mfclassic.Transport
func (t *SimulatedTransport) WriteBlock(ctx context.Context, block uint8, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.record(Call{Op: "write", Block: int(block)}); err != nil {
		return err
	}
	if err, ok := t.FailWrite[int(block)]; ok {
		return fmt.Errorf("write block %d: %w", block, err)
	}
	return t.Tag.WriteBlock(int(block), data)
}

// Count returns how many calls of op were made.
func (t *SimulatedTransport) Count(op string) int {
	n := 0
	for _, c := range t.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Blocks returns the block numbers of the calls of op, in call order.
func (t *SimulatedTransport) Blocks(op string) []int {
	var blocks []int
	for _, c := range t.Calls {
		if c.Op == op {
			blocks = append(blocks, c.Block)
		}
	}
	return blocks
}

// Reset clears the call log.
func (t *SimulatedTransport) Reset() {
	t.Calls = nil
	t.selects = 0
}
