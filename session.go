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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Config holds the behavior switches of a Session.
type Config struct {
	// Progress receives the per-block progress line and the summary.
	// Nil discards them.
	Progress io.Writer
	// ExtraKeys are tried after DefaultKeys in auto mode.
	ExtraKeys []NamedKey
	// Role is the key role used to authenticate every sector.
	Role KeyRole
	// StrictAuth aborts the whole operation when a sector cannot be
	// authenticated instead of marking that sector failed.
	StrictAuth bool
	// BothRoles makes auto mode also discover the key of the role that was
	// not used for authentication.
	BothRoles bool
}

// DefaultConfig returns the configuration used when no options are given
func DefaultConfig() *Config {
	return &Config{Role: KeyA}
}

// Option configures a Session.
type Option func(*Session) error

// WithKeyRole selects key A or key B for authentication.
func WithKeyRole(role KeyRole) Option {
	return func(s *Session) error {
		if role != KeyA && role != KeyB {
			return fmt.Errorf("%w: key role 0x%02X", ErrInvalidParameter, byte(role))
		}
		s.config.Role = role
		return nil
	}
}

// WithKeyDump switches the session to key file mode using the trailers of
// keys.
func WithKeyDump(keys *Dump) Option {
	return func(s *Session) error {
		if keys == nil {
			return fmt.Errorf("%w: nil key dump", ErrInvalidParameter)
		}
		s.keyDump = keys
		return nil
	}
}

// WithStrictAuth makes sector authentication failures abort the operation.
func WithStrictAuth(strict bool) Option {
	return func(s *Session) error {
		s.config.StrictAuth = strict
		return nil
	}
}

// WithBothRoles makes auto mode probe the other key role after a sector is
// opened so that both keys end up in the dump.
func WithBothRoles(both bool) Option {
	return func(s *Session) error {
		s.config.BothRoles = both
		return nil
	}
}

// WithExtraKeys appends keys to the auto mode candidate list.
func WithExtraKeys(keys ...NamedKey) Option {
	return func(s *Session) error {
		s.config.ExtraKeys = append(s.config.ExtraKeys, keys...)
		return nil
	}
}

// WithProgress sets the writer receiving progress output.
func WithProgress(w io.Writer) Option {
	return func(s *Session) error {
		s.config.Progress = w
		return nil
	}
}

// Session is the state of one read or write against one selected tag. It
// owns the Transport for the duration of the operation.
//
// Thread Safety: Session is NOT thread-safe. A Session drives a single
// Transport from a single goroutine.
type Session struct {
	transport Transport
	config    *Config
	tag       *TagInfo
	keyDump   *Dump
	keys      KeySet
	auth      *Authenticator
	progress  *progress
	capacity  Capacity
}

// NewSession selects a tag on transport and prepares a Session for it.
// It fails with ErrTagNotFound when no tag answers and ErrNotMIFAREClassic
// when the selected tag is not a MIFARE Classic card.
func NewSession(ctx context.Context, transport Transport, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	s := &Session{
		transport: transport,
		config:    DefaultConfig(),
		keys:      make(KeySet),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.progress = newProgress(s.config.Progress)

	tag, err := transport.SelectTag(ctx)
	if err != nil {
		if errors.Is(err, ErrTagNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTagNotFound, err)
	}
	if !tag.IsMIFAREClassic() {
		return nil, fmt.Errorf("%w: SAK 0x%02X", ErrNotMIFAREClassic, tag.SAK)
	}
	s.tag = tag
	s.capacity = tag.Capacity()
	Debugf("selected MIFARE Classic %s tag UID=%s ATQA=%02X%02X SAK=%02X",
		s.capacity, tag.UIDString(), tag.ATQA[0], tag.ATQA[1], tag.SAK)

	if s.keyDump != nil {
		if s.keyDump.Capacity().Blocks() < s.capacity.Blocks() {
			return nil, fmt.Errorf("%w: key dump holds %s but tag is %s",
				ErrMalformedDump, s.keyDump.Capacity(), s.capacity)
		}
		s.seedKeysFromDump()
	}

	s.auth = newAuthenticator(s)
	return s, nil
}

// seedKeysFromDump copies both keys of every trailer in the key dump into
// the KeySet, so read results carry the keys the card never returns.
func (s *Session) seedKeysFromDump() {
	for n := 0; n < s.capacity.Blocks(); n++ {
		if !IsTrailerBlock(n) {
			continue
		}
		t := s.keyDump.Trailer(n)
		s.keys.Record(n, KeyA, t.KeyA)
		s.keys.Record(n, KeyB, t.KeyB)
	}
}

// Tag returns the selected tag
func (s *Session) Tag() *TagInfo { return s.tag }

// Capacity returns the size class of the selected tag
func (s *Session) Capacity() Capacity { return s.capacity }

// Mode returns the authentication mode in use
func (s *Session) Mode() AuthMode {
	if s.keyDump != nil {
		return KeyFileMode
	}
	return AutoMode
}

// Keys returns the keys known so far. In auto mode it fills up as sectors
// are opened.
func (s *Session) Keys() KeySet { return s.keys }

// KeyDumpMatchesTag reports whether the key dump was taken from the selected
// tag, comparing the 4-byte UID in its manufacturer block. It is true when no
// key dump is in use.
func (s *Session) KeyDumpMatchesTag() bool {
	if s.keyDump == nil {
		return true
	}
	uid := s.tag.UID
	if len(uid) > 4 {
		uid = uid[:4]
	}
	return bytes.Equal(s.keyDump.UID()[:len(uid)], uid)
}

// KeyDumpUID returns the UID recorded in the key dump, or nil.
func (s *Session) KeyDumpUID() []byte {
	if s.keyDump == nil {
		return nil
	}
	return s.keyDump.UID()
}

// KeyDumpCapacity returns the capacity recorded in the key dump's ATQA, or
// the tag's capacity when no key dump is in use.
func (s *Session) KeyDumpCapacity() Capacity {
	if s.keyDump == nil {
		return s.capacity
	}
	if m := s.keyDump.Manufacturer(); m != nil && m.ATQA[1] == 0x02 {
		return Capacity4K
	}
	return Capacity1K
}

// reselect redoes anti-collision after a failed sector.
func (s *Session) reselect(ctx context.Context) error {
	tag, err := s.transport.SelectTag(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTagRemoved, err)
	}
	Debugf("reselected tag UID=%s", tag.UIDString())
	return nil
}

// openSector authenticates the sector containing block. It returns
// (false, nil) when the sector could not be opened and the failure is local
// to that sector.
func (s *Session) openSector(ctx context.Context, block int) (bool, error) {
	_, err := s.auth.Authenticate(ctx, block)
	if err == nil {
		return true, nil
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false, err
	}
	if s.config.StrictAuth {
		return false, fmt.Errorf("authentication failed for block %02x: %w", block, err)
	}
	Debugf("sector %d: %v", SectorOf(block), err)
	return false, nil
}

// SectorResult is the outcome of one sector of a read or write.
type SectorResult struct {
	Sector     int
	FirstBlock int
	Blocks     int
	Failed     bool
}

// Result summarizes a read or write traversal.
type Result struct {
	Sectors   []SectorResult
	Succeeded int // blocks in sectors that completed without failure
	Total     int // blocks attempted
}

// FailedSectors returns the numbers of the sectors that failed.
func (r *Result) FailedSectors() []int {
	var failed []int
	for _, sr := range r.Sectors {
		if sr.Failed {
			failed = append(failed, sr.Sector)
		}
	}
	return failed
}

// Complete reports whether every block succeeded.
func (r *Result) Complete() bool {
	return r.Succeeded == r.Total
}

// finishSector records the outcome of the sector containing block.
func (s *Session) finishSector(res *Result, block int, failed bool) {
	sector := SectorOf(block)
	blocks := BlocksInSector(sector)
	res.Sectors = append(res.Sectors, SectorResult{
		Sector:     sector,
		FirstBlock: FirstBlockOf(block),
		Blocks:     blocks,
		Failed:     failed,
	})
	if !failed {
		res.Succeeded += blocks
	}
	s.progress.sector(blocks, failed)
}
