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
	"fmt"
)

// Read dumps the whole tag, walking from the highest block down to block 0 so
// that every sector is opened at its trailer.
//
// A sector whose authentication or block read fails is reported with 'x'.
// Its blocks that were not read stay zero in the dump and the traversal
// continues with the next sector.
// The returned error is non-nil only for fatal conditions (tag removed,
// transport failure, strict authentication), in which case the partial dump
// is still returned alongside the Result.
//
// Card readers never return keys, so trailer keys in the dump come from the
// KeySet: the key dump in key file mode, or the keys that authenticated in
// auto mode.
func (s *Session) Read(ctx context.Context) (*Dump, *Result, error) {
	dump := NewDump(s.capacity)
	last := s.capacity.Blocks() - 1
	res := &Result{Total: s.capacity.Blocks()}

	s.progress.begin("Reading out %d blocks |", res.Total)

	failed := false
	for n := last; n >= 0; n-- {
		if IsTrailerBlock(n) {
			if n != last {
				s.finishSector(res, n+1, failed)
			}
			if err := ctx.Err(); err != nil {
				s.progress.abort()
				return dump, res, err
			}

			if failed {
				if err := s.reselect(ctx); err != nil {
					s.progress.abort()
					return dump, res, err
				}
				failed = false
			}

			opened, err := s.openSector(ctx, n)
			if err != nil {
				s.progress.abort()
				return dump, res, err
			}
			if !opened {
				failed = true
				continue
			}

			if err := s.readTrailer(ctx, dump, n); err != nil {
				if IsFatal(err) {
					s.progress.abort()
					return dump, res, err
				}
				Debugf("%v", err)
				failed = true
			}
			continue
		}

		if failed {
			continue
		}
		if err := s.readData(ctx, dump, n); err != nil {
			if IsFatal(err) {
				s.progress.abort()
				return dump, res, err
			}
			Debugf("%v", err)
			failed = true
		}
	}
	s.finishSector(res, 0, failed)
	s.progress.end("read", res)

	return dump, res, nil
}

func (s *Session) readBlock(ctx context.Context, n int) ([]byte, error) {
	data, err := s.transport.ReadBlock(ctx, uint8(n)) //nolint:gosec // n < 256
	if err != nil {
		return nil, fmt.Errorf("%w: block %02x: %w", ErrTagReadFailed, n, err)
	}
	if len(data) < BlockSize {
		return nil, fmt.Errorf("%w: block %02x: got %d bytes", ErrTagReadFailed, n, len(data))
	}
	return data, nil
}

func (s *Session) readTrailer(ctx context.Context, dump *Dump, n int) error {
	data, err := s.readBlock(ctx, n)
	if err != nil {
		return err
	}

	pair := s.keys.Pair(n)
	t := &TrailerBlock{KeyA: pair.KeyA, KeyB: pair.KeyB}
	copy(t.AccessBits[:], data[trailerAccessOffset:trailerKeyBOffset])
	return dump.SetBlock(n, t)
}

func (s *Session) readData(ctx context.Context, dump *Dump, n int) error {
	data, err := s.readBlock(ctx, n)
	if err != nil {
		return err
	}
	dump.SetRaw(n, data)
	return nil
}
