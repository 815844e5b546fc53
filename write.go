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

// Write copies src onto the tag, walking from block 0 upwards and opening
// each sector at its first block. Block 0 is never written.
//
// Trailers are written as KeyA || AccessBits || KeyB taken from src, so the
// sector keys change to whatever src holds once the trailer is written. Once
// a data block fails the rest of that sector's data blocks are skipped, but
// the trailer of an opened sector is still written. A sector that fails is
// reported with 'x' and the traversal continues.
func (s *Session) Write(ctx context.Context, src *Dump) (*Result, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source dump", ErrInvalidParameter)
	}
	if src.Capacity().Blocks() < s.capacity.Blocks() {
		return nil, fmt.Errorf("%w: source dump holds %s but tag is %s",
			ErrMalformedDump, src.Capacity(), s.capacity)
	}

	last := s.capacity.Blocks() - 1
	res := &Result{Total: s.capacity.Blocks()}

	s.progress.begin("Writing %d blocks |", res.Total)

	opened, failed := false, false
	for n := 0; n <= last; n++ {
		if IsFirstBlock(n) {
			if n != 0 {
				s.finishSector(res, n-1, failed)
			}
			if err := ctx.Err(); err != nil {
				s.progress.abort()
				return res, err
			}

			if failed {
				if err := s.reselect(ctx); err != nil {
					s.progress.abort()
					return res, err
				}
				failed = false
			}

			var err error
			opened, err = s.openSector(ctx, n)
			if err != nil {
				s.progress.abort()
				return res, err
			}
			if !opened {
				failed = true
			}
		}

		if !opened || n == ManufacturerBlock {
			continue
		}
		if failed && !IsTrailerBlock(n) {
			continue
		}

		if err := s.writeBlock(ctx, src, n); err != nil {
			if IsFatal(err) {
				s.progress.abort()
				return res, err
			}
			Debugf("%v", err)
			failed = true
		}
	}
	s.finishSector(res, last, failed)
	s.progress.end("written", res)

	return res, nil
}

func (s *Session) writeBlock(ctx context.Context, src *Dump, n int) error {
	var payload [BlockSize]byte
	switch b := src.Block(n).(type) {
	case *TrailerBlock:
		payload = b.Bytes()
	default:
		copy(payload[:], src.Raw(n))
	}

	if err := s.transport.WriteBlock(ctx, uint8(n), payload[:]); err != nil { //nolint:gosec // n < 256
		if IsTrailerBlock(n) {
			return fmt.Errorf("%w: failed to write trailer block %d: %w", ErrTagWriteFailed, n, err)
		}
		return fmt.Errorf("%w: failed to write block %d: %w", ErrTagWriteFailed, n, err)
	}
	return nil
}
