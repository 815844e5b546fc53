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

const (
	payloadFirstSector = 1
	payloadLastSector  = 15
	payloadBlocks      = 3 // data blocks per sector, trailer excluded

	// PayloadSize is the length of an extracted payload.
	PayloadSize = (payloadLastSector - payloadFirstSector + 1) * payloadBlocks * BlockSize
)

// ExtractPayload concatenates the data blocks of sectors 1 to 15 of a 4K
// dump in ascending order. Sector 0 (manufacturer block and directory) and
// all trailers are left out.
func ExtractPayload(dump []byte) ([]byte, error) {
	if len(dump) != Capacity4K.Bytes() {
		return nil, fmt.Errorf("%w: payload extraction needs a %d byte dump, got %d",
			ErrMalformedDump, Capacity4K.Bytes(), len(dump))
	}

	payload := make([]byte, 0, PayloadSize)
	for sector := payloadFirstSector; sector <= payloadLastSector; sector++ {
		first := sector * smallSectorBlocks
		start := first * BlockSize
		payload = append(payload, dump[start:start+payloadBlocks*BlockSize]...)
	}
	return payload, nil
}

// ExtractPayloadFile reads a dump from src and writes its payload to dst.
func ExtractPayloadFile(src, dst string) error {
	raw, err := os.ReadFile(src) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return fmt.Errorf("could not open dump file %s: %w", src, err)
	}
	payload, err := ExtractPayload(raw)
	if err != nil {
		return fmt.Errorf("dump file %s: %w", src, err)
	}
	if err := os.WriteFile(dst, payload, 0o600); err != nil {
		return fmt.Errorf("could not write to file %s: %w", dst, err)
	}
	return nil
}
