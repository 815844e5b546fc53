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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{name: "empty data", data: []byte{}, want: 0},
		{name: "single byte", data: []byte{0x42}, want: 0x42},
		{name: "overflow wraps", data: []byte{0xFF, 0x01}, want: 0x00},
		{name: "read block command", data: []byte{0xD4, 0x40, 0x01, 0x30, 0x04}, want: 0x49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CalculateChecksum(tt.data))
		})
	}
}

func TestComplement(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x00), Complement(0x00))
	assert.Equal(t, byte(0xFE), Complement(0x02))
	assert.Equal(t, byte(0xB7), Complement(0xD4, 0x40, 0x01, 0x30, 0x04))

	data := []byte{0xD5, 0x41, 0x00, 0x12}
	assert.Equal(t, byte(0), CalculateChecksum(data)+Complement(data...))
}
