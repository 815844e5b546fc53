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
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Key
		wantErr bool
	}{
		{name: "factory", input: "FFFFFFFFFFFF", want: Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "lower case", input: "a0a1a2a3a4a5", want: Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
		{name: "surrounding space", input: " D3F7D3F7D3F7\n", want: Key{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}},
		{name: "too short", input: "FFFF", wantErr: true},
		{name: "too long", input: "FFFFFFFFFFFFFF", wantErr: true},
		{name: "not hex", input: "ZZZZZZZZZZZZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A0A1A2A3A4A5", Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}.String())
}

func TestParseKeyRole(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"a", "A", " a "} {
		role, err := ParseKeyRole(s)
		require.NoError(t, err)
		assert.Equal(t, KeyA, role)
	}
	for _, s := range []string{"b", "B"} {
		role, err := ParseKeyRole(s)
		require.NoError(t, err)
		assert.Equal(t, KeyB, role)
	}
	_, err := ParseKeyRole("c")
	require.ErrorIs(t, err, ErrInvalidParameter)

	assert.Equal(t, KeyB, KeyA.Other())
	assert.Equal(t, KeyA, KeyB.Other())
	assert.Equal(t, "B", KeyB.String())
}

func TestDefaultKeys(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, DefaultKeys)
	assert.Equal(t, Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, DefaultKeys[0].Key, "factory key first")

	seen := make(map[Key]bool)
	for _, k := range DefaultKeys {
		assert.False(t, seen[k.Key], "duplicate key %s", k.Key)
		seen[k.Key] = true
		assert.NotEmpty(t, k.Name)
	}
}

func TestKeySet(t *testing.T) {
	t.Parallel()

	keys := make(KeySet)
	secret := Key{1, 2, 3, 4, 5, 6}

	_, ok := keys.Lookup(5, KeyA)
	assert.False(t, ok)

	keys.Record(5, KeyA, secret)
	got, ok := keys.Lookup(7, KeyA)
	require.True(t, ok, "recorded under the trailer of the sector")
	assert.Equal(t, secret, got)

	_, ok = keys.Lookup(4, KeyB)
	assert.False(t, ok)

	keys.Record(4, KeyB, DefaultKeys[0].Key)
	pair := keys.Pair(6)
	assert.True(t, pair.HasKeyA)
	assert.True(t, pair.HasKeyB)
	assert.Equal(t, secret, pair.KeyA)
	assert.Equal(t, DefaultKeys[0].Key, pair.KeyB)

	assert.Equal(t, KeyPair{}, keys.Pair(130))
}
