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

package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuKey(t *testing.T) {
	t.Parallel()

	up := []byte{0x1B, '[', 'A'}
	down := []byte{0x1B, '[', 'B'}

	tests := []struct {
		name       string
		key        []byte
		selected   int
		want       int
		wantAction menuAction
	}{
		{name: "enter", key: []byte{'\r'}, selected: 1, want: 1, wantAction: menuSelect},
		{name: "newline", key: []byte{'\n'}, selected: 0, want: 0, wantAction: menuSelect},
		{name: "ctrl-c", key: []byte{0x03}, selected: 2, want: 2, wantAction: menuCancel},
		{name: "q", key: []byte{'q'}, selected: 0, want: 0, wantAction: menuCancel},
		{name: "down", key: down, selected: 0, want: 1, wantAction: menuMove},
		{name: "down at bottom", key: down, selected: 2, want: 2, wantAction: menuNone},
		{name: "up", key: up, selected: 2, want: 1, wantAction: menuMove},
		{name: "up at top", key: up, selected: 0, want: 0, wantAction: menuNone},
		{name: "other key", key: []byte{'x'}, selected: 1, want: 1, wantAction: menuNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, action := menuKey(tt.key, tt.selected, 3)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func TestRenderMenu(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderMenu(&out, []string{"pcsc:ACR122U", "uart:/dev/ttyUSB0"}, 1)
	assert.Equal(t, "\r\x1b[K  pcsc:ACR122U\r\n\r\x1b[K> uart:/dev/ttyUSB0\r\n", out.String())
}

func TestConfirm_NotATerminal(t *testing.T) {
	t.Parallel()

	for answer, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	} {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		_, err = w.WriteString(answer)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		var out bytes.Buffer
		got, err := confirm(r, &out, "Write?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "answer %q", answer)
		assert.Equal(t, "Write? [y/N] ", out.String())
		_ = r.Close()
	}
}
