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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "mfclassic.yaml")
	content := `device: uart:/dev/ttyUSB0
key_role: B
strict_auth: true
both_roles: true
extra_keys:
  - "a0b0c0d0e0f0"
  - "112233445566"
debug: true
session_log: logs
confirm_write: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uart:/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, "B", cfg.KeyRole)
	assert.True(t, cfg.StrictAuth)
	assert.True(t, cfg.BothRoles)
	assert.True(t, cfg.Debug)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.SessionLog)
	assert.False(t, cfg.ShouldConfirmWrite())
	assert.Equal(t, []mfclassic.Key{
		{0xA0, 0xB0, 0xC0, 0xD0, 0xE0, 0xF0},
		{0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
	}, cfg.Keys())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Device)
	assert.True(t, cfg.ShouldConfirmWrite())
	assert.Empty(t, cfg.Keys())
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "unknown field", yaml: "reader_index: 0\n", wantErr: "field reader_index not found"},
		{name: "bad role", yaml: "key_role: c\n", wantErr: "config.key_role"},
		{name: "short key", yaml: "extra_keys: [\"FFFF\"]\n", wantErr: "config.extra_keys[0]"},
		{name: "bad hex", yaml: "extra_keys: [\"FFFFFFFFFFFF\", \"ZZZZZZZZZZZZ\"]\n", wantErr: "config.extra_keys[1]"},
		{name: "bad transport", yaml: "device: spi:/dev/spidev0.0\n", wantErr: "unknown transport"},
		{name: "no transport", yaml: "device: /dev/ttyUSB0\n", wantErr: "transport:path"},
		{name: "wrong type", yaml: "strict_auth: maybe\n", wantErr: "parse config yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		device        string
		wantTransport string
		wantPath      string
		wantErr       bool
	}{
		{device: "uart:/dev/ttyUSB0", wantTransport: "uart", wantPath: "/dev/ttyUSB0"},
		{device: "UART:COM3", wantTransport: "uart", wantPath: "COM3"},
		{device: "i2c:/dev/i2c-1:0x24", wantTransport: "i2c", wantPath: "/dev/i2c-1:0x24"},
		{device: "pcsc:ACS ACR122U PICC Interface 00 00", wantTransport: "pcsc", wantPath: "ACS ACR122U PICC Interface 00 00"},
		{device: "pcsc:", wantTransport: "pcsc", wantPath: ""},
		{device: "uart:", wantErr: true},
		{device: "ttyUSB0", wantErr: true},
		{device: "spi:/dev/spidev0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			t.Parallel()

			transport, path, err := SplitDevice(tt.device)
			if tt.wantErr {
				require.ErrorIs(t, err, mfclassic.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTransport, transport)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}
