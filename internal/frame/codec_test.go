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
	"bytes"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	got, err := Build(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, got)

	got, err = Build(0x40, []byte{0x01, 0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x05, 0xFB, 0xD4, 0x40, 0x01, 0x30, 0x04, 0xB7, 0x00}, got)
}

func TestBuild_TooLarge(t *testing.T) {
	t.Parallel()

	_, err := Build(0x40, make([]byte, MaxParamsLength+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, mfclassic.ErrDataTooLarge)

	_, err = Build(0x40, make([]byte, MaxParamsLength))
	assert.NoError(t, err)
}

func TestParse(t *testing.T) {
	t.Parallel()

	firmware := []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00}

	tests := []struct {
		name     string
		buf      []byte
		wantData []byte
		wantKind Kind
		wantUsed int
	}{
		{name: "ack", buf: AckFrame, wantKind: KindAck, wantUsed: 6},
		{name: "nack", buf: NackFrame, wantKind: KindNack, wantUsed: 6},
		{
			name:     "firmware response",
			buf:      firmware,
			wantKind: KindData,
			wantData: []byte{0x03, 0x32, 0x01, 0x06, 0x07},
			wantUsed: len(firmware),
		},
		{
			name:     "leading garbage",
			buf:      append([]byte{0x55, 0x12}, firmware...),
			wantKind: KindData,
			wantData: []byte{0x03, 0x32, 0x01, 0x06, 0x07},
			wantUsed: len(firmware) + 2,
		},
		{
			name:     "ack followed by response",
			buf:      append(append([]byte{}, AckFrame...), firmware...),
			wantKind: KindAck,
			wantUsed: 6,
		},
		{
			name:     "error frame",
			buf:      []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00},
			wantKind: KindError,
			wantData: []byte{},
			wantUsed: 8,
		},
		{
			name:     "missing postamble",
			buf:      firmware[:len(firmware)-1],
			wantKind: KindData,
			wantData: []byte{0x03, 0x32, 0x01, 0x06, 0x07},
			wantUsed: len(firmware) - 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, used, err := Parse(tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantUsed, used)
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, f.Data)
			}
		})
	}
}

func TestParse_RoundTripsBuild(t *testing.T) {
	t.Parallel()

	params := []byte{0x01, 0x60, 0x07, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xDE, 0xAD, 0xBE, 0xEF}
	raw, err := Build(0x40, params)
	require.NoError(t, err)

	// Flip the direction byte so the host-side parser accepts it.
	raw[5] = Pn532ToHost
	raw[len(raw)-2] = Complement(raw[5 : len(raw)-2]...)

	f, used, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), used)
	assert.Equal(t, KindData, f.Kind)
	assert.Equal(t, append([]byte{0x40}, params...), f.Data)
}

func TestParse_Incomplete(t *testing.T) {
	t.Parallel()

	for _, buf := range [][]byte{
		nil,
		{0x00},
		{0x00, 0x00, 0xFF},
		{0x00, 0x00, 0xFF, 0x06},
		{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03},
	} {
		_, used, err := Parse(buf)
		assert.ErrorIs(t, err, ErrIncomplete, "buf % X", buf)
		assert.Zero(t, used)
	}
}

func TestParse_Corrupted(t *testing.T) {
	t.Parallel()

	t.Run("bad length checksum", func(t *testing.T) {
		t.Parallel()
		_, _, err := Parse([]byte{0x00, 0x00, 0xFF, 0x06, 0x00, 0xD5, 0x03})
		require.Error(t, err)
		assert.ErrorIs(t, err, mfclassic.ErrFrameCorrupted)
		assert.True(t, mfclassic.IsRetryable(err))
	})

	t.Run("bad data checksum", func(t *testing.T) {
		t.Parallel()
		_, used, err := Parse([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x00, 0x00})
		require.Error(t, err)
		assert.ErrorIs(t, err, mfclassic.ErrChecksumMismatch)
		assert.Equal(t, 9, used)
	})

	t.Run("host frame echoed back", func(t *testing.T) {
		t.Parallel()
		raw, err := Build(0x02, nil)
		require.NoError(t, err)
		_, _, err = Parse(raw)
		assert.ErrorIs(t, err, mfclassic.ErrInvalidResponse)
	})

	t.Run("zero length body", func(t *testing.T) {
		t.Parallel()
		_, _, err := Parse([]byte{0x00, 0x00, 0xFF, 0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, mfclassic.ErrFrameCorrupted)
	})
}

func FuzzParse(f *testing.F) {
	f.Add(AckFrame)
	f.Add(NackFrame)
	f.Add([]byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, buf []byte) {
		fr, used, err := Parse(buf)
		if used < 0 || used > len(buf) {
			t.Fatalf("used %d out of range for %d bytes", used, len(buf))
		}
		if err == nil && fr.Kind == KindData && !bytes.Contains(buf, fr.Data) {
			t.Fatalf("data % X not taken from input", fr.Data)
		}
		if errors.Is(err, ErrIncomplete) && used != 0 {
			t.Fatalf("incomplete frame consumed %d bytes", used)
		}
	})
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	raw, err := Build(0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)

	f, used, err := ParseCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), used)
	assert.Equal(t, KindData, f.Kind)
	assert.Equal(t, []byte{0x4A, 0x01, 0x00}, f.Data)

	f, _, err = ParseCommand(AckFrame)
	require.NoError(t, err)
	assert.Equal(t, KindAck, f.Kind)

	// A response frame is not a command.
	_, _, err = ParseCommand([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x28, 0x00})
	assert.ErrorIs(t, err, mfclassic.ErrInvalidResponse)
}
