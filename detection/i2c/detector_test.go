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

package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfclassic/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(buses []string, answering ...string) *detector {
	return &detector{
		goos:      "linux",
		listBuses: func() ([]string, error) { return buses, nil },
		probe: func(_ context.Context, path string, _ detection.Mode) bool {
			for _, p := range answering {
				if p == path {
					return true
				}
			}
			return false
		},
	}
}

func TestDetect_Passive(t *testing.T) {
	t.Parallel()

	det := newTestDetector([]string{"/dev/i2c-0", "/dev/i2c-1"})
	devices, err := det.Detect(context.Background(), &detection.Options{
		Mode:        detection.Passive,
		IgnorePaths: []string{"/dev/i2c-0"},
	})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/i2c-1:0x24", devices[0].Path)
	assert.Equal(t, detection.Low, devices[0].Confidence)
	assert.Equal(t, "/dev/i2c-1", devices[0].Metadata["bus"])
}

func TestDetect_SafeProbes(t *testing.T) {
	t.Parallel()

	det := newTestDetector([]string{"/dev/i2c-0", "/dev/i2c-1"}, "/dev/i2c-1:0x24")
	devices, err := det.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "i2c:/dev/i2c-1:0x24", devices[0].Device())
}

func TestDetect_NoBuses(t *testing.T) {
	t.Parallel()

	_, err := newTestDetector(nil).Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	det := newTestDetector([]string{"/dev/i2c-1"})
	det.goos = "darwin"
	_, err := det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrUnsupportedPlatform)
}

func TestDetect_ListError(t *testing.T) {
	t.Parallel()

	det := newTestDetector(nil)
	det.listBuses = func() ([]string, error) { return nil, errors.New("boom") }
	_, err := det.Detect(context.Background(), &detection.Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, detection.ErrNoDevicesFound)
}
