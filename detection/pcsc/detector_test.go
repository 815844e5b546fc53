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

package pcsc

import (
	"context"
	"testing"

	"github.com/ZaparooProject/go-mfclassic/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	det := &detector{listReaders: func() ([]string, error) {
		return []string{
			"ACS ACR122U PICC Interface 00 00",
			"Generic Smart Card Reader 01 00",
			"Yubico YubiKey CCID 02 00",
		}, nil
	}}

	devices, err := det.Detect(context.Background(), &detection.Options{
		IgnorePaths: []string{"Yubico YubiKey CCID 02 00"},
	})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "pcsc:ACS ACR122U PICC Interface 00 00", devices[0].Device())
	assert.Equal(t, detection.Medium, devices[1].Confidence)
}

func TestDetect_NoReaders(t *testing.T) {
	t.Parallel()

	det := &detector{listReaders: func() ([]string, error) { return nil, detection.ErrNoDevicesFound }}
	_, err := det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)

	det = &detector{listReaders: func() ([]string, error) { return []string{}, nil }}
	_, err = det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}
