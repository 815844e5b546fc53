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

// Package i2c detects PN532 boards on Linux I2C buses.
package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/detection"
	"github.com/ZaparooProject/go-mfclassic/transport/pn532"
	pn532i2c "github.com/ZaparooProject/go-mfclassic/transport/pn532/i2c"
)

const probeTimeout = time.Second

// detector implements detection.Detector for I2C buses.
type detector struct {
	listBuses func() ([]string, error)
	probe     func(ctx context.Context, path string, mode detection.Mode) bool
	goos      string
}

// New creates an I2C detector
func New() detection.Detector {
	return &detector{listBuses: listBuses, probe: probeDevice, goos: runtime.GOOS}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns "i2c"
func (*detector) Transport() string {
	return "i2c"
}

// Detect looks for a PN532 at its fixed address on every I2C bus. Buses
// are only listed in Passive mode, since nothing identifies the device
// without talking to it.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	buses, err := d.listBuses()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		if ctx.Err() != nil {
			break
		}
		if detection.IsPathIgnored(bus, opts.IgnorePaths) {
			continue
		}

		path := fmt.Sprintf("%s:0x%02X", bus, pn532i2c.Address)
		device := detection.DeviceInfo{
			Transport:  "i2c",
			Path:       path,
			Name:       "PN532 on " + bus,
			Confidence: detection.Low,
			Metadata:   map[string]string{"bus": bus},
		}

		if opts.Mode != detection.Passive {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			ok := d.probe(probeCtx, path, opts.Mode)
			cancel()
			if !ok {
				continue
			}
			device.Confidence = detection.High
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func listBuses() ([]string, error) {
	buses, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("list I2C buses: %w", err)
	}
	sort.Strings(buses)
	return buses, nil
}

func probeDevice(ctx context.Context, path string, mode detection.Mode) bool {
	link, err := pn532i2c.Open(path)
	if err != nil {
		return false
	}

	reader := pn532.New(link, pn532.WithRetryConfig(&mfclassic.RetryConfig{}))
	defer func() { _ = reader.Close() }()

	if mode == detection.Full {
		return reader.Init(ctx) == nil
	}
	_, err = reader.ProbeFirmware(ctx)
	return err == nil
}
