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

// Package pcsc lists PC/SC readers for device detection.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-mfclassic/detection"
	"github.com/ebfe/scard"
)

// detector implements detection.Detector for PC/SC readers.
type detector struct {
	listReaders func() ([]string, error)
}

// New creates a PC/SC detector
func New() detection.Detector {
	return &detector{listReaders: listReaders}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns "pcsc"
func (*detector) Transport() string {
	return "pcsc"
}

// contactlessKeywords mark reader names that carry an RF interface.
var contactlessKeywords = []string{"picc", "contactless", "nfc", "acr122", "acr1252", "omnikey 5"}

// Detect lists the readers known to the PC/SC service. Listing never
// touches a reader, so Mode does not matter. Readers whose name marks them
// as contactless get High confidence, the rest Medium.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	readers, err := d.listReaders()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, name := range readers {
		if ctx.Err() != nil {
			break
		}
		if detection.IsPathIgnored(name, opts.IgnorePaths) {
			continue
		}

		confidence := detection.Medium
		lower := strings.ToLower(name)
		for _, keyword := range contactlessKeywords {
			if strings.Contains(lower, keyword) {
				confidence = detection.High
				break
			}
		}
		devices = append(devices, detection.DeviceInfo{
			Transport:  "pcsc",
			Path:       name,
			Name:       name,
			Confidence: confidence,
			Metadata:   map[string]string{},
		})
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func listReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		// No PC/SC service running means no PC/SC readers.
		return nil, detection.ErrNoDevicesFound
	}
	defer func() { _ = ctx.Release() }()

	readers, err := ctx.ListReaders()
	if err != nil {
		if errors.Is(err, scard.ErrNoReadersAvailable) {
			return nil, detection.ErrNoDevicesFound
		}
		return nil, fmt.Errorf("list PC/SC readers: %w", err)
	}
	return readers, nil
}
