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

// Package detection finds contactless readers a session can be opened on:
// PN532 boards on serial ports and I2C buses, and PC/SC readers.
//
// Transport detectors register themselves when their package is imported:
//
//	import (
//		_ "github.com/ZaparooProject/go-mfclassic/detection/pcsc"
//		_ "github.com/ZaparooProject/go-mfclassic/detection/uart"
//	)
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Mode is how invasive detection may be.
type Mode int

const (
	// Passive only looks at device descriptors and never talks to a device
	Passive Mode = iota
	// Safe sends GetFirmwareVersion to candidate devices
	Safe
	// Full runs the complete reader initialization on candidates
	Full
)

// Confidence is how sure a detector is that a device is a usable reader.
type Confidence int

const (
	// Low means the path exists but nothing identifies it as a reader
	Low Confidence = iota
	// Medium means the descriptors match a known reader or adapter
	Medium
	// High means the device answered as a reader
	High
)

// String returns "low", "medium", "high" or "unknown"
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a detected reader.
type DeviceInfo struct {
	// Metadata holds extra descriptor data, such as "vidpid"
	Metadata map[string]string
	// Transport is "pcsc", "uart" or "i2c"
	Transport string
	// Path is the value to open the reader with: a serial port, an I2C bus
	// device or a PC/SC reader name
	Path string
	// Name is a human-readable device name
	Name string
	// Confidence is the detection confidence
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Device returns the device string the CLI and config accept for this
// reader, "transport:path".
func (d DeviceInfo) Device() string {
	return d.Transport + ":" + d.Path
}

// Options configures detection.
type Options struct {
	// Blocklist holds USB VID:PID pairs never to probe
	Blocklist []string
	// IgnorePaths holds device paths to skip
	IgnorePaths []string
	// Transports limits detection to these transports (empty = all)
	Transports []string
	// CacheTTL is how long results are reused
	CacheTTL time.Duration
	// Timeout bounds the whole detection
	Timeout time.Duration
	// Mode is the detection invasiveness
	Mode Mode
	// EnableCache reuses recent results
	EnableCache bool
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector finds devices of one transport.
type Detector interface {
	// Detect searches for devices using the given options
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the transport this detector handles
	Transport() string
}

// Errors
var (
	// ErrNoDevicesFound means no reader was detected
	ErrNoDevicesFound = errors.New("no NFC reader found")
	// ErrDetectionTimeout means detection did not finish in time
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrUnsupportedPlatform means the transport cannot be enumerated here
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

var registry []Detector

// RegisterDetector adds a detector to the registry. It is called from the
// init functions of the transport packages.
func RegisterDetector(d Detector) {
	registry = append(registry, d)
}

func getDetectors(transports []string) []Detector {
	if len(transports) == 0 {
		return registry
	}

	var filtered []Detector
	for _, d := range registry {
		for _, t := range transports {
			if d.Transport() == t {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every registered detector concurrently and returns the
// devices found, most confident first.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := getDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, errors.New("no detectors available for specified transports")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func(d Detector) {
			results <- runSingleDetector(ctx, d, opts)
		}(d)
	}
	return collectDetectionResults(ctx, results, len(detectors))
}

func runSingleDetector(ctx context.Context, detector Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, found := cache.get(detector.Transport(), opts.CacheTTL); found {
			// Cached results skipped Detect, so filter them again.
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := detector.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: fmt.Errorf("%s detection: %w", detector.Transport(), err)}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			cache.put(detector.Transport(), devices)
		} else {
			cache.forget(detector.Transport())
		}
	}
	return detectionResult{devices: devices}
}

func collectDetectionResults(ctx context.Context, results chan detectionResult, n int) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	var errs []error

	for range n {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
			} else {
				devices = append(devices, res.devices...)
			}
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(devices) > 0 {
		SortByPreference(devices)
		return devices, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoDevicesFound
}

// transportRank orders transports when confidence is equal. PC/SC readers
// are preferred since the OS already identified them.
var transportRank = map[string]int{"pcsc": 0, "uart": 1, "i2c": 2}

// SortByPreference orders devices by descending confidence, then by
// transport, then by path.
func SortByPreference(devices []DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if transportRank[a.Transport] != transportRank[b.Transport] {
			return transportRank[a.Transport] < transportRank[b.Transport]
		}
		return a.Path < b.Path
	})
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	cache.forget("")
}
