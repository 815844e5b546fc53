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

// Package uart detects PN532 boards behind USB serial adapters.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/detection"
	"github.com/ZaparooProject/go-mfclassic/transport/pn532"
	pn532uart "github.com/ZaparooProject/go-mfclassic/transport/pn532/uart"
	"go.bug.st/serial/enumerator"
)

const probeTimeout = 2 * time.Second

// serialPort is a serial port with its USB descriptors.
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
}

// detector implements detection.Detector for serial ports.
type detector struct {
	listPorts func() ([]serialPort, error)
	probe     func(ctx context.Context, path string, mode detection.Mode) bool
}

// New creates a UART detector
func New() detection.Detector {
	return &detector{listPorts: enumeratePorts, probe: probeDevice}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns "uart"
func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports and, outside Passive mode, asks each candidate
// for its firmware version.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for i := range ports {
		if ctx.Err() != nil {
			break
		}
		port := &ports[i]
		if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
			continue
		}
		if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if device, ok := d.processPort(ctx, port, opts.Mode); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) processPort(ctx context.Context, port *serialPort, mode detection.Mode) (detection.DeviceInfo, bool) {
	if mode == detection.Passive {
		if !isLikelyPN532(port) {
			return detection.DeviceInfo{}, false
		}
		return newDeviceInfo(port, detection.Medium), true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// A port that stays silent is dropped even when its descriptors look
	// right, so a busy CH340 does not hide a real reader enumerated later.
	if !d.probe(probeCtx, port.Path, mode) {
		return detection.DeviceInfo{}, false
	}
	return newDeviceInfo(port, detection.High), true
}

func newDeviceInfo(port *serialPort, confidence detection.Confidence) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "uart",
		Path:       port.Path,
		Name:       port.Name,
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// knownAdapters are the USB serial bridges PN532 boards ship with.
var knownAdapters = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

// isLikelyPN532 reports whether the descriptors of port point at a PN532
// board.
func isLikelyPN532(port *serialPort) bool {
	vidpid := strings.ToUpper(port.VIDPID)
	for _, known := range knownAdapters {
		if vidpid == known {
			return true
		}
	}

	product := strings.ToLower(port.Product)
	for _, keyword := range []string{"pn532", "nfc", "rfid", "13.56"} {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

func enumeratePorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	ports := make([]serialPort, 0, len(details))
	for _, p := range details {
		port := serialPort{Path: p.Name, Name: p.Name}
		if p.IsUSB {
			port.VIDPID = strings.ToUpper(p.VID + ":" + p.PID)
			port.Product = p.Product
			port.SerialNumber = p.SerialNumber
			if p.Product != "" {
				port.Name = p.Product
			}
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// probeDevice opens path once and asks for a PN532 answer. There is no
// retry: ports that do not answer are not readers, and hammering them can
// upset whatever is attached.
func probeDevice(ctx context.Context, path string, mode detection.Mode) bool {
	link, err := pn532uart.Open(path)
	if err != nil {
		return false
	}

	reader := pn532.New(link, pn532.WithRetryConfig(&mfclassic.RetryConfig{}))
	defer func() { _ = reader.Close() }()

	switch mode {
	case detection.Safe:
		_, err = reader.ProbeFirmware(ctx)
	case detection.Full:
		err = reader.Init(ctx)
	default:
		return false
	}
	return err == nil
}
