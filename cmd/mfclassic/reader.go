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
	"context"
	"fmt"
	"os"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/detection"
	_ "github.com/ZaparooProject/go-mfclassic/detection/i2c"
	_ "github.com/ZaparooProject/go-mfclassic/detection/pcsc"
	_ "github.com/ZaparooProject/go-mfclassic/detection/uart"
	"github.com/ZaparooProject/go-mfclassic/internal/config"
	"github.com/ZaparooProject/go-mfclassic/transport/pcsc"
	"github.com/ZaparooProject/go-mfclassic/transport/pn532"
	pn532i2c "github.com/ZaparooProject/go-mfclassic/transport/pn532/i2c"
	pn532uart "github.com/ZaparooProject/go-mfclassic/transport/pn532/uart"
)

// reader is an open Transport the command has to close.
type reader interface {
	mfclassic.Transport
	Close() error
}

// openReader opens device, or the best detected reader when device is
// empty.
func openReader(ctx context.Context, device string) (reader, error) {
	if device == "" {
		detected, err := detectDevice(ctx)
		if err != nil {
			return nil, err
		}
		device = detected
	}

	transport, path, err := config.SplitDevice(device)
	if err != nil {
		return nil, err
	}
	mfclassic.Debugf("opening %s reader %q", transport, path)

	switch transport {
	case "pcsc":
		r, err := pcsc.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open PC/SC reader: %w", err)
		}
		return r, nil
	case "uart":
		link, err := pn532uart.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
		}
		return initPN532(ctx, pn532.New(link))
	case "i2c":
		link, err := pn532i2c.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport for %s: %w", path, err)
		}
		return initPN532(ctx, pn532.New(link))
	default:
		return nil, fmt.Errorf("%w: unsupported transport %s", mfclassic.ErrInvalidParameter, transport)
	}
}

func initPN532(ctx context.Context, r *pn532.Reader) (reader, error) {
	if err := r.Init(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to initialize PN532: %w", err)
	}
	mfclassic.Debugf("PN532 firmware: %s", r.Firmware())
	return r, nil
}

// detectDevice runs device detection. With several readers attached and a
// terminal on stdin the user picks one, otherwise the most confident wins.
func detectDevice(ctx context.Context) (string, error) {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", mfclassic.ErrReaderNotFound, err)
	}
	for _, d := range devices {
		mfclassic.Debugf("detected %s", d)
	}

	if len(devices) == 1 || !isTerminal(os.Stdin) {
		return devices[0].Device(), nil
	}

	items := make([]string, len(devices))
	for i, d := range devices {
		items[i] = fmt.Sprintf("%s (%s)", d.Device(), d.Confidence)
	}
	choice, err := selectMenu(os.Stdin, os.Stdout, "Select a reader:", items)
	if err != nil {
		return "", err
	}
	return devices[choice].Device(), nil
}
