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

// Package i2c is the PN532 I2C link, for boards wired to a Linux I2C bus.
package i2c

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/internal/frame"
	"github.com/ZaparooProject/go-mfclassic/internal/syncutil"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the PN532 7-bit I2C address.
	Address = 0x24

	// statusReady is the first byte of every read once a frame is waiting.
	statusReady = 0x01

	maxClock = 400 * physic.KiloHertz

	// DefaultResponseTimeout covers the slowest command, InListPassiveTarget
	// with the default passive activation retries.
	DefaultResponseTimeout = 2 * time.Second
	// DefaultACKTimeout bounds the wait for the ACK of a command.
	DefaultACKTimeout = 500 * time.Millisecond

	nackRetries = 3
	ackReadSize = 6
	// responseReadSize is the largest normal frame; the PN532 pads reads
	// past the end of the frame.
	responseReadSize = frame.Overhead + frame.MaxBodyLength
)

// device is the part of *i2c.Dev the link needs.
type device interface {
	Tx(w, r []byte) error
}

// Link is a PN532 on an I2C bus. It implements pn532.Link.
type Link struct {
	dev             device
	closer          func() error
	busName         string
	mu              syncutil.Mutex
	ackTimeout      time.Duration
	responseTimeout time.Duration
}

// Option configures a Link.
type Option func(*Link)

// WithResponseTimeout sets how long to wait for a response after the ACK.
func WithResponseTimeout(d time.Duration) Option {
	return func(l *Link) {
		l.responseTimeout = d
	}
}

// WithACKTimeout sets how long to wait for the ACK of a command.
func WithACKTimeout(d time.Duration) Option {
	return func(l *Link) {
		l.ackTimeout = d
	}
}

// parseBusPath accepts "/dev/i2c-1" or the "/dev/i2c-1:0x24" form produced
// by device detection.
func parseBusPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// Open initializes the periph host drivers and opens busName.
func Open(busName string, opts ...Option) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseBusPath(busName))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open I2C bus %s: %w", mfclassic.ErrReaderNotFound, busName, err)
	}
	if err := bus.SetSpeed(maxClock); err != nil {
		mfclassic.Debugf("I2C %s: keeping default clock: %v", busName, err)
	}

	l := newLink(&i2c.Dev{Addr: Address, Bus: bus}, busName, opts...)
	l.closer = bus.Close
	return l, nil
}

func newLink(dev device, busName string, opts ...Option) *Link {
	l := &Link{
		dev:             dev,
		busName:         busName,
		closer:          func() error { return nil },
		ackTimeout:      DefaultACKTimeout,
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// String returns the bus name
func (l *Link) String() string {
	return l.busName
}

// Close closes the bus.
func (l *Link) Close() error {
	return l.mu.Do(func() error {
		if err := l.closer(); err != nil {
			return fmt.Errorf("I2C close failed: %w", err)
		}
		return nil
	})
}

// Exchange sends one command frame, waits for its ACK and returns the
// response payload.
func (l *Link) Exchange(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	var resp []byte
	err := l.mu.Do(func() error {
		var err error
		resp, err = l.exchange(ctx, cmd, params)
		return err
	})
	return resp, err
}

func (l *Link) exchange(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	out, err := frame.Build(cmd, params)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if err := l.dev.Tx(out, nil); err != nil {
			return nil, mfclassic.NewTransportError("send frame", l.busName,
				fmt.Errorf("%w: %w", mfclassic.ErrTransportWrite, err), mfclassic.ErrorTypeTransient)
		}

		if err := l.waitReady(ctx, l.ackTimeout); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, mfclassic.NewNoACKError("wait ACK", l.busName)
		}
		f, err := l.readFrame(ackReadSize)
		if err != nil {
			return nil, err
		}

		switch f.Kind {
		case frame.KindAck:
			return l.receive(ctx, cmd)
		case frame.KindNack:
			if attempt+1 >= nackRetries {
				return nil, mfclassic.NewTransportError("send frame", l.busName,
					mfclassic.ErrNACKReceived, mfclassic.ErrorTypeTransient)
			}
			mfclassic.Debugf("I2C %s: NACK for 0x%02X, resending", l.busName, cmd)
		default:
			return nil, mfclassic.NewNoACKError("wait ACK", l.busName)
		}
	}
}

func (l *Link) receive(ctx context.Context, cmd byte) ([]byte, error) {
	if err := l.waitReady(ctx, l.responseTimeout); err != nil {
		return nil, err
	}
	f, err := l.readFrame(responseReadSize)
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case frame.KindData:
		return f.Data, nil
	case frame.KindError:
		return nil, fmt.Errorf("%w: PN532 rejected command 0x%02X", mfclassic.ErrInvalidResponse, cmd)
	default:
		return nil, mfclassic.NewFrameCorruptedError("receive frame", l.busName)
	}
}

// waitReady polls the status byte until the PN532 has a frame ready.
func (l *Link) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	delay := time.Millisecond
	status := make([]byte, 1)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.dev.Tx(nil, status); err == nil && status[0] == statusReady {
			return nil
		}
		if time.Now().After(deadline) {
			return mfclassic.NewTimeoutError("wait ready", l.busName)
		}

		time.Sleep(delay)
		if delay < 16*time.Millisecond {
			delay *= 2
		}
	}
}

// readFrame reads n bytes after the status byte and decodes them. Each I2C
// read returns a whole frame, so an incomplete one is corrupted.
func (l *Link) readFrame(n int) (frame.Frame, error) {
	buf := make([]byte, 1+n)
	if err := l.dev.Tx(nil, buf); err != nil {
		return frame.Frame{}, mfclassic.NewTransportError("read frame", l.busName,
			fmt.Errorf("%w: %w", mfclassic.ErrTransportRead, err), mfclassic.ErrorTypeTransient)
	}
	if buf[0] != statusReady {
		return frame.Frame{}, mfclassic.NewTransportNotReadyError("read frame", l.busName)
	}

	f, _, err := frame.Parse(buf[1:])
	if err == frame.ErrIncomplete { //nolint:errorlint // sentinel returned unwrapped
		return frame.Frame{}, mfclassic.NewFrameCorruptedError("read frame", l.busName)
	}
	return f, err
}
