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

// Package uart is the PN532 high speed UART link, for USB serial adapters
// and boards wired to a serial port.
package uart

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/internal/frame"
	"github.com/ZaparooProject/go-mfclassic/internal/syncutil"
	"go.bug.st/serial"
)

const (
	baudRate = 115200

	// DefaultResponseTimeout covers the slowest command, InListPassiveTarget
	// with the default passive activation retries.
	DefaultResponseTimeout = 2 * time.Second
	// DefaultACKTimeout bounds the wait for the ACK of a command.
	DefaultACKTimeout = 500 * time.Millisecond

	nackRetries  = 3
	drainRetries = 3
)

var wakeUpSequence = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Link is a PN532 on a serial port. It implements pn532.Link.
type Link struct {
	port            serial.Port
	portName        string
	pending         []byte
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

// Open opens portName at 115200 8N1.
func Open(portName string, opts ...Option) (*Link, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open UART port %s: %w", mfclassic.ErrReaderNotFound, portName, err)
	}
	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return newLink(port, portName, opts...), nil
}

func newLink(port serial.Port, portName string, opts ...Option) *Link {
	l := &Link{
		port:            port,
		portName:        portName,
		ackTimeout:      DefaultACKTimeout,
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// String returns the port name
func (l *Link) String() string {
	return l.portName
}

// Close closes the serial port.
func (l *Link) Close() error {
	return l.mu.Do(func() error {
		if err := l.port.Close(); err != nil {
			return fmt.Errorf("UART close failed: %w", err)
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

	l.pending = l.pending[:0]
	if err := l.port.ResetInputBuffer(); err != nil {
		mfclassic.Debugf("UART %s reset input buffer: %v", l.portName, err)
	}

	for attempt := 0; ; attempt++ {
		if err := l.send(out); err != nil {
			return nil, err
		}

		f, err := l.readFrame(ctx, l.ackTimeout)
		if errors.Is(err, mfclassic.ErrTransportTimeout) {
			return nil, mfclassic.NewNoACKError("wait ACK", l.portName)
		}
		if err != nil {
			return nil, err
		}

		switch f.Kind {
		case frame.KindAck:
			return l.receive(ctx, cmd)
		case frame.KindData:
			// Some adapters deliver the response ahead of the ACK.
			mfclassic.Debugf("UART %s: response to 0x%02X arrived before ACK", l.portName, cmd)
			return f.Data, nil
		case frame.KindNack:
			if attempt+1 >= nackRetries {
				return nil, mfclassic.NewTransportError("send frame", l.portName,
					mfclassic.ErrNACKReceived, mfclassic.ErrorTypeTransient)
			}
			mfclassic.Debugf("UART %s: NACK for 0x%02X, resending", l.portName, cmd)
		case frame.KindError:
			return nil, fmt.Errorf("%w: PN532 rejected command 0x%02X", mfclassic.ErrInvalidResponse, cmd)
		}
	}
}

func (l *Link) receive(ctx context.Context, cmd byte) ([]byte, error) {
	for {
		f, err := l.readFrame(ctx, l.responseTimeout)
		if errors.Is(err, mfclassic.ErrTransportTimeout) {
			return nil, mfclassic.NewTimeoutError("receive frame", l.portName)
		}
		if err != nil {
			return nil, err
		}

		switch f.Kind {
		case frame.KindData:
			return f.Data, nil
		case frame.KindAck:
			continue
		case frame.KindNack:
			return nil, mfclassic.NewTransportError("receive frame", l.portName,
				mfclassic.ErrNACKReceived, mfclassic.ErrorTypeTransient)
		case frame.KindError:
			return nil, fmt.Errorf("%w: PN532 rejected command 0x%02X", mfclassic.ErrInvalidResponse, cmd)
		}
	}
}

func (l *Link) send(out []byte) error {
	if err := l.write(wakeUpSequence, "wake up"); err != nil {
		return err
	}
	return l.write(out, "send frame")
}

func (l *Link) write(data []byte, op string) error {
	n, err := l.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART %s write failed: %w", op, err)
	}
	if n != len(data) {
		return mfclassic.NewTransportWriteError(op, l.portName)
	}
	return l.drain(op)
}

// drain waits for the output buffer to empty, retrying calls interrupted by
// a signal.
func (l *Link) drain(op string) error {
	delay := 2 * time.Millisecond
	var err error
	for range drainRetries {
		if err = l.port.Drain(); err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return fmt.Errorf("UART %s drain failed: %w", op, err)
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}

// readFrame reads until one whole frame is buffered or timeout expires. It
// returns mfclassic.ErrTransportTimeout on expiry.
func (l *Link) readFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 64)

	for {
		f, used, err := frame.Parse(l.pending)
		if !errors.Is(err, frame.ErrIncomplete) {
			l.pending = l.pending[used:]
			return f, err
		}

		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}
		if time.Now().After(deadline) {
			return frame.Frame{}, mfclassic.ErrTransportTimeout
		}

		n, err := l.port.Read(chunk)
		if err != nil {
			return frame.Frame{}, mfclassic.NewTransportError("read frame", l.portName,
				fmt.Errorf("%w: %w", mfclassic.ErrTransportRead, err), mfclassic.ErrorTypePermanent)
		}
		l.pending = append(l.pending, chunk[:n]...)
	}
}
