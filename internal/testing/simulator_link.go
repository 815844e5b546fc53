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

package testing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/internal/frame"
)

// SimulatorLink carries PN532 commands to a VirtualPN532 through the real
// frame codec. It satisfies the Link interface of transport/pn532, so a
// pn532.Reader can be tested end to end without hardware.
type SimulatorLink struct {
	sim       *VirtualPN532
	exchanges int
	closed    bool
}

// NewSimulatorLink creates a link to sim.
func NewSimulatorLink(sim *VirtualPN532) *SimulatorLink {
	return &SimulatorLink{sim: sim}
}

// Exchange sends one command and returns the response code and payload.
func (l *SimulatorLink) Exchange(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.closed {
		return nil, mfclassic.ErrTransportClosed
	}
	l.exchanges++

	out, err := frame.Build(cmd, params)
	if err != nil {
		return nil, err
	}
	if _, err := l.sim.Write(out); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	buf := make([]byte, frame.Overhead+frame.MaxBodyLength+len(frame.AckFrame))
	n, _ := l.sim.Read(buf)
	pending := buf[:n]

	ack, used, err := frame.Parse(pending)
	switch {
	case errors.Is(err, frame.ErrIncomplete):
		return nil, mfclassic.NewNoACKError("exchange", "simulator")
	case err != nil:
		return nil, err
	case ack.Kind != frame.KindAck:
		return nil, fmt.Errorf("%w: expected ACK, got %s", mfclassic.ErrInvalidResponse, ack.Kind)
	}
	pending = pending[used:]

	resp, _, err := frame.Parse(pending)
	switch {
	case errors.Is(err, frame.ErrIncomplete):
		return nil, mfclassic.NewTimeoutError("exchange", "simulator")
	case err != nil:
		return nil, err
	case resp.Kind == frame.KindError:
		return nil, fmt.Errorf("%w: PN532 error frame", mfclassic.ErrInvalidResponse)
	}

	_, _ = l.sim.Write(frame.AckFrame)
	return resp.Data, nil
}

// Close marks the link closed.
func (l *SimulatorLink) Close() error {
	l.closed = true
	return nil
}

// Exchanges returns how many commands were sent.
func (l *SimulatorLink) Exchanges() int {
	return l.exchanges
}
