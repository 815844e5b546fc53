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
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/internal/frame"
	"github.com/ZaparooProject/go-mfclassic/internal/syncutil"
)

// PN532 command codes handled by the simulator
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// MIFARE commands carried by InDataExchange
const (
	mifareAuthA = 0x60
	mifareAuthB = 0x61
	mifareRead  = 0x30
	mifareWrite = 0xA0
)

// InDataExchange status codes
const (
	StatusOK         = 0x00
	StatusTimeout    = 0x01
	StatusAuthFailed = 0x14
	StatusNotAllowed = 0x27
)

// SimulatorState tracks what the host has configured on the simulated chip.
type SimulatorState struct {
	SAMConfigured  bool
	PassiveRetries byte
	SelectedTarget int // -1 = none
}

// VirtualPN532 simulates a PN532 at the frame level. The host writes
// command frames and reads back an ACK followed by the response frame, as
// it would over a serial line.
type VirtualPN532 struct {
	tag                 *VirtualTag
	lastResponse        []byte
	commands            []byte
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	state               SimulatorState
	mu                  syncutil.Mutex
	firmware            [4]byte
	injectStatus        byte
	injectChecksumError bool
	dropNextACK         bool
	silent              bool
}

// NewVirtualPN532 creates a PN532 v1.6 with no tag in its field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		state:    SimulatorState{SelectedTarget: -1},
		firmware: [4]byte{0x32, 0x01, 0x06, 0x07},
	}
}

// Write receives bytes from the host and answers every complete frame.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	if err := v.processReceivedData(); err != nil {
		return len(data), err
	}
	return len(data), nil
}

// Read returns pending response bytes. It returns 0 when nothing is pending.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// SetTag places tag in the field, replacing any previous one.
func (v *VirtualPN532) SetTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = tag
	v.state.SelectedTarget = -1
}

// RemoveTag empties the field.
func (v *VirtualPN532) RemoveTag() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = nil
	v.state.SelectedTarget = -1
}

// SetFirmwareVersion configures the GetFirmwareVersion answer.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [4]byte{ic, ver, rev, support}
}

// InjectChecksumError corrupts the DCS of the next response.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// DropNextACK makes the simulator swallow the next command without any
// answer, as if the frame was lost on the wire.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// InjectStatus makes the next InDataExchange fail with status.
func (v *VirtualPN532) InjectStatus(status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectStatus = status
}

// SetSilent makes the simulator stop answering altogether, as an unplugged
// reader would.
func (v *VirtualPN532) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// GetState returns the current simulator state.
func (v *VirtualPN532) GetState() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// CommandCount returns how many times cmd was received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Count(v.commands, []byte{cmd})
}

// HasPendingResponse reports whether response bytes are waiting.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}

func (v *VirtualPN532) processReceivedData() error {
	for {
		f, used, err := frame.ParseCommand(v.rxBuffer.Bytes())
		if errors.Is(err, frame.ErrIncomplete) {
			return nil
		}
		v.rxBuffer.Next(used)
		if v.silent {
			continue
		}
		if err != nil {
			// A corrupted host frame is answered with NACK.
			v.txBuffer.Write(frame.NackFrame)
			continue
		}

		switch f.Kind {
		case frame.KindAck:
			// host acknowledging our response, nothing to do
		case frame.KindNack:
			v.txBuffer.Write(v.lastResponse)
		case frame.KindError:
			return fmt.Errorf("host sent an error frame")
		case frame.KindData:
			v.processCommand(f.Data)
		}
	}
}

// processCommand answers one command. data starts with the command code.
func (v *VirtualPN532) processCommand(data []byte) {
	if len(data) == 0 {
		v.sendErrorFrame()
		return
	}
	if v.dropNextACK {
		v.dropNextACK = false
		return
	}
	v.txBuffer.Write(frame.AckFrame)

	cmd, params := data[0], data[1:]
	v.commands = append(v.commands, cmd)

	var response []byte
	switch cmd {
	case cmdGetFirmwareVersion:
		response = v.firmware[:]
	case cmdSAMConfiguration:
		if len(params) < 1 {
			v.sendErrorFrame()
			return
		}
		v.state.SAMConfigured = true
	case cmdRFConfiguration:
		if len(params) >= 4 && params[0] == 0x05 {
			v.state.PassiveRetries = params[3]
		}
	case cmdInListPassiveTarget:
		response = v.handleInListPassiveTarget()
	case cmdInRelease:
		v.state.SelectedTarget = -1
		response = []byte{StatusOK}
	case cmdInDataExchange:
		response = v.handleInDataExchange(params)
	default:
		v.sendErrorFrame()
		return
	}
	v.sendResponse(cmd, response)
}

// handleInListPassiveTarget answers NbTg Tg SENS_RES SEL_RES NFCIDLength
// NFCID1.
func (v *VirtualPN532) handleInListPassiveTarget() []byte {
	if v.tag == nil {
		return []byte{0x00}
	}
	info, err := v.tag.Select()
	if err != nil {
		return []byte{0x00}
	}
	v.state.SelectedTarget = 1

	resp := []byte{0x01, 0x01, info.ATQA[0], info.ATQA[1], info.SAK, byte(len(info.UID))}
	return append(resp, info.UID...)
}

func (v *VirtualPN532) handleInDataExchange(params []byte) []byte {
	if status := v.injectStatus; status != StatusOK {
		v.injectStatus = StatusOK
		return []byte{status}
	}
	if len(params) < 2 || v.state.SelectedTarget != int(params[0]) || v.tag == nil {
		return []byte{StatusNotAllowed}
	}
	return v.processTagCommand(params[1:])
}

func (v *VirtualPN532) processTagCommand(cmd []byte) []byte {
	if len(cmd) < 2 {
		return []byte{StatusNotAllowed}
	}
	block := int(cmd[1])

	switch cmd[0] {
	case mifareAuthA, mifareAuthB:
		if len(cmd) < 2+mfclassic.KeySize+4 {
			return []byte{StatusNotAllowed}
		}
		role := mfclassic.KeyA
		if cmd[0] == mifareAuthB {
			role = mfclassic.KeyB
		}
		var key mfclassic.Key
		copy(key[:], cmd[2:2+mfclassic.KeySize])
		if err := v.tag.Authenticate(block, role, key); err != nil {
			return []byte{StatusAuthFailed}
		}
		return []byte{StatusOK}
	case mifareRead:
		data, err := v.tag.ReadBlock(block)
		if err != nil {
			return []byte{StatusTimeout}
		}
		return append([]byte{StatusOK}, data...)
	case mifareWrite:
		if len(cmd) != 2+mfclassic.BlockSize {
			return []byte{StatusNotAllowed}
		}
		if err := v.tag.WriteBlock(block, cmd[2:]); err != nil {
			return []byte{StatusTimeout}
		}
		return []byte{StatusOK}
	default:
		return []byte{StatusNotAllowed}
	}
}

// sendResponse frames data under response code cmd+1.
func (v *VirtualPN532) sendResponse(cmd byte, data []byte) {
	body := make([]byte, 0, len(data)+2)
	body = append(body, frame.Pn532ToHost, cmd+1)
	body = append(body, data...)

	out := make([]byte, 0, len(body)+frame.Overhead)
	out = append(out, frame.Preamble, frame.StartCode1, frame.StartCode2,
		byte(len(body)), frame.Complement(byte(len(body))))
	out = append(out, body...)
	out = append(out, frame.Complement(body...), frame.Postamble)

	if v.injectChecksumError {
		v.injectChecksumError = false
		out[len(out)-2] ^= 0xFF
	}

	v.lastResponse = out
	v.txBuffer.Write(out)
}

// sendErrorFrame sends the fixed application level error frame.
func (v *VirtualPN532) sendErrorFrame() {
	out := []byte{
		frame.Preamble, frame.StartCode1, frame.StartCode2,
		0x01, 0xFF, frame.ErrorTFI, 0x81, frame.Postamble,
	}
	v.lastResponse = out
	v.txBuffer.Write(out)
}
