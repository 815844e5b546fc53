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

// Package pn532 drives MIFARE Classic tags through an NXP PN532 reader. The
// physical link (UART or I2C, see the uart and i2c subpackages) only moves
// frames; Reader builds the commands and interprets the answers.
package pn532

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfclassic"
)

// Link carries PN532 commands over one physical interface.
type Link interface {
	// Exchange sends cmd with params and returns the response payload,
	// starting with the response code (cmd + 1).
	Exchange(ctx context.Context, cmd byte, params []byte) ([]byte, error)
	Close() error
}

// FirmwareVersion is the answer to GetFirmwareVersion.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f *FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Option configures a Reader.
type Option func(*Reader)

// WithRetryConfig sets how transient link errors are retried.
func WithRetryConfig(config *mfclassic.RetryConfig) Option {
	return func(r *Reader) {
		r.retry = config
	}
}

// WithPassiveActivationRetries sets MxRtyPassiveActivation, which bounds how
// long SelectTag waits for a tag. 0xFF waits forever.
func WithPassiveActivationRetries(n byte) Option {
	return func(r *Reader) {
		r.passiveRetries = n
	}
}

// Reader implements mfclassic.Transport on top of a PN532 Link.
type Reader struct {
	link           Link
	retry          *mfclassic.RetryConfig
	firmware       *FirmwareVersion
	passiveRetries byte
}

// New wraps link. Call Init before selecting tags.
func New(link Link, opts ...Option) *Reader {
	r := &Reader{
		link:           link,
		retry:          mfclassic.DefaultRetryConfig(),
		passiveRetries: DefaultPassiveActivationRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ mfclassic.Transport = (*Reader)(nil)

// Init probes the firmware, puts the SAM in normal mode and bounds the
// passive activation retries.
func (r *Reader) Init(ctx context.Context) error {
	if _, err := r.ProbeFirmware(ctx); err != nil {
		return err
	}

	if _, err := r.call(ctx, cmdSAMConfiguration, []byte{samNormalMode, samTimeout, samUseIRQ}); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}

	// MxRtyATR and MxRtyPSL keep their power-on defaults.
	retries := []byte{rfCfgMaxRetries, 0xFF, 0x01, r.passiveRetries}
	if _, err := r.call(ctx, cmdRFConfiguration, retries); err != nil {
		return fmt.Errorf("RF configuration: %w", err)
	}
	return nil
}

// ProbeFirmware sends GetFirmwareVersion and nothing else. Device
// detection uses it to tell a PN532 from other serial devices.
func (r *Reader) ProbeFirmware(ctx context.Context) (*FirmwareVersion, error) {
	resp, err := r.call(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get firmware version: %w", mfclassic.ErrReaderNotFound, err)
	}
	if len(resp) < 4 {
		return nil, fmt.Errorf("%w: firmware version response too short: %d bytes",
			mfclassic.ErrInvalidResponse, len(resp))
	}
	r.firmware = &FirmwareVersion{IC: resp[0], Version: resp[1], Revision: resp[2], Support: resp[3]}
	mfclassic.Debugf("PN532 firmware %s, support 0x%02X", r.firmware, r.firmware.Support)
	return r.firmware, nil
}

// Firmware returns the version read by Init, or nil.
func (r *Reader) Firmware() *FirmwareVersion {
	return r.firmware
}

// Close releases the link.
func (r *Reader) Close() error {
	if err := r.link.Close(); err != nil {
		return fmt.Errorf("close PN532 link: %w", err)
	}
	return nil
}

// call runs one command with link-level retries and checks the response
// code. It returns the payload after the response code.
func (r *Reader) call(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	var resp []byte
	err := mfclassic.RetryWithConfig(ctx, r.retry, func() error {
		var err error
		resp, err = r.link.Exchange(ctx, cmd, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, fmt.Errorf("%w: command 0x%02X answered with % X", mfclassic.ErrInvalidResponse, cmd, resp)
	}
	return resp[1:], nil
}

// dataExchange sends a tag command through InDataExchange and returns the
// tag's answer after the status byte.
func (r *Reader) dataExchange(ctx context.Context, name string, payload []byte) ([]byte, error) {
	params := make([]byte, 0, len(payload)+1)
	params = append(params, targetNumber)
	params = append(params, payload...)

	resp, err := r.call(ctx, cmdInDataExchange, params)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: %s: missing status byte", mfclassic.ErrInvalidResponse, name)
	}
	if status := resp[0] & statusErrorMask; status != 0 {
		return nil, NewPN532Error(status, name)
	}
	return resp[1:], nil
}

// SelectTag releases any previous target and lists one Type A tag. Calling
// it after a rejected key brings a halted tag back.
func (r *Reader) SelectTag(ctx context.Context) (*mfclassic.TagInfo, error) {
	if _, err := r.call(ctx, cmdInRelease, []byte{0x00}); err != nil {
		mfclassic.Debugf("InRelease before select: %v", err)
	}

	resp, err := r.call(ctx, cmdInListPassiveTarget, []byte{0x01, brTy106TypeA})
	if err != nil {
		return nil, fmt.Errorf("list passive target: %w", err)
	}
	return parseTarget(resp)
}

// parseTarget decodes an InListPassiveTarget answer for 106 kbps Type A:
//
//	NbTg Tg SENS_RES(2) SEL_RES NFCIDLength NFCID1...
func parseTarget(resp []byte) (*mfclassic.TagInfo, error) {
	if len(resp) == 0 || resp[0] == 0 {
		return nil, mfclassic.ErrTagNotFound
	}
	if len(resp) < 6 {
		return nil, fmt.Errorf("%w: target data too short: % X", mfclassic.ErrInvalidResponse, resp)
	}

	uidLen := int(resp[5])
	if len(resp) < 6+uidLen || uidLen == 0 {
		return nil, fmt.Errorf("%w: NFCID length %d in % X", mfclassic.ErrInvalidResponse, uidLen, resp)
	}

	tag := &mfclassic.TagInfo{
		ATQA: [2]byte{resp[2], resp[3]},
		SAK:  resp[4],
		UID:  make([]byte, uidLen),
	}
	copy(tag.UID, resp[6:6+uidLen])
	return tag, nil
}

// Authenticate opens the sector of block with key. Any status error is
// reported as mfclassic.ErrAuthFailed, since the tag halts after it either
// way.
func (r *Reader) Authenticate(
	ctx context.Context, block uint8, key mfclassic.Key, role mfclassic.KeyRole, uid []byte,
) error {
	if len(uid) < 4 {
		return fmt.Errorf("%w: UID must have at least 4 bytes", mfclassic.ErrInvalidParameter)
	}

	cmd := byte(mifareAuthA)
	if role == mfclassic.KeyB {
		cmd = mifareAuthB
	}

	payload := make([]byte, 0, 2+mfclassic.KeySize+4)
	payload = append(payload, cmd, block)
	payload = append(payload, key[:]...)
	payload = append(payload, uid[:4]...)

	_, err := r.dataExchange(ctx, "MIFARE authenticate", payload)
	var pe *PN532Error
	if errors.As(err, &pe) && !pe.IsAuthenticationError() {
		return fmt.Errorf("%w: %w", mfclassic.ErrAuthFailed, pe)
	}
	return err
}

// ReadBlock reads one 16 byte block.
func (r *Reader) ReadBlock(ctx context.Context, block uint8) ([]byte, error) {
	data, err := r.dataExchange(ctx, "MIFARE read", []byte{mifareRead, block})
	if err != nil {
		return nil, err
	}
	if len(data) != mfclassic.BlockSize {
		return nil, fmt.Errorf("%w: read block %d returned %d bytes",
			mfclassic.ErrInvalidResponse, block, len(data))
	}
	return data, nil
}

// WriteBlock writes one 16 byte block.
func (r *Reader) WriteBlock(ctx context.Context, block uint8, data []byte) error {
	if len(data) != mfclassic.BlockSize {
		return fmt.Errorf("%w: block data must be %d bytes, got %d",
			mfclassic.ErrInvalidParameter, mfclassic.BlockSize, len(data))
	}

	payload := make([]byte, 0, 2+mfclassic.BlockSize)
	payload = append(payload, mifareWrite, block)
	payload = append(payload, data...)

	_, err := r.dataExchange(ctx, "MIFARE write", payload)
	return err
}
