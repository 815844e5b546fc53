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

// Package pcsc drives MIFARE Classic tags through a PC/SC contactless
// reader (ACR122U and similar) using the storage card pseudo-APDUs of PC/SC
// part 3.
package pcsc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ebfe/scard"
)

// Pseudo-APDU instruction bytes.
const (
	claReader       = 0xFF
	insGetData      = 0xCA
	insLoadKey      = 0x82
	insGeneralAuth  = 0x86
	insReadBinary   = 0xB0
	insUpdateBinary = 0xD6

	authVersion = 0x01
	keyTypeA    = 0x60
	keyTypeB    = 0x61

	// keySlot is the volatile key location used for authentication.
	keySlot = 0x00
)

// card is the part of *scard.Card the reader uses.
type card interface {
	Transmit(cmd []byte) ([]byte, error)
	Reconnect(mode scard.ShareMode, proto scard.Protocol, disp scard.Disposition) error
	Status() (*scard.CardStatus, error)
	Disconnect(d scard.Disposition) error
}

// StatusError is a status word other than 90 00.
type StatusError struct {
	Op string
	SW uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status word %04X", e.Op, e.SW)
}

// Reader implements mfclassic.Transport on a PC/SC reader.
type Reader struct {
	ctx       *scard.Context
	card      card
	loadedKey *mfclassic.Key
	name      string
	selected  bool
}

var _ mfclassic.Transport = (*Reader)(nil)

// Open connects to the card on the reader whose name contains readerName,
// or on the first reader when readerName is empty.
func Open(readerName string) (*Reader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("%w: establish PC/SC context: %w", mfclassic.ErrReaderNotFound, err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		_ = ctx.Release()
		return nil, fmt.Errorf("%w: no PC/SC readers (%v)", mfclassic.ErrReaderNotFound, err)
	}

	name, ok := pickReader(readers, readerName)
	if !ok {
		_ = ctx.Release()
		return nil, fmt.Errorf("%w: no PC/SC reader matches %q", mfclassic.ErrReaderNotFound, readerName)
	}

	c, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		_ = ctx.Release()
		return nil, fmt.Errorf("%w: connect to %s: %w", mfclassic.ErrTagNotFound, name, err)
	}
	mfclassic.Debugf("PC/SC: connected to %s", name)

	return &Reader{ctx: ctx, card: c, name: name}, nil
}

func pickReader(readers []string, want string) (string, bool) {
	if want == "" {
		return readers[0], true
	}
	for _, r := range readers {
		if strings.Contains(r, want) {
			return r, true
		}
	}
	return "", false
}

// String returns the reader name
func (r *Reader) String() string {
	return r.name
}

// Close disconnects the card and releases the context.
func (r *Reader) Close() error {
	var errs []error
	if r.card != nil {
		errs = append(errs, r.card.Disconnect(scard.LeaveCard))
	}
	if r.ctx != nil {
		errs = append(errs, r.ctx.Release())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close PC/SC reader: %w", err)
	}
	return nil
}

// transmit sends apdu and splits the answer into data and status word.
func (r *Reader) transmit(op string, apdu []byte) ([]byte, error) {
	resp, err := r.card.Transmit(apdu)
	if err != nil {
		if errors.Is(err, scard.ErrRemovedCard) || errors.Is(err, scard.ErrNoSmartcard) {
			return nil, fmt.Errorf("%w: %s: %w", mfclassic.ErrTagRemoved, op, err)
		}
		return nil, mfclassic.NewTransportError(op, r.name, err, mfclassic.ErrorTypePermanent)
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: %s: % X", mfclassic.ErrInvalidResponse, op, resp)
	}

	n := len(resp) - 2
	if sw := uint16(resp[n])<<8 | uint16(resp[n+1]); sw != 0x9000 {
		return nil, &StatusError{Op: op, SW: sw}
	}
	return resp[:n], nil
}

// SelectTag reads the UID and derives ATQA and SAK from the ATR. Every call
// after the first resets the card, which is how a halted tag is brought
// back after a rejected key.
func (r *Reader) SelectTag(_ context.Context) (*mfclassic.TagInfo, error) {
	if r.selected {
		if err := r.card.Reconnect(scard.ShareShared, scard.ProtocolAny, scard.ResetCard); err != nil {
			return nil, fmt.Errorf("%w: reconnect: %w", mfclassic.ErrTagNotFound, err)
		}
		r.loadedKey = nil
	}

	status, err := r.card.Status()
	if err != nil {
		return nil, fmt.Errorf("%w: card status: %w", mfclassic.ErrTagNotFound, err)
	}

	uid, err := r.transmit("get UID", []byte{claReader, insGetData, 0x00, 0x00, 0x00})
	if err != nil {
		return nil, err
	}
	if len(uid) == 0 {
		return nil, mfclassic.ErrTagNotFound
	}

	tag := tagFromATR(status.Atr)
	tag.UID = uid
	r.selected = true
	return tag, nil
}

// PC/SC part 3 ATR of a contactless storage card:
//
//	3B 8F 80 01 80 4F 0C A0 00 00 03 06 SS NN NN 00 00 00 00 TCK
//
// where NN NN is the card name.
var storageCardRID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

const (
	ridOffset      = 7
	cardNameOffset = 13

	cardNameClassic1K = 0x0001
	cardNameClassic4K = 0x0002
)

// tagFromATR fills in the ATQA and SAK a MIFARE Classic card of the named
// type answers with. Other cards get SAK 0.
func tagFromATR(atr []byte) *mfclassic.TagInfo {
	tag := &mfclassic.TagInfo{}
	if len(atr) < cardNameOffset+2 || !bytes.Equal(atr[ridOffset:ridOffset+len(storageCardRID)], storageCardRID) {
		return tag
	}

	switch uint16(atr[cardNameOffset])<<8 | uint16(atr[cardNameOffset+1]) {
	case cardNameClassic1K:
		tag.ATQA = [2]byte{0x00, 0x04}
		tag.SAK = 0x08
	case cardNameClassic4K:
		tag.ATQA = [2]byte{0x00, 0x02}
		tag.SAK = 0x18
	}
	return tag
}

// Authenticate loads key into the reader's volatile slot and runs General
// Authenticate. The UID is known to the reader and not needed.
func (r *Reader) Authenticate(
	_ context.Context, block uint8, key mfclassic.Key, role mfclassic.KeyRole, _ []byte,
) error {
	if r.loadedKey == nil || *r.loadedKey != key {
		apdu := append([]byte{claReader, insLoadKey, 0x00, keySlot, mfclassic.KeySize}, key[:]...)
		if _, err := r.transmit("load key", apdu); err != nil {
			return err
		}
		k := key
		r.loadedKey = &k
	}

	keyType := byte(keyTypeA)
	if role == mfclassic.KeyB {
		keyType = keyTypeB
	}
	apdu := []byte{claReader, insGeneralAuth, 0x00, 0x00, 0x05, authVersion, 0x00, block, keyType, keySlot}

	_, err := r.transmit("authenticate", apdu)
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: block %d: %w", mfclassic.ErrAuthFailed, block, se)
	}
	return err
}

// ReadBlock reads one 16 byte block.
func (r *Reader) ReadBlock(_ context.Context, block uint8) ([]byte, error) {
	data, err := r.transmit("read binary", []byte{claReader, insReadBinary, 0x00, block, mfclassic.BlockSize})
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
func (r *Reader) WriteBlock(_ context.Context, block uint8, data []byte) error {
	if len(data) != mfclassic.BlockSize {
		return fmt.Errorf("%w: block data must be %d bytes, got %d",
			mfclassic.ErrInvalidParameter, mfclassic.BlockSize, len(data))
	}
	apdu := append([]byte{claReader, insUpdateBinary, 0x00, block, mfclassic.BlockSize}, data...)
	_, err := r.transmit("update binary", apdu)
	return err
}
