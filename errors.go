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

package mfclassic

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
)

// Sentinel errors. Wrap them with %w and test them with errors.Is.
var (
	// Link errors, retried unless wrapped as permanent
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Frame level errors
	ErrNoACK            = errors.New("no ACK received")
	ErrNACKReceived     = errors.New("NACK received")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidResponse  = errors.New("invalid response format")

	// Reader and tag errors - fatal for the whole operation
	ErrReaderNotFound   = errors.New("NFC reader not found")
	ErrTagNotFound      = errors.New("no tag was found")
	ErrNotMIFAREClassic = errors.New("tag is not a MIFARE Classic card")
	ErrTagRemoved       = errors.New("tag was removed")

	// Authentication errors
	ErrAuthFailed    = errors.New("authentication failed")
	ErrAuthExhausted = errors.New("no default key authenticated")

	// Block errors - local to one sector
	ErrTagReadFailed  = errors.New("tag read failed")
	ErrTagWriteFailed = errors.New("tag write failed")

	// Input errors - not retryable
	ErrMalformedDump    = errors.New("malformed dump")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")
)

// ErrorType classifies a link error for the retry and abort decisions.
type ErrorType int

const (
	// ErrorTypeTransient errors are retried by RetryWithConfig
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent errors end the whole operation
	ErrorTypePermanent
	// ErrorTypeTimeout errors are retried like transient ones
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// linkErrorTypes is the category of each link sentinel when it is not
// wrapped in a TransportError.
var linkErrorTypes = []struct {
	err error
	typ ErrorType
}{
	{ErrTransportTimeout, ErrorTypeTimeout},
	{ErrNoACK, ErrorTypeTimeout},
	{ErrTransportNotReady, ErrorTypeTimeout},
	{ErrTransportRead, ErrorTypeTransient},
	{ErrTransportWrite, ErrorTypeTransient},
	{ErrFrameCorrupted, ErrorTypeTransient},
	{ErrChecksumMismatch, ErrorTypeTransient},
	{ErrDataTooLarge, ErrorTypePermanent},
}

func classify(err error) (ErrorType, bool) {
	for _, e := range linkErrorTypes {
		if errors.Is(err, e.err) {
			return e.typ, true
		}
	}
	return ErrorTypePermanent, false
}

// TransportError is a link failure with the operation and port it hit.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err for op on port with an explicit category.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// newLinkError wraps a link sentinel with its category from linkErrorTypes.
func newLinkError(op, port string, sentinel error) *TransportError {
	typ, _ := classify(sentinel)
	return NewTransportError(op, port, sentinel, typ)
}

// NewTimeoutError reports a response that did not arrive in time.
func NewTimeoutError(op, port string) *TransportError {
	return newLinkError(op, port, ErrTransportTimeout)
}

// NewNoACKError reports a command the reader never acknowledged.
func NewNoACKError(op, port string) *TransportError {
	return newLinkError(op, port, ErrNoACK)
}

// NewFrameCorruptedError reports a frame that failed to parse.
func NewFrameCorruptedError(op, port string) *TransportError {
	return newLinkError(op, port, ErrFrameCorrupted)
}

// NewTransportWriteError reports a short or failed write to the link.
func NewTransportWriteError(op, port string) *TransportError {
	return newLinkError(op, port, ErrTransportWrite)
}

// NewTransportNotReadyError reports a reader that kept its ready flag low.
func NewTransportNotReadyError(op, port string) *TransportError {
	return newLinkError(op, port, ErrTransportNotReady)
}

// NewDataTooLargeError reports a command that does not fit in one frame.
func NewDataTooLargeError(op, port string) *TransportError {
	return newLinkError(op, port, ErrDataTooLarge)
}

// AuthMode is how the Authenticator chooses keys.
type AuthMode int

const (
	// AutoMode tries the default key table
	AutoMode AuthMode = iota
	// KeyFileMode uses the keys of a supplied key dump
	KeyFileMode
)

// String returns a human-readable mode name
func (m AuthMode) String() string {
	if m == KeyFileMode {
		return "key file"
	}
	return "auto"
}

// AuthError reports a sector that could not be authenticated.
type AuthError struct {
	Err   error // ErrAuthFailed or ErrAuthExhausted
	Block int
	Mode  AuthMode
	Role  KeyRole
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v for block %02x (key %s, %s mode)", e.Err, e.Block, e.Role, e.Mode)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a link error worth another attempt.
// Tag-level answers such as ErrAuthFailed never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	typ, known := classify(err)
	return known && typ != ErrorTypePermanent
}

// IsFatal reports whether err means the reader, the link or the tag is gone
// and the operation must stop, as opposed to a failure local to one sector.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	for _, gone := range []error{ErrTransportClosed, ErrReaderNotFound, ErrTagRemoved, io.EOF, io.ErrClosedPipe} {
		if errors.Is(err, gone) {
			return true
		}
	}
	return isDeviceGoneError(err)
}

// Windows system error codes seen when a USB reader is unplugged.
const (
	winAccessDenied syscall.Errno = 5
	winGenFailure   syscall.Errno = 31
	winNoSuchDevice syscall.Errno = 433
)

func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	gone := []syscall.Errno{syscall.EIO, syscall.ENXIO, syscall.ENODEV}
	if runtime.GOOS == "windows" {
		gone = append(gone, winAccessDenied, winGenFailure, winNoSuchDevice)
	}
	for _, e := range gone {
		if errno == e {
			return true
		}
	}
	return false
}
