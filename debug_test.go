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
	"bytes"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveDebugState captures the package debug globals and restores them when
// the test ends. Tests touching them must not run in parallel.
func saveDebugState(t *testing.T) {
	t.Helper()
	enabled, writer := debugEnabled, sessionLogWriter
	t.Cleanup(func() {
		debugEnabled = enabled
		sessionLogWriter = writer
	})
}

func captureDebug(t *testing.T) *bytes.Buffer {
	t.Helper()
	saveDebugState(t)
	var buf bytes.Buffer
	sessionLogWriter = &buf
	debugEnabled = false
	return &buf
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	buf := captureDebug(t)

	Debugf("test message %d", 42)

	assert.Contains(t, buf.String(), "DEBUG: test message 42\n")
}

func TestDebugf_IncludesTimestamp(t *testing.T) {
	buf := captureDebug(t)

	Debugf("test message")

	matched, err := regexp.MatchString(`^\d{2}:\d{2}:\d{2}\.\d{3} DEBUG:`, buf.String())
	require.NoError(t, err)
	assert.True(t, matched, "should start with HH:MM:SS.mmm, got: %s", buf.String())
}

func TestDebugf_NilSessionWriter(t *testing.T) {
	saveDebugState(t)
	sessionLogWriter = nil
	debugEnabled = false

	assert.NotPanics(t, func() { Debugf("test message %d", 42) })
}

func TestDebugln_WritesToSessionLog(t *testing.T) {
	buf := captureDebug(t)

	Debugln("sector ", 3, " failed")

	assert.Contains(t, buf.String(), "DEBUG: sector 3 failed")
}

func TestDebugf_MultipleMessages(t *testing.T) {
	buf := captureDebug(t)

	Debugf("message 1")
	Debugf("message 2")
	Debugf("message 3")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestSetDebugEnabled(t *testing.T) {
	saveDebugState(t)
	sessionLogWriter = io.Discard

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())

	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}
