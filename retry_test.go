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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConfig_DefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()

	assert.Equal(t, DefaultLinkRetries, config.MaxAttempts)
	assert.Greater(t, config.InitialBackoff, time.Duration(0))
	assert.Greater(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, config.Jitter, 0.0)
	assert.LessOrEqual(t, config.Jitter, 1.0)
	assert.Greater(t, config.RetryTimeout, time.Duration(0))
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  time.Duration
		config   *RetryConfig
		expected time.Duration
	}{
		{
			name:     "doubles",
			current:  100 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 200 * time.Millisecond,
		},
		{
			name:     "capped",
			current:  3 * time.Second,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 5 * time.Second,
		},
		{
			name:     "fractional multiplier",
			current:  200 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 1.5, MaxBackoff: 5 * time.Second},
			expected: 300 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, nextBackoff(tt.current, tt.config))
		})
	}
}

func TestJitter(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, base, jitter(base, 0))

	for range 100 {
		got := jitter(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
}

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")

	tests := []struct {
		name          string
		failures      []error
		attempts      int
		expectedCalls int
		expectedErr   error
	}{
		{name: "first try", attempts: 3, expectedCalls: 1},
		{
			name:          "recovers from transient errors",
			failures:      []error{NewNoACKError("exchange", "test"), NewFrameCorruptedError("exchange", "test")},
			attempts:      3,
			expectedCalls: 3,
		},
		{
			name: "gives up after max attempts",
			failures: []error{
				NewTimeoutError("exchange", "test"),
				NewTimeoutError("exchange", "test"),
				NewTimeoutError("exchange", "test"),
			},
			attempts:      3,
			expectedCalls: 3,
			expectedErr:   ErrTransportTimeout,
		},
		{
			name:          "stops on non-retryable error",
			failures:      []error{permanent},
			attempts:      3,
			expectedCalls: 1,
			expectedErr:   permanent,
		},
		{
			name:          "zero attempts calls once",
			failures:      []error{NewNoACKError("exchange", "test")},
			attempts:      0,
			expectedCalls: 1,
			expectedErr:   ErrNoACK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), fastRetryConfig(tt.attempts), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestRetryWithConfig_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithConfig_ReturnsLastErrorOnTimeout(t *testing.T) {
	t.Parallel()

	config := fastRetryConfig(100)
	config.InitialBackoff = 20 * time.Millisecond
	config.MaxBackoff = 20 * time.Millisecond
	config.RetryTimeout = 30 * time.Millisecond

	err := RetryWithConfig(context.Background(), config, func() error {
		return NewNoACKError("exchange", "test")
	})
	require.ErrorIs(t, err, ErrNoACK)
}
