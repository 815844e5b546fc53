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

package detection

import (
	"slices"
	"time"

	"github.com/ZaparooProject/go-mfclassic/internal/syncutil"
)

// resultCache keeps the last devices found per transport, so a CLI run
// right after another does not probe serial ports again.
type resultCache struct {
	found map[string][]DeviceInfo
	at    map[string]time.Time
	mu    syncutil.Mutex
}

var cache = newResultCache()

func newResultCache() *resultCache {
	return &resultCache{
		found: make(map[string][]DeviceInfo),
		at:    make(map[string]time.Time),
	}
}

// get returns a copy of the devices stored for transport when they are
// younger than ttl.
func (c *resultCache) get(transport string, ttl time.Duration) ([]DeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.at[transport]
	if !ok || time.Since(stored) > ttl {
		return nil, false
	}
	return slices.Clone(c.found[transport]), true
}

func (c *resultCache) put(transport string, devices []DeviceInfo) {
	_ = c.mu.Do(func() error {
		c.found[transport] = slices.Clone(devices)
		c.at[transport] = time.Now()
		return nil
	})
}

// forget drops transport, or every transport when it is empty.
func (c *resultCache) forget(transport string) {
	_ = c.mu.Do(func() error {
		if transport == "" {
			clear(c.found)
			clear(c.at)
			return nil
		}
		delete(c.found, transport)
		delete(c.at, transport)
		return nil
	})
}
