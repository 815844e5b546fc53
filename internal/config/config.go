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

// Package config loads the optional YAML file of the mfclassic command.
//
//	device: uart:/dev/ttyUSB0
//	key_role: a
//	strict_auth: false
//	both_roles: true
//	extra_keys:
//	  - "A0B0C0D0E0F0"
//	debug: false
//	session_log: /var/log/mfclassic
//	confirm_write: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/go-mfclassic"
	"gopkg.in/yaml.v3"
)

// Config is the decoded config file. Zero values mean "not set".
type Config struct {
	ConfirmWrite *bool    `yaml:"confirm_write"`
	Device       string   `yaml:"device"`
	KeyRole      string   `yaml:"key_role"`
	SessionLog   string   `yaml:"session_log"`
	ExtraKeys    []string `yaml:"extra_keys"`
	StrictAuth   bool     `yaml:"strict_auth"`
	BothRoles    bool     `yaml:"both_roles"`
	Debug        bool     `yaml:"debug"`
}

// Transports accepted as the prefix of Config.Device.
var Transports = []string{"pcsc", "uart", "i2c"}

// Load reads and validates the file at path. Relative session_log paths are
// resolved against the directory of the file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	cfg.SessionLog = resolvePath(filepath.Dir(path), cfg.SessionLog)
	return cfg, nil
}

// Decode parses YAML from r and validates it. Unknown fields are errors.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every set field.
func (c *Config) Validate() error {
	if c.Device != "" {
		if _, _, err := SplitDevice(c.Device); err != nil {
			return fmt.Errorf("config.device: %w", err)
		}
	}

	if c.KeyRole != "" {
		if _, err := mfclassic.ParseKeyRole(c.KeyRole); err != nil {
			return fmt.Errorf("config.key_role: %w", err)
		}
	}

	for i, k := range c.ExtraKeys {
		if _, err := mfclassic.ParseKey(k); err != nil {
			return fmt.Errorf("config.extra_keys[%d]: %w", i, err)
		}
	}
	return nil
}

// Keys returns ExtraKeys parsed. Validate has already checked them.
func (c *Config) Keys() []mfclassic.Key {
	keys := make([]mfclassic.Key, 0, len(c.ExtraKeys))
	for _, k := range c.ExtraKeys {
		if key, err := mfclassic.ParseKey(k); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// ShouldConfirmWrite reports whether write asks before touching the tag.
// It defaults to true.
func (c *Config) ShouldConfirmWrite() bool {
	return c.ConfirmWrite == nil || *c.ConfirmWrite
}

// SplitDevice splits "transport:path" into its parts. The path may itself
// contain colons, as in "i2c:/dev/i2c-1:0x24" or a PC/SC reader name.
func SplitDevice(device string) (transport, path string, err error) {
	transport, path, ok := strings.Cut(strings.TrimSpace(device), ":")
	if !ok {
		return "", "", fmt.Errorf("%w: device %q must be transport:path", mfclassic.ErrInvalidParameter, device)
	}

	transport = strings.ToLower(transport)
	for _, t := range Transports {
		if t == transport {
			if path == "" && transport != "pcsc" {
				return "", "", fmt.Errorf("%w: device %q has no path", mfclassic.ErrInvalidParameter, device)
			}
			return transport, path, nil
		}
	}
	return "", "", fmt.Errorf("%w: unknown transport %q, want one of %s",
		mfclassic.ErrInvalidParameter, transport, strings.Join(Transports, ", "))
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
