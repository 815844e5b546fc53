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
	"fmt"
)

// Authenticator finds a working key for a sector and opens it.
//
// In key file mode the key comes from the key dump and exactly one attempt is
// made. In auto mode the candidate keys are tried in order; a rejected key
// leaves the tag halted, so the tag is reselected before the next attempt.
//
// Auto mode only learns the key of the role it authenticates with. The other
// key of the sector stays unknown (zero in a read dump) unless BothRoles is
// set.
type Authenticator struct {
	transport  Transport
	keyDump    *Dump
	keys       KeySet
	uid        []byte
	candidates []NamedKey
	role       KeyRole
	bothRoles  bool
}

func newAuthenticator(s *Session) *Authenticator {
	candidates := make([]NamedKey, 0, len(DefaultKeys)+len(s.config.ExtraKeys))
	candidates = append(candidates, DefaultKeys...)
	candidates = append(candidates, s.config.ExtraKeys...)

	return &Authenticator{
		transport:  s.transport,
		keyDump:    s.keyDump,
		keys:       s.keys,
		uid:        s.tag.UID,
		candidates: candidates,
		role:       s.config.Role,
		bothRoles:  s.config.BothRoles,
	}
}

// Authenticate opens the sector containing block and returns the key that
// worked. Rejections are reported as *AuthError; any other error comes from
// the transport.
func (a *Authenticator) Authenticate(ctx context.Context, block int) (Key, error) {
	if err := ctx.Err(); err != nil {
		return Key{}, err
	}
	if a.keyDump != nil {
		return a.authenticateWithKeyDump(ctx, block)
	}
	return a.authenticateAuto(ctx, block)
}

func (a *Authenticator) authenticateWithKeyDump(ctx context.Context, block int) (Key, error) {
	key := a.keyDump.Trailer(block).Key(a.role)

	err := a.transport.Authenticate(ctx, uint8(block), key, a.role, a.uid) //nolint:gosec // block < 256
	if err == nil {
		return key, nil
	}
	if errors.Is(err, ErrAuthFailed) {
		return Key{}, &AuthError{Err: ErrAuthFailed, Block: block, Role: a.role, Mode: KeyFileMode}
	}
	return Key{}, err
}

// authState is a step of the auto mode key search.
type authState int

const (
	stateTryKey authState = iota
	stateNeedsReselect
	stateSuccess
	stateExhausted
)

// keySearch walks the candidate list for one sector and role:
//
//	TryKey(i) -> Success
//	TryKey(i) -> NeedsReselect -> TryKey(i+1)
//	TryKey(len) -> Exhausted
type keySearch struct {
	a     *Authenticator
	block int
	role  KeyRole
	index int
}

func (k *keySearch) run(ctx context.Context) (Key, error) {
	state := stateTryKey
	for {
		switch state {
		case stateTryKey:
			if k.index >= len(k.a.candidates) {
				state = stateExhausted
				continue
			}
			next, err := k.try(ctx)
			if err != nil {
				return Key{}, err
			}
			state = next
		case stateNeedsReselect:
			if err := ctx.Err(); err != nil {
				return Key{}, err
			}
			// The tag halts after a rejected key and ignores further
			// commands until it is selected again.
			if _, err := k.a.transport.SelectTag(ctx); err != nil {
				Debugf("block %d: reselect after rejected key failed: %v", k.block, err)
			}
			k.index++
			state = stateTryKey
		case stateSuccess:
			return k.a.candidates[k.index].Key, nil
		case stateExhausted:
			return Key{}, &AuthError{Err: ErrAuthExhausted, Block: k.block, Role: k.role, Mode: AutoMode}
		}
	}
}

func (k *keySearch) try(ctx context.Context) (authState, error) {
	candidate := k.a.candidates[k.index]
	err := k.a.transport.Authenticate(ctx, uint8(k.block), candidate.Key, k.role, k.a.uid) //nolint:gosec // block < 256
	switch {
	case err == nil:
		Debugf("block %d: key %s %s (%s) accepted", k.block, k.role, candidate.Key, candidate.Name)
		return stateSuccess, nil
	case errors.Is(err, ErrAuthFailed):
		return stateNeedsReselect, nil
	default:
		return stateTryKey, fmt.Errorf("authenticate block %d: %w", k.block, err)
	}
}

func (a *Authenticator) authenticateAuto(ctx context.Context, block int) (Key, error) {
	search := &keySearch{a: a, block: block, role: a.role}
	key, err := search.run(ctx)
	if err != nil {
		return Key{}, err
	}
	a.keys.Record(block, a.role, key)

	if a.bothRoles {
		if err := a.discoverOtherRole(ctx, block, key); err != nil {
			return Key{}, err
		}
	}
	return key, nil
}

// discoverOtherRole searches the key of the role not used for the session,
// then restores authentication with the session role's known key.
func (a *Authenticator) discoverOtherRole(ctx context.Context, block int, key Key) error {
	other := a.role.Other()
	search := &keySearch{a: a, block: block, role: other}
	otherKey, err := search.run(ctx)

	var authErr *AuthError
	switch {
	case err == nil:
		a.keys.Record(block, other, otherKey)
	case errors.As(err, &authErr):
		Debugf("block %d: key %s not found among %d candidates", block, other, len(a.candidates))
	default:
		return err
	}

	err = a.transport.Authenticate(ctx, uint8(block), key, a.role, a.uid) //nolint:gosec // block < 256
	if errors.Is(err, ErrAuthFailed) {
		return &AuthError{Err: ErrAuthFailed, Block: block, Role: a.role, Mode: AutoMode}
	}
	return err
}
