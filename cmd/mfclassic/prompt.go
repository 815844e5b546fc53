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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errCancelled = errors.New("cancelled")

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// confirm asks a yes/no question. On a terminal a single key answers it,
// otherwise a line is read from in.
func confirm(in *os.File, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)

	if !isTerminal(in) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read answer: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	buf := make([]byte, 1)
	if _, err := in.Read(buf); err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	_, _ = fmt.Fprint(out, "\r\n")
	return buf[0] == 'y' || buf[0] == 'Y', nil
}

type menuAction int

const (
	menuNone menuAction = iota
	menuMove
	menuSelect
	menuCancel
)

// menuKey applies one key press read in raw mode to the selection.
func menuKey(key []byte, selected, count int) (int, menuAction) {
	switch {
	case len(key) == 1 && (key[0] == '\r' || key[0] == '\n'):
		return selected, menuSelect
	case len(key) == 1 && (key[0] == 0x03 || key[0] == 'q'):
		return selected, menuCancel
	case len(key) == 3 && key[0] == 0x1B && key[1] == '[':
		switch {
		case key[2] == 'A' && selected > 0:
			return selected - 1, menuMove
		case key[2] == 'B' && selected < count-1:
			return selected + 1, menuMove
		}
	}
	return selected, menuNone
}

// selectMenu shows items with an arrow-key cursor and returns the index
// chosen with Enter.
func selectMenu(in *os.File, out io.Writer, prompt string, items []string) (int, error) {
	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return 0, fmt.Errorf("set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	_, _ = fmt.Fprintf(out, "%s\r\n", prompt)
	renderMenu(out, items, 0)

	selected := 0
	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("read key: %w", err)
		}

		var action menuAction
		selected, action = menuKey(buf[:n], selected, len(items))
		switch action {
		case menuSelect:
			_, _ = fmt.Fprint(out, "\r\n")
			return selected, nil
		case menuCancel:
			_, _ = fmt.Fprint(out, "\r\n")
			return 0, errCancelled
		case menuMove:
			// Move the cursor back to the first item and redraw.
			_, _ = fmt.Fprintf(out, "\x1b[%dA", len(items))
			renderMenu(out, items, selected)
		case menuNone:
		}
	}
}

func renderMenu(out io.Writer, items []string, selected int) {
	for i, item := range items {
		cursor := "  "
		if i == selected {
			cursor = "> "
		}
		_, _ = fmt.Fprintf(out, "\r\x1b[K%s%s\r\n", cursor, item)
	}
}
