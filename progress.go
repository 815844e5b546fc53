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
	"fmt"
	"io"
	"strings"
)

// progress writes the running traversal line:
//
//	Reading out 64 blocks |....xxxx........|
//	Done, 60 of 64 blocks read.
//
// One character per block, '.' when its sector succeeded, 'x' when it failed.
type progress struct {
	w io.Writer
}

func newProgress(w io.Writer) *progress {
	if w == nil {
		w = io.Discard
	}
	return &progress{w: w}
}

func (p *progress) begin(format string, blocks int) {
	_, _ = fmt.Fprintf(p.w, format, blocks)
}

func (p *progress) sector(blocks int, failed bool) {
	mark := "."
	if failed {
		mark = "x"
	}
	_, _ = io.WriteString(p.w, strings.Repeat(mark, blocks))
	if f, ok := p.w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}

func (p *progress) abort() {
	_, _ = io.WriteString(p.w, "!\n")
}

func (p *progress) end(verb string, res *Result) {
	_, _ = fmt.Fprintf(p.w, "|\nDone, %d of %d blocks %s.\n", res.Succeeded, res.Total, verb)
}
