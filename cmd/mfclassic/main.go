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

// Command mfclassic reads and writes MIFARE Classic cards and extracts the
// payload area of a 4K dump.
//
//	mfclassic [flags] read  a|b <dump.mfd> [<keys.mfd>]
//	mfclassic [flags] write a|b <dump.mfd> [<keys.mfd>]
//	mfclassic [flags] extract <dump.mfd> <payload.bin>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-mfclassic"
	"github.com/ZaparooProject/go-mfclassic/internal/config"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// options are the command line flags merged with the config file.
type options struct {
	device     string
	configPath string
	logDir     string
	extraKeys  []mfclassic.Key
	yes        bool
	debug      bool
	strictAuth bool
	bothRoles  bool
	confirm    bool
}

// app holds the process environment so tests can replace it.
type app struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
	open   func(ctx context.Context, device string) (reader, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, open: openReader}
	os.Exit(a.run(ctx, os.Args[1:]))
}

func (a *app) usage(fs *flag.FlagSet) {
	_, _ = fmt.Fprint(a.stderr, `Usage: mfclassic [flags] read|write a|b <dump.mfd> [<keys.mfd>]
       mfclassic [flags] extract <dump.mfd> <payload.bin>

  read      read the card into <dump.mfd>
  write     write <dump.mfd> to the card (block 0 is never written)
  extract   copy the 720 byte payload area of a 4K dump to <payload.bin>
  a|b       authenticate with key A or key B
  keys.mfd  dump holding the sector keys; without it well-known keys are tried

Flags:
`)
	fs.SetOutput(a.stderr)
	fs.PrintDefaults()
}

func (a *app) parseFlags(args []string) (*options, []string, error) {
	fs := flag.NewFlagSet("mfclassic", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &options{}
	fs.StringVar(&opts.device, "device", "", "reader as transport:path, e.g. uart:/dev/ttyUSB0 (auto-detect if empty)")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.logDir, "log", "", "directory for a session log file")
	fs.BoolVar(&opts.yes, "yes", false, "write without asking for confirmation")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug output")
	fs.BoolVar(&opts.strictAuth, "strict", false, "abort when a sector cannot be authenticated")
	fs.BoolVar(&opts.bothRoles, "both-roles", false, "also discover the key of the other role")

	if err := fs.Parse(args); err != nil {
		a.usage(fs)
		return nil, nil, err
	}

	opts.confirm = true
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, err
		}
		mergeConfig(fs, opts, cfg)
	}
	return opts, fs.Args(), nil
}

// mergeConfig fills the options the command line left unset from cfg.
func mergeConfig(fs *flag.FlagSet, opts *options, cfg *config.Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["device"] {
		opts.device = cfg.Device
	}
	if !set["log"] {
		opts.logDir = cfg.SessionLog
	}
	if !set["debug"] {
		opts.debug = cfg.Debug
	}
	if !set["strict"] {
		opts.strictAuth = cfg.StrictAuth
	}
	if !set["both-roles"] {
		opts.bothRoles = cfg.BothRoles
	}
	opts.extraKeys = cfg.Keys()
	opts.confirm = cfg.ShouldConfirmWrite()
}

func (a *app) run(ctx context.Context, args []string) int {
	opts, rest, err := a.parseFlags(args)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintf(a.stderr, "mfclassic: %v\n", err)
		}
		return exitFailure
	}

	if opts.debug {
		mfclassic.SetDebugEnabled(true)
	}
	if opts.logDir != "" {
		path, logErr := mfclassic.InitSessionLog(opts.logDir)
		if logErr != nil {
			_, _ = fmt.Fprintf(a.stderr, "mfclassic: %v\n", logErr)
			return exitFailure
		}
		defer func() { _ = mfclassic.CloseSessionLog() }()
		_, _ = fmt.Fprintf(a.stderr, "Session log: %s\n", path)
	}

	if len(rest) == 0 {
		a.usage(flag.NewFlagSet("mfclassic", flag.ContinueOnError))
		return exitFailure
	}

	switch rest[0] {
	case "extract":
		err = a.extract(rest[1:])
	case "read", "write":
		err = a.transfer(ctx, opts, rest[0], rest[1:])
	default:
		err = fmt.Errorf("unknown command %q", rest[0])
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "mfclassic: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func (*app) extract(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: extract takes <dump.mfd> <payload.bin>", mfclassic.ErrInvalidParameter)
	}
	return mfclassic.ExtractPayloadFile(args[0], args[1])
}

// transfer runs a read or a write. Inputs are checked before the reader is
// opened.
func (a *app) transfer(ctx context.Context, opts *options, cmd string, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: %s takes a|b <dump.mfd> [<keys.mfd>]", mfclassic.ErrInvalidParameter, cmd)
	}

	role, err := mfclassic.ParseKeyRole(args[0])
	if err != nil {
		return err
	}
	dumpPath := args[1]

	sessionOpts := []mfclassic.Option{
		mfclassic.WithKeyRole(role),
		mfclassic.WithStrictAuth(opts.strictAuth),
		mfclassic.WithBothRoles(opts.bothRoles),
		mfclassic.WithProgress(a.stdout),
	}
	for _, k := range opts.extraKeys {
		sessionOpts = append(sessionOpts, mfclassic.WithExtraKeys(mfclassic.NamedKey{Name: "config", Key: k}))
	}
	if len(args) == 3 {
		keys, loadErr := mfclassic.LoadDump(args[2])
		if loadErr != nil {
			return fmt.Errorf("key dump: %w", loadErr)
		}
		sessionOpts = append(sessionOpts, mfclassic.WithKeyDump(keys))
	}

	var src *mfclassic.Dump
	if cmd == "write" {
		src, err = mfclassic.LoadDump(dumpPath)
		if err != nil {
			return err
		}
	}

	r, err := a.open(ctx, opts.device)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	session, err := mfclassic.NewSession(ctx, r, sessionOpts...)
	if err != nil {
		return err
	}
	a.banner(session)

	if cmd == "read" {
		return a.read(ctx, session, dumpPath)
	}

	if opts.confirm && !opts.yes {
		ok, confirmErr := confirm(a.stdin, a.stdout,
			fmt.Sprintf("Write %s to the card?", dumpPath))
		if confirmErr != nil {
			return confirmErr
		}
		if !ok {
			return errors.New("write cancelled")
		}
	}
	if _, err := session.Write(ctx, src); err != nil {
		return err
	}
	return nil
}

func (a *app) banner(s *mfclassic.Session) {
	if !s.KeyDumpMatchesTag() {
		_, _ = fmt.Fprintf(a.stdout, "Expected MIFARE Classic %s card with UID: %s\n",
			s.KeyDumpCapacity(), mfclassic.ShortUID(s.KeyDumpUID()))
	}
	_, _ = fmt.Fprintf(a.stdout, "Found MIFARE Classic %s card with UID: %s\n",
		s.Capacity(), mfclassic.ShortUID(s.Tag().UID))
}

// read saves the dump only when the traversal finished. Sectors that failed
// stay zero in the saved file.
func (a *app) read(ctx context.Context, s *mfclassic.Session, path string) error {
	dump, res, err := s.Read(ctx)
	if err != nil {
		return err
	}
	if !res.Complete() {
		mfclassic.Debugf("sectors not read: %v", res.FailedSectors())
	}
	_, _ = fmt.Fprintf(a.stdout, "Writing data to file: %s ... ", path)
	if err := dump.Save(path); err != nil {
		_, _ = fmt.Fprintln(a.stdout)
		return fmt.Errorf("could not write to file %s: %w", path, err)
	}
	_, _ = fmt.Fprintln(a.stdout, "Done.")
	return nil
}
