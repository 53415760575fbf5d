// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ptyshell-replay plays a ptyshell recording back to the terminal with
// its original timing, or dumps its events as text.
//
// Usage:
//
//	ptyshell-replay [--speed N] [--max-idle D] [--identity FILE] [--dump] <recording>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ptyshell/lib/process"
	"github.com/bureau-foundation/ptyshell/lib/recording"
	"github.com/bureau-foundation/ptyshell/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, output io.Writer) error {
	var (
		speed        float64
		maxIdle      time.Duration
		identityPath string
		dump         bool
		showVersion  bool
	)
	flagSet := pflag.NewFlagSet("ptyshell-replay", pflag.ContinueOnError)
	flagSet.Float64Var(&speed, "speed", 1, "playback speed multiplier")
	flagSet.DurationVar(&maxIdle, "max-idle", 0, "cap every pause at this duration (0: no cap)")
	flagSet.StringVar(&identityPath, "identity", "", "age identity file for encrypted recordings")
	flagSet.BoolVar(&dump, "dump", false, "print events as text instead of playing them")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("ptyshell-replay")
		return nil
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: ptyshell-replay [flags] <recording>")
	}
	if speed <= 0 {
		return fmt.Errorf("--speed must be positive, got %v", speed)
	}

	identities, err := loadIdentities(identityPath)
	if err != nil {
		return err
	}
	reader, err := recording.OpenFile(flagSet.Arg(0), identities...)
	if err != nil {
		return err
	}
	defer reader.Close()

	if dump {
		return dumpEvents(reader, output)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := recording.Replay(ctx, reader, output, recording.ReplayOptions{Speed: speed, MaxIdle: maxIdle}); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

func loadIdentities(path string) ([]age.Identity, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer file.Close()
	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	return identities, nil
}

// dumpEvents prints the header and one line per event. Reaching the
// end verifies the recording's digest.
func dumpEvents(reader *recording.Reader, output io.Writer) error {
	header := reader.Header()
	fmt.Fprintf(output, "session %s started %s (compression %s, encrypted %v)\n",
		header.SessionID, header.StartedAt.Format(time.RFC3339), reader.Compression(), reader.Encrypted())
	if len(header.Command) > 0 {
		fmt.Fprintf(output, "command %q\n", header.Command)
	}
	if header.Size != nil {
		fmt.Fprintf(output, "size %s\n", header.Size.WindowSize())
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			end, _ := reader.End()
			fmt.Fprintf(output, "%10.3fs end (digest verified)\n", end.Offset.Seconds())
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(output, "%10.3fs %-6s %s\n", event.Offset.Seconds(), event.Kind, describe(event))
	}
}

func describe(event recording.Event) string {
	switch event.Kind {
	case recording.KindInput, recording.KindOutput:
		const preview = 60
		data := event.Data
		suffix := ""
		if len(data) > preview {
			data, suffix = data[:preview], "..."
		}
		return fmt.Sprintf("%4d bytes %s%s", len(event.Data), strconv.Quote(string(data)), suffix)
	case recording.KindResize:
		if event.Size == nil {
			return ""
		}
		return event.Size.WindowSize().String()
	default:
		return ""
	}
}
