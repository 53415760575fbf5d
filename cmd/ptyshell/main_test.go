// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ptyshell/lib/config"
	"github.com/bureau-foundation/ptyshell/lib/recording"
	"github.com/bureau-foundation/ptyshell/shell"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptyshell.yaml")
	if err := os.WriteFile(path, []byte("shell: /bin/bash\nrecording:\n  compression: lz4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var options flags
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.StringVar(&options.configPath, "config", "", "")
	flagSet.StringVar(&options.shell, "shell", "", "")
	flagSet.StringVar(&options.compression, "compression", "", "")
	flagSet.StringVar(&options.record, "record", "", "")
	if err := flagSet.Parse([]string{"--config", path, "--shell", "/bin/zsh", "--record", "/tmp/x.rec"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := loadConfig(options, flagSet)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Shell != "/bin/zsh" {
		t.Errorf("shell: got %s, want the flag value /bin/zsh", cfg.Shell)
	}
	if cfg.Recording.Compression != "lz4" {
		t.Errorf("compression: got %s, want the file value lz4", cfg.Recording.Compression)
	}
	if cfg.Recording.Path != "/tmp/x.rec" {
		t.Errorf("recording path: got %s", cfg.Recording.Path)
	}
}

func TestObserversRecordAndTranscribe(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()
	cfg := config.Default()
	cfg.Shell = "/bin/sh"
	cfg.Recording.Path = filepath.Join(directory, "session.rec")
	cfg.Transcript.Path = filepath.Join(directory, "session.txt")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	observers, err := startObservers(cfg, "observer-test", &shell.WindowSize{Rows: 24, Columns: 80}, logger)
	if err != nil {
		t.Fatalf("startObservers: %v", err)
	}
	observers.handler.OnOutput([]byte("\x1b[32mhello\x1b[0m\r\n"))
	observers.handler.OnShutdown()
	observers.close()
	observers.close()

	text, err := os.ReadFile(cfg.Transcript.Path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if string(text) != "hello\n" {
		t.Errorf("transcript: got %q, want %q", text, "hello\n")
	}

	reader, err := recording.OpenFile(cfg.Recording.Path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer reader.Close()
	header := reader.Header()
	if header.SessionID != "observer-test" || strings.Join(header.Command, " ") != "/bin/sh" {
		t.Errorf("header: got %+v", header)
	}
	event, err := reader.Next()
	if err != nil || event.Kind != recording.KindOutput {
		t.Fatalf("first event: got %+v, %v", event, err)
	}
}

func TestObserversRejectBadMetricsAddress(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Metrics.Listen = "256.0.0.1:bad"
	if _, err := startObservers(cfg, "id", nil, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("startObservers with an unusable listen address succeeded")
	}
}

func TestExitStatusError(t *testing.T) {
	t.Parallel()
	if got := exitStatus(3).Error(); got != "exit status 3" {
		t.Errorf("Error: got %q", got)
	}
}
