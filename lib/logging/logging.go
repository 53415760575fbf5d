// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the host's slog.Logger. Output to a terminal
// uses slog.TextHandler for people; anything else (a file, a pipe, CI)
// uses slog.JSONHandler for machines.
//
// While a session is proxied the terminal is in raw mode and a bare
// "\n" no longer returns the cursor to column zero, so text output to
// a terminal is written with "\r\n" line endings.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Format selects the handler.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format defaults to FormatAuto.
	Format Format

	// File, when set, receives logs instead of Writer. It is opened for
	// append and created with mode 0600.
	File string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New returns a logger and a closer for any file it opened. The closer
// is never nil.
func New(options Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, nil, err
	}

	var writer io.Writer = os.Stderr
	if options.Writer != nil {
		writer = options.Writer
	}
	var closer io.Closer = nopCloser{}
	if options.File != "" {
		if err := os.MkdirAll(filepath.Dir(options.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		file, err := os.OpenFile(options.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writer, closer = file, file
	}

	terminal := isTerminal(writer)
	format := options.Format
	switch format {
	case "", FormatAuto:
		format = FormatJSON
		if terminal {
			format = FormatText
		}
	case FormatText, FormatJSON:
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q (valid: auto, text, json)", format)
	}

	if terminal {
		writer = crlfWriter{writer}
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(writer, handlerOptions)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOptions)
	}
	return slog.New(handler), closer, nil
}

// ParseLevel accepts debug, info, warn, and error in any case. Empty
// means info.
func ParseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", name)
	}
	return level, nil
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// crlfWriter expands "\n" to "\r\n". slog handlers emit one record per
// Write, so a record is never split across calls.
type crlfWriter struct{ destination io.Writer }

func (writer crlfWriter) Write(data []byte) (int, error) {
	expanded := bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
	if _, err := writer.destination.Write(expanded); err != nil {
		return 0, err
	}
	return len(data), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
