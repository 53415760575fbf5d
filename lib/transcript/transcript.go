// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript turns a session's output into a plain-text log: one
// line per terminal line, escape sequences removed, carriage-return
// overwrites and backspaces resolved the way a terminal would display
// them. It is a shell.Handler.
package transcript

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ptyshell/lib/clock"
	"github.com/bureau-foundation/ptyshell/shell"
)

// maxPending bounds a line that never ends (a full-screen program
// redrawing without newlines). Longer pending output is flushed as a
// line of its own, cut before any unfinished escape sequence or rune.
const maxPending = 64 * 1024

// Options configures a Transcript.
type Options struct {
	// Timestamps prefixes each line with the wall-clock time it was
	// completed, in RFC 3339 with milliseconds.
	Timestamps bool

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger receives write failures. Default slog.Default().
	Logger *slog.Logger
}

// Transcript writes cleaned output lines to a destination.
type Transcript struct {
	destination io.Writer
	options     Options

	mutex   sync.Mutex
	pending []byte
	err     error
	lines   int
}

// New returns a Transcript writing to destination. The transcript does
// not close destination.
func New(destination io.Writer, options Options) *Transcript {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Transcript{destination: destination, options: options}
}

func (transcript *Transcript) OnInput([]byte) {}

func (transcript *Transcript) OnResize(shell.WindowSize) {}

func (transcript *Transcript) OnOutput(data []byte) {
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()

	transcript.pending = append(transcript.pending, data...)
	for {
		newline := bytes.IndexByte(transcript.pending, '\n')
		if newline < 0 {
			break
		}
		transcript.emit(transcript.pending[:newline])
		transcript.pending = transcript.pending[newline+1:]
	}
	if len(transcript.pending) > maxPending {
		cut := flushBoundary(transcript.pending)
		transcript.emit(transcript.pending[:cut])
		transcript.pending = append([]byte(nil), transcript.pending[cut:]...)
	}
	// Keep the backing array from growing without bound.
	if len(transcript.pending) == 0 {
		transcript.pending = nil
	}
}

// OnShutdown writes any unterminated final line.
func (transcript *Transcript) OnShutdown() {
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	if len(transcript.pending) > 0 {
		transcript.emit(transcript.pending)
		transcript.pending = nil
	}
}

// Err returns the first write error.
func (transcript *Transcript) Err() error {
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	return transcript.err
}

// Lines returns how many lines have been written.
func (transcript *Transcript) Lines() int {
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	return transcript.lines
}

func (transcript *Transcript) emit(raw []byte) {
	if transcript.err != nil {
		return
	}
	line := Clean(string(raw))
	if transcript.options.Timestamps {
		line = transcript.options.Clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00") + " " + line
	}
	if _, err := io.WriteString(transcript.destination, line+"\n"); err != nil {
		transcript.err = fmt.Errorf("writing transcript: %w", err)
		transcript.options.Logger.Error("transcript write failed; further lines dropped", "error", err, "lines_written", transcript.lines)
		return
	}
	transcript.lines++
}

// flushBoundary returns where an overlong pending line may be cut so
// that an escape sequence or UTF-8 rune still being received stays
// together for the next line. A tail that would keep everything is
// flushed whole.
func flushBoundary(pending []byte) int {
	cut := len(pending)
	if escape := bytes.LastIndexByte(pending, 0x1b); escape >= 0 && !escapeComplete(pending[escape:]) {
		cut = escape
	}
	start := cut - 1
	for start > 0 && cut-start < utf8.UTFMax && !utf8.RuneStart(pending[start]) {
		start--
	}
	if start >= 0 && !utf8.FullRune(pending[start:cut]) {
		cut = start
	}
	if cut == 0 {
		return len(pending)
	}
	return cut
}

// escapeComplete reports whether sequence, which starts with ESC, has
// received its final byte.
func escapeComplete(sequence []byte) bool {
	if len(sequence) < 2 {
		return false
	}
	body := sequence[2:]
	switch sequence[1] {
	case '[':
		for _, character := range body {
			if character >= 0x40 && character <= 0x7e {
				return true
			}
		}
		return false
	case ']', 'P', '_', '^', 'X':
		// String sequences end with BEL or ST (ESC \). The ESC of an ST
		// would itself be the last ESC, so only BEL is seen here.
		return bytes.IndexByte(body, 0x07) >= 0
	}
	// nF escapes carry intermediates (0x20-0x2f) before the final byte.
	for _, character := range sequence[1:] {
		if character < 0x20 || character > 0x2f {
			return true
		}
	}
	return false
}

// Clean renders one line of raw terminal output as the text a terminal
// would leave on screen: escape sequences are dropped, a carriage
// return moves back to the start of the line so later text overwrites
// earlier text, and a backspace moves back one cell.
func Clean(raw string) string {
	text := ansi.Strip(strings.TrimRight(raw, "\r"))

	var cells []rune
	cursor := 0
	for _, character := range text {
		switch {
		case character == '\r':
			cursor = 0
		case character == '\b':
			if cursor > 0 {
				cursor--
			}
		case character == '\t':
			next := (cursor/8 + 1) * 8
			for cursor < next {
				cells = put(cells, cursor, ' ')
				cursor++
			}
		case character < ' ' || character == 0x7f:
			// Bell and other controls leave nothing on screen.
		default:
			cells = put(cells, cursor, character)
			cursor++
		}
	}
	return strings.TrimRight(string(cells), " ")
}

func put(cells []rune, position int, character rune) []rune {
	for len(cells) <= position {
		cells = append(cells, ' ')
	}
	cells[position] = character
	return cells
}
