// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// TerminalMode holds the attributes a terminal had before EnterRaw
// switched it to raw mode. The attributes are captured once; Restore
// may be called any number of times and always reapplies that capture.
type TerminalMode struct {
	terminal *os.File
	saved    *term.State

	mutex    sync.Mutex
	restored bool
}

// EnterRaw captures the current attributes of terminal and switches it
// to raw mode: no canonical line editing, no echo, no signal-generating
// control characters, no output post-processing. Every byte typed then
// reaches the child's PTY verbatim, and the child's own line discipline
// handles Ctrl-C and friends.
func EnterRaw(terminal *os.File) (*TerminalMode, error) {
	if terminal == nil {
		return nil, newError(KindTerminal, "no controlling terminal")
	}
	fd := int(terminal.Fd())
	if !term.IsTerminal(fd) {
		return nil, newError(KindTerminal, "%s is not a terminal", terminal.Name())
	}
	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, newError(KindTerminal, "set %s raw mode: %w", terminal.Name(), err)
	}
	return &TerminalMode{terminal: terminal, saved: saved}, nil
}

// Restore reapplies the attributes captured by EnterRaw.
func (mode *TerminalMode) Restore() error {
	mode.mutex.Lock()
	defer mode.mutex.Unlock()

	if err := term.Restore(int(mode.terminal.Fd()), mode.saved); err != nil {
		return fmt.Errorf("restore %s attributes: %w", mode.terminal.Name(), err)
	}
	mode.restored = true
	return nil
}

// Restored reports whether Restore has succeeded at least once.
func (mode *TerminalMode) Restored() bool {
	mode.mutex.Lock()
	defer mode.mutex.Unlock()
	return mode.restored
}

// IsTerminal reports whether file refers to a terminal.
func IsTerminal(file *os.File) bool {
	return file != nil && term.IsTerminal(int(file.Fd()))
}
