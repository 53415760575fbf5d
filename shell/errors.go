// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session setup failures so callers can tell a
// terminal problem from a dispatcher problem without parsing messages.
type ErrorKind string

const (
	// KindTerminal indicates the controlling terminal could not be
	// switched to raw mode (not a terminal, attributes unreadable).
	KindTerminal ErrorKind = "terminal"

	// KindDuplicate indicates a per-direction view of the PTY
	// descriptor could not be created.
	KindDuplicate ErrorKind = "duplicate"

	// KindRegister indicates a tap or the resize listener could not be
	// registered with the dispatcher.
	KindRegister ErrorKind = "register"

	// KindDispatcher indicates the dispatcher could not be constructed
	// or run.
	KindDispatcher ErrorKind = "dispatcher"

	// KindExec indicates the child branch could not replace its
	// process image.
	KindExec ErrorKind = "exec"
)

// Error is a categorized session error. It wraps the underlying cause
// so errors.Is and errors.As see the full chain.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is an *Error of the given kind anywhere in
// its chain.
func IsKind(err error, kind ErrorKind) bool {
	var sessionErr *Error
	if !errors.As(err, &sessionErr) {
		return false
	}
	return sessionErr.Kind == kind
}

var (
	// ErrAlreadyRegistered is returned when a source is registered with
	// a dispatcher twice.
	ErrAlreadyRegistered = errors.New("source already registered")

	// ErrStopped is returned when a stopped dispatcher is registered
	// with or run again.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrTapClosed is returned by Tap.Write after the dispatcher has
	// unregistered the tap.
	ErrTapClosed = errors.New("tap closed")
)
