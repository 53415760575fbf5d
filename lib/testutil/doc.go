// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for ptyshell packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a test that would otherwise hang on a stuck goroutine
// fails with a message instead. They are the only place tests use
// wall-clock timeouts.
//
// [OpenPTY] allocates a PTY pair that stands in for a terminal: the
// slave side behaves like a user's controlling terminal (raw mode,
// TIOCGWINSZ), the master side lets the test drive it. Both ends are
// closed when the test completes.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
