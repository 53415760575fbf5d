// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shell bridges the host's terminal to a child process running
// behind a PTY while letting observers see every byte and every
// terminal-size change without altering the data path.
//
// A [Session] owns one child. [Session.Proxy] switches the controlling
// terminal to raw mode ([EnterRaw]) and runs [Session.ProxyRaw], which
// starts two forwarding goroutines and a [Dispatcher]:
//
//   - The input pump copies real stdin to the PTY in chunks of at most
//     128 bytes, then duplicates each chunk into the input [Tap].
//   - The output pump copies the PTY to real stdout in chunks of at most
//     10 KiB, flushes, then duplicates each chunk into the output Tap.
//     End of stream on the PTY raises exactly one shutdown notification,
//     which is the only way a session ends.
//   - The dispatcher runs on the caller's goroutine. It drains taps,
//     turns SIGWINCH into a query of the terminal size and an apply to
//     the PTY, and invokes the [Handler] hooks. Handlers are only ever
//     called from this goroutine.
//
// Taps never apply back-pressure: a slow handler delays its own view of
// the stream, never the stream itself. Bytes always reach their primary
// destination before their copy reaches a handler.
//
// Observers implement [Handler] directly (embedding [NopHandler] for the
// hooks they do not need) or are assembled from closures with
// [NewCallbackHandler]. [MultiHandler] fans a session out to several
// observers.
//
// PTY allocation and child creation are not part of this package; any
// value satisfying [Child] works. See lib/ptyproc for the creack/pty
// implementation used by cmd/ptyshell.
package shell
