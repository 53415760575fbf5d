// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for ptyshell binaries:
// reporting a fatal error before the structured logger exists, and
// turning a child's wait status into the wrapper's own exit code.
package process
