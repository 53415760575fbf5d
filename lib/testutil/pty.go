// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"

	"github.com/creack/pty"
)

// OpenPTY allocates a PTY pair and returns the master and the slave.
// Both are closed on test cleanup; closing either earlier is fine.
func OpenPTY(t *testing.T) (master, slave *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatalf("allocating PTY pair: %v", err)
	}
	t.Cleanup(func() {
		_ = slave.Close()
		_ = master.Close()
	})
	return master, slave
}

// SetPTYSize sets the dimensions of a PTY from either side.
func SetPTYSize(t *testing.T, file *os.File, rows, columns uint16) {
	t.Helper()
	if err := pty.Setsize(file, &pty.Winsize{Rows: rows, Cols: columns}); err != nil {
		t.Fatalf("setting PTY size %dx%d: %v", columns, rows, err)
	}
}
