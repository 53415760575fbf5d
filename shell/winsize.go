// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// WindowSize is a terminal's dimensions. Field order matches struct
// winsize (ws_row, ws_col, ws_xpixel, ws_ypixel) so values round-trip
// through TIOCGWINSZ/TIOCSWINSZ unchanged.
type WindowSize struct {
	Rows        uint16
	Columns     uint16
	PixelWidth  uint16
	PixelHeight uint16
}

func (size WindowSize) String() string {
	return fmt.Sprintf("%dx%d", size.Columns, size.Rows)
}

// QuerySize reads the current dimensions of terminal with TIOCGWINSZ.
func QuerySize(terminal *os.File) (WindowSize, error) {
	winsize, err := unix.IoctlGetWinsize(int(terminal.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return WindowSize{}, fmt.Errorf("query window size of %s (TIOCGWINSZ): %w", terminal.Name(), err)
	}
	return WindowSize{
		Rows:        winsize.Row,
		Columns:     winsize.Col,
		PixelWidth:  winsize.Xpixel,
		PixelHeight: winsize.Ypixel,
	}, nil
}

// ApplySize sets the dimensions of pty with TIOCSWINSZ. The kernel
// delivers SIGWINCH to the foreground process group on the slave side
// only when the size actually changes, so applying the same size twice
// is not observable by the child.
func ApplySize(pty *os.File, size WindowSize) error {
	winsize := &unix.Winsize{
		Row:    size.Rows,
		Col:    size.Columns,
		Xpixel: size.PixelWidth,
		Ypixel: size.PixelHeight,
	}
	if err := unix.IoctlSetWinsize(int(pty.Fd()), unix.TIOCSWINSZ, winsize); err != nil {
		return fmt.Errorf("apply window size %s to %s (TIOCSWINSZ): %w", size, pty.Name(), err)
	}
	return nil
}
