// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// Read sizes of the two pumps.
const (
	inputReadSize  = inputChunkSize
	outputReadSize = outputChunkSize
)

// flusher is implemented by buffered stdout replacements.
type flusher interface {
	Flush() error
}

// pumpInput copies real input to the PTY, then to the input tap, until
// input ends or the child side goes away. A nil return is the expected
// end of the pump; any other error is fatal to the session.
//
// A zero-length read with no error is treated like end of input rather
// than re-issued forever.
func pumpInput(input io.Reader, pty io.Writer, tap *Tap) error {
	buffer := make([]byte, inputReadSize)
	for {
		bytesRead, readErr := input.Read(buffer)
		if bytesRead > 0 {
			chunk := buffer[:bytesRead]
			if _, err := pty.Write(chunk); err != nil {
				if isEndOfPTY(err) {
					return nil
				}
				return fmt.Errorf("write to PTY: %w", err)
			}
			if _, err := tap.Write(chunk); err != nil {
				if errors.Is(err, ErrTapClosed) {
					return nil
				}
				return fmt.Errorf("write to input tap: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read input: %w", readErr)
		}
		if bytesRead == 0 {
			return nil
		}
	}
}

// pumpOutput copies the PTY to real output, flushing after each chunk,
// then to the output tap. It returns nil at end of stream: the caller
// turns that into the session's single shutdown notification.
func pumpOutput(pty io.Reader, output io.Writer, tap *Tap) error {
	buffer := make([]byte, outputReadSize)
	for {
		bytesRead, readErr := pty.Read(buffer)
		if bytesRead > 0 {
			chunk := buffer[:bytesRead]
			if _, err := output.Write(chunk); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			if flushable, ok := output.(flusher); ok {
				if err := flushable.Flush(); err != nil {
					return fmt.Errorf("flush output: %w", err)
				}
			}
			if _, err := tap.Write(chunk); err != nil {
				return fmt.Errorf("write to output tap: %w", err)
			}
		}
		if readErr != nil {
			if isEndOfPTY(readErr) {
				return nil
			}
			return fmt.Errorf("read PTY: %w", readErr)
		}
		if bytesRead == 0 {
			return nil
		}
	}
}

// isEndOfPTY reports whether err means the child side of the PTY is
// gone. Linux reports EIO on the master once every slave descriptor is
// closed; other platforms report EOF.
func isEndOfPTY(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed)
}
