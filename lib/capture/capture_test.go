// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/ptyshell/lib/testutil"
	"github.com/bureau-foundation/ptyshell/shell"
)

func TestRingBufferWrapAround(t *testing.T) {
	t.Parallel()
	ring := newRingBuffer(10)

	ring.write([]byte("abcdefg"))
	ring.write([]byte("hijklmno"))

	got, start := ring.since(0)
	if !bytes.Equal(got, []byte("fghijklmno")) {
		t.Errorf("since(0) after wrap: got %q, want %q", got, "fghijklmno")
	}
	if start != 5 {
		t.Errorf("since(0) start: got %d, want 5", start)
	}
}

func TestRingBufferOversizedWrite(t *testing.T) {
	t.Parallel()
	ring := newRingBuffer(4)

	ring.write([]byte("xy"))
	ring.write([]byte("0123456789"))

	got, start := ring.since(0)
	if !bytes.Equal(got, []byte("6789")) {
		t.Errorf("since(0): got %q, want %q", got, "6789")
	}
	if start != 8 {
		t.Errorf("start: got %d, want 8", start)
	}

	ring.write([]byte("ab"))
	got, _ = ring.since(10)
	if !bytes.Equal(got, []byte("89ab")) {
		t.Errorf("since(10): got %q, want %q", got, "89ab")
	}
}

func TestRingBufferSinceCurrentOffset(t *testing.T) {
	t.Parallel()
	ring := newRingBuffer(16)
	ring.write([]byte("data"))

	got, start := ring.since(4)
	if got != nil {
		t.Errorf("since(current): got %q, want nil", got)
	}
	if start != 4 {
		t.Errorf("since(current) start: got %d, want 4", start)
	}
}

func TestCaptureRecordsHooks(t *testing.T) {
	t.Parallel()
	observer := New(64)

	observer.OnInput([]byte("ls\r"))
	observer.OnOutput([]byte("file-a  file-b\r\n"))
	observer.OnResize(shell.WindowSize{Rows: 24, Columns: 80})
	observer.OnShutdown()

	if got := string(observer.Input()); got != "ls\r" {
		t.Errorf("Input: got %q, want %q", got, "ls\r")
	}
	if got := string(observer.Output()); got != "file-a  file-b\r\n" {
		t.Errorf("Output: got %q", got)
	}
	resizes := observer.Resizes()
	if len(resizes) != 1 || resizes[0] != (shell.WindowSize{Rows: 24, Columns: 80}) {
		t.Errorf("Resizes: got %v", resizes)
	}
	if observer.Shutdowns() != 1 {
		t.Errorf("Shutdowns: got %d, want 1", observer.Shutdowns())
	}
	testutil.RequireClosed(t, observer.Done(), time.Second, "Done after OnShutdown")
}

func TestCaptureOutputSince(t *testing.T) {
	t.Parallel()
	observer := New(64)
	observer.OnOutput([]byte("first "))
	_, _, next := observer.OutputSince(0)
	observer.OnOutput([]byte("second"))

	data, start, end := observer.OutputSince(next)
	if string(data) != "second" {
		t.Errorf("OutputSince(%d): got %q, want %q", next, data, "second")
	}
	if start != next || end != 12 {
		t.Errorf("offsets: got start=%d end=%d, want start=%d end=12", start, end, next)
	}
}

func TestWaitForSeesLaterOutput(t *testing.T) {
	t.Parallel()
	observer := New(0)

	result := make(chan error, 1)
	go func() {
		result <- observer.WaitFor(context.Background(), "ready>")
	}()

	observer.OnOutput([]byte("booting...\r\n"))
	observer.OnOutput([]byte("rea"))
	observer.OnOutput([]byte("dy> "))

	if err := testutil.RequireReceive(t, result, 5*time.Second, "WaitFor"); err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
}

func TestWaitForSessionEnded(t *testing.T) {
	t.Parallel()
	observer := New(0)
	observer.OnOutput([]byte("bye"))
	observer.OnShutdown()

	err := observer.WaitFor(context.Background(), "never")
	if !errors.Is(err, ErrSessionEnded) {
		t.Errorf("WaitFor after shutdown: got %v, want ErrSessionEnded", err)
	}
	if err := observer.WaitFor(context.Background(), "bye"); err != nil {
		t.Errorf("WaitFor existing text after shutdown: %v", err)
	}
}

func TestWaitForContextCancelled(t *testing.T) {
	t.Parallel()
	observer := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := observer.WaitFor(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitFor with cancelled context: got %v, want context.Canceled", err)
	}
}
