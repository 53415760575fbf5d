// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/ptyshell/lib/testutil"
)

func TestTapDrainMergesAndSplits(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	tap.Write([]byte("ab"))
	tap.Write([]byte("cdefg"))
	tap.Write([]byte("h"))

	chunks := tap.Drain(3)
	want := [][]byte{[]byte("abc"), []byte("def"), []byte("gh")}
	if len(chunks) != len(want) {
		t.Fatalf("chunk count: got %d, want %d (%q)", len(chunks), len(want), chunks)
	}
	for index := range want {
		if !bytes.Equal(chunks[index], want[index]) {
			t.Errorf("chunk %d: got %q, want %q", index, chunks[index], want[index])
		}
	}
}

func TestTapDrainEmpty(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	if chunks := tap.Drain(16); chunks != nil {
		t.Errorf("Drain on empty tap: got %q, want nil", chunks)
	}
}

func TestTapWriteCopiesData(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	buffer := []byte("original")
	tap.Write(buffer)
	copy(buffer, "XXXXXXXX")

	chunks := tap.Drain(64)
	if len(chunks) != 1 || string(chunks[0]) != "original" {
		t.Errorf("Drain after caller reused buffer: got %q, want [\"original\"]", chunks)
	}
}

func TestTapReadyCoalesces(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	for i := 0; i < 5; i++ {
		tap.Write([]byte("x"))
	}

	select {
	case <-tap.Ready():
	default:
		t.Fatal("Ready had no token after writes")
	}
	select {
	case <-tap.Ready():
		t.Fatal("Ready held more than one token")
	default:
	}
	if chunks := tap.Drain(64); len(chunks) != 1 || string(chunks[0]) != "xxxxx" {
		t.Errorf("Drain: got %q, want [\"xxxxx\"]", chunks)
	}
}

func TestTapDrainConsumesReadyToken(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	tap.Write([]byte("data"))
	tap.Drain(64)

	select {
	case <-tap.Ready():
		t.Fatal("Ready still signalled after Drain emptied the tap")
	default:
	}
}

func TestTapClosedRejectsWritesButKeepsPending(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	tap.Write([]byte("before"))
	tap.Close()

	if _, err := tap.Write([]byte("after")); !errors.Is(err, ErrTapClosed) {
		t.Errorf("Write after Close: got %v, want ErrTapClosed", err)
	}
	chunks := tap.Drain(64)
	if len(chunks) != 1 || string(chunks[0]) != "before" {
		t.Errorf("Drain after Close: got %q, want [\"before\"]", chunks)
	}
}

func TestTapEmptyWrite(t *testing.T) {
	t.Parallel()
	tap := NewTap()
	written, err := tap.Write(nil)
	if written != 0 || err != nil {
		t.Errorf("Write(nil): got (%d, %v), want (0, nil)", written, err)
	}
	select {
	case <-tap.Ready():
		t.Error("empty write signalled Ready")
	default:
	}
}

// drainUntil consumes tap the way the dispatcher loop does, selecting on
// Ready and draining, until want bytes have arrived. A write whose
// wakeup was lost leaves Ready silent and fails the test.
func drainUntil(t *testing.T, tap *Tap, want int, context string) []byte {
	t.Helper()
	var received []byte
	for len(received) < want {
		testutil.RequireReceive(t, tap.Ready(), 5*time.Second,
			"%s: %d of %d bytes delivered", context, len(received), want)
		for _, chunk := range tap.Drain(128) {
			received = append(received, chunk...)
		}
	}
	return received
}

func TestTapConcurrentWriterAndDrainer(t *testing.T) {
	t.Parallel()
	const writes = 20000
	tap := NewTap()

	var want bytes.Buffer
	for index := 0; index < writes; index++ {
		fmt.Fprintf(&want, "%d,", index)
	}

	go func() {
		for index := 0; index < writes; index++ {
			tap.Write([]byte(fmt.Sprintf("%d,", index)))
		}
	}()

	got := drainUntil(t, tap, want.Len(), "streaming writer")
	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("delivered stream differs from written stream (got %d bytes, want %d)", len(got), want.Len())
	}
}

func TestTapWriteDuringDrainKeepsWakeup(t *testing.T) {
	t.Parallel()
	for round := 0; round < 2000; round++ {
		tap := NewTap()
		tap.Write([]byte("a"))
		<-tap.Ready()

		start := make(chan struct{})
		written := make(chan struct{})
		go func() {
			<-start
			tap.Write([]byte("b"))
			close(written)
		}()
		close(start)
		received := tap.Drain(128)
		<-written

		var total []byte
		for _, chunk := range received {
			total = append(total, chunk...)
		}
		if len(total) < 2 {
			total = append(total, drainUntil(t, tap, 2-len(total), fmt.Sprintf("round %d", round))...)
		}
		if string(total) != "ab" {
			t.Fatalf("round %d: got %q, want %q", round, total, "ab")
		}
	}
}
