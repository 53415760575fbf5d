// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/ptyshell/lib/testutil"
)

// eventLog is a Handler that records every hook call. It is locked
// because tests read it from the test goroutine after Run returns.
type eventLog struct {
	mutex      sync.Mutex
	events     []string
	input      bytes.Buffer
	output     bytes.Buffer
	chunks     []int
	resizes    []WindowSize
	shutdowns  int
	goroutines map[uint64]bool

	resized chan WindowSize
}

func newEventLog() *eventLog {
	return &eventLog{goroutines: map[uint64]bool{}, resized: make(chan WindowSize, 16)}
}

func (log *eventLog) note(event string) {
	log.events = append(log.events, event)
	log.goroutines[goroutineID()] = true
}

func (log *eventLog) OnInput(data []byte) {
	log.mutex.Lock()
	defer log.mutex.Unlock()
	log.note("input")
	log.input.Write(data)
}

func (log *eventLog) OnOutput(data []byte) {
	log.mutex.Lock()
	defer log.mutex.Unlock()
	log.note("output")
	log.output.Write(data)
	log.chunks = append(log.chunks, len(data))
}

func (log *eventLog) OnResize(size WindowSize) {
	log.mutex.Lock()
	log.note("resize")
	log.resizes = append(log.resizes, size)
	log.mutex.Unlock()
	log.resized <- size
}

func (log *eventLog) OnShutdown() {
	log.mutex.Lock()
	defer log.mutex.Unlock()
	log.note("shutdown")
	log.shutdowns++
}

// goroutineID parses the current goroutine's ID from its stack header
// ("goroutine 42 [running]:").
func goroutineID() uint64 {
	buffer := make([]byte, 64)
	buffer = buffer[:runtime.Stack(buffer, false)]
	fields := strings.Fields(string(buffer))
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(fields[1], 10, 64)
	return id
}

// lockedBuffer is a log destination readable while the dispatcher
// goroutine writes to it.
type lockedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (buffer *lockedBuffer) Write(data []byte) (int, error) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.buffer.Write(data)
}

func (buffer *lockedBuffer) String() string {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.buffer.String()
}

func runDispatcher(t *testing.T, dispatcher *Dispatcher) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- dispatcher.Run() }()
	return result
}

func TestDispatcherDeliversInOrderThenShutsDown(t *testing.T) {
	t.Parallel()
	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)
	outputTap := NewTap()
	if err := dispatcher.RegisterTap(SourceOutput, outputTap); err != nil {
		t.Fatalf("RegisterTap: %v", err)
	}

	result := runDispatcher(t, dispatcher)
	for _, chunk := range []string{"one ", "two ", "three"} {
		outputTap.Write([]byte(chunk))
	}
	dispatcher.Notify(NotifyShutdown)

	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := log.output.String(); got != "one two three" {
		t.Errorf("output: got %q, want %q", got, "one two three")
	}
	if last := log.events[len(log.events)-1]; last != "shutdown" {
		t.Errorf("last event: got %q, want shutdown", last)
	}
	if log.shutdowns != 1 {
		t.Errorf("OnShutdown calls: got %d, want 1", log.shutdowns)
	}
	if dispatcher.State() != StateStopped {
		t.Errorf("State after Run: got %s, want stopped", dispatcher.State())
	}
}

func TestDispatcherShutdownDrainsBothTaps(t *testing.T) {
	t.Parallel()
	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)
	inputTap, outputTap := NewTap(), NewTap()
	dispatcher.RegisterTap(SourceInput, inputTap)
	dispatcher.RegisterTap(SourceOutput, outputTap)

	// Everything is queued before the loop starts, so the loop may see
	// shutdown first. Nothing queued may be lost.
	inputTap.Write([]byte("typed"))
	outputTap.Write([]byte("printed"))
	dispatcher.Notify(NotifyShutdown)

	if err := dispatcher.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := log.input.String(); got != "typed" {
		t.Errorf("input: got %q, want %q", got, "typed")
	}
	if got := log.output.String(); got != "printed" {
		t.Errorf("output: got %q, want %q", got, "printed")
	}
	if last := log.events[len(log.events)-1]; last != "shutdown" {
		t.Errorf("last event: got %q, want shutdown", last)
	}
	if _, err := outputTap.Write([]byte("late")); !errors.Is(err, ErrTapClosed) {
		t.Errorf("tap write after stop: got %v, want ErrTapClosed", err)
	}
}

func TestDispatcherChunksLargeOutput(t *testing.T) {
	t.Parallel()
	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)
	outputTap := NewTap()
	dispatcher.RegisterTap(SourceOutput, outputTap)

	payload := bytes.Repeat([]byte("0123456789"), 2500)
	outputTap.Write(payload)
	dispatcher.Notify(NotifyShutdown)
	if err := dispatcher.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !bytes.Equal(log.output.Bytes(), payload) {
		t.Errorf("output: got %d bytes, want %d identical bytes", log.output.Len(), len(payload))
	}
	for index, size := range log.chunks {
		if size > outputChunkSize {
			t.Errorf("chunk %d: %d bytes exceeds %d", index, size, outputChunkSize)
		}
	}
}

func TestDispatcherShutdownExactlyOnce(t *testing.T) {
	t.Parallel()
	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)

	var group sync.WaitGroup
	for i := 0; i < 8; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			dispatcher.Notify(NotifyShutdown)
		}()
	}
	group.Wait()

	if err := dispatcher.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	dispatcher.Notify(NotifyShutdown)
	if log.shutdowns != 1 {
		t.Errorf("OnShutdown calls: got %d, want 1", log.shutdowns)
	}
}

func TestDispatcherHooksRunOnOneGoroutine(t *testing.T) {
	t.Parallel()
	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)
	inputTap, outputTap := NewTap(), NewTap()
	dispatcher.RegisterTap(SourceInput, inputTap)
	dispatcher.RegisterTap(SourceOutput, outputTap)

	result := runDispatcher(t, dispatcher)
	var group sync.WaitGroup
	group.Add(2)
	go func() {
		defer group.Done()
		for i := 0; i < 50; i++ {
			inputTap.Write([]byte("i"))
		}
	}()
	go func() {
		defer group.Done()
		for i := 0; i < 50; i++ {
			outputTap.Write([]byte("o"))
		}
	}()
	group.Wait()
	dispatcher.Notify(NotifyShutdown)

	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log.goroutines) != 1 {
		t.Errorf("hooks ran on %d goroutines, want 1", len(log.goroutines))
	}
	if log.input.Len() != 50 || log.output.Len() != 50 {
		t.Errorf("delivered: got %d input and %d output bytes, want 50 each", log.input.Len(), log.output.Len())
	}
}

func TestDispatcherResizeCoalesces(t *testing.T) {
	t.Parallel()
	master, slave := testutil.OpenPTY(t)
	testutil.SetPTYSize(t, slave, 40, 120)

	log := newEventLog()
	dispatcher := NewDispatcher(log, nil)
	if err := dispatcher.RegisterResize(slave, master); err != nil {
		t.Fatalf("RegisterResize: %v", err)
	}

	for i := 0; i < 3; i++ {
		dispatcher.Notify(NotifyResize)
	}
	result := runDispatcher(t, dispatcher)

	size := testutil.RequireReceive(t, log.resized, 5*time.Second, "first OnResize")
	if size.Rows != 40 || size.Columns != 120 {
		t.Errorf("OnResize size: got %s, want 120x40", size)
	}
	dispatcher.Notify(NotifyShutdown)
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log.resizes) != 1 {
		t.Errorf("resize cycles: got %d, want 1", len(log.resizes))
	}

	applied, err := QuerySize(master)
	if err != nil {
		t.Fatalf("QuerySize(master): %v", err)
	}
	if applied.Rows != 40 || applied.Columns != 120 {
		t.Errorf("PTY size: got %s, want 120x40", applied)
	}
}

func TestDispatcherResizeQueryFailureSkipsHook(t *testing.T) {
	t.Parallel()
	master, _ := testutil.OpenPTY(t)
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer reader.Close()
	defer writer.Close()

	logged := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logged, nil))
	log := newEventLog()
	dispatcher := NewDispatcher(log, logger)
	dispatcher.RegisterResize(reader, master)

	// A notification handled before shutdown is processed in the same
	// Run: wait for the loop to consume the token by observing the
	// warning, then shut down.
	dispatcher.Notify(NotifyResize)
	result := runDispatcher(t, dispatcher)
	deadline := time.Now().Add(5 * time.Second)
	for {
		done := strings.Contains(logged.String(), "query terminal size failed")
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	dispatcher.Notify(NotifyShutdown)
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log.resizes) != 0 {
		t.Errorf("OnResize called %d times after a failed query", len(log.resizes))
	}
}

func TestDispatcherRegistrationErrors(t *testing.T) {
	t.Parallel()
	dispatcher := NewDispatcher(nil, nil)

	if err := dispatcher.RegisterTap(Source(7), NewTap()); !IsKind(err, KindRegister) {
		t.Errorf("unknown source: got %v, want a register error", err)
	}
	if err := dispatcher.RegisterTap(SourceInput, nil); !IsKind(err, KindRegister) {
		t.Errorf("nil tap: got %v, want a register error", err)
	}
	if err := dispatcher.RegisterTap(SourceInput, NewTap()); err != nil {
		t.Fatalf("first RegisterTap: %v", err)
	}
	err := dispatcher.RegisterTap(SourceInput, NewTap())
	if !errors.Is(err, ErrAlreadyRegistered) || !IsKind(err, KindRegister) {
		t.Errorf("duplicate RegisterTap: got %v, want ErrAlreadyRegistered", err)
	}
	if err := dispatcher.RegisterResize(nil, nil); !IsKind(err, KindRegister) {
		t.Errorf("RegisterResize(nil, nil): got %v, want a register error", err)
	}

	dispatcher.Notify(NotifyShutdown)
	if err := dispatcher.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := dispatcher.RegisterTap(SourceOutput, NewTap()); !errors.Is(err, ErrStopped) {
		t.Errorf("RegisterTap after stop: got %v, want ErrStopped", err)
	}
	err = dispatcher.Run()
	if !errors.Is(err, ErrStopped) || !IsKind(err, KindDispatcher) {
		t.Errorf("second Run: got %v, want a dispatcher ErrStopped error", err)
	}
}

func TestSourceAndNotificationStrings(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		SourceInput.String():    "input",
		SourceOutput.String():   "output",
		Source(9).String():      "source(9)",
		NotifyResize.String():   "resize",
		NotifyShutdown.String(): "shutdown",
		StateRunning.String():   "running",
		StateStopped.String():   "stopped",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("String: got %q, want %q", got, want)
		}
	}
}
