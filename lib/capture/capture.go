// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture provides a shell.Handler for interactive test
// harnesses: it retains the session's recent output and input, records
// every resize and the shutdown, and lets other goroutines wait for a
// substring to appear in the output.
//
//	observer := capture.New(capture.DefaultCapacity)
//	go session.Proxy(observer)
//	if err := observer.WaitFor(ctx, "$ "); err != nil { ... }
package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/bureau-foundation/ptyshell/shell"
)

// ErrSessionEnded is returned by WaitFor when the session shut down
// without the awaited text appearing.
var ErrSessionEnded = errors.New("session ended")

// Capture records a session. Hooks are called from the dispatcher
// goroutine; every accessor is safe from any goroutine.
type Capture struct {
	mutex     sync.Mutex
	output    *ringBuffer
	input     *ringBuffer
	resizes   []shell.WindowSize
	shutdowns int

	// changed is closed and replaced whenever new output arrives.
	changed chan struct{}
	done    chan struct{}
}

// New returns a Capture retaining up to capacity bytes of each
// direction. A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Capture {
	return &Capture{
		output:  newRingBuffer(capacity),
		input:   newRingBuffer(capacity),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (capture *Capture) OnInput(data []byte) {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	capture.input.write(data)
}

func (capture *Capture) OnOutput(data []byte) {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	capture.output.write(data)
	close(capture.changed)
	capture.changed = make(chan struct{})
}

func (capture *Capture) OnResize(size shell.WindowSize) {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	capture.resizes = append(capture.resizes, size)
}

func (capture *Capture) OnShutdown() {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	capture.shutdowns++
	if capture.shutdowns == 1 {
		close(capture.done)
	}
}

// Output returns every retained output byte.
func (capture *Capture) Output() []byte {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	data, _ := capture.output.since(0)
	return data
}

// OutputSince returns output at stream offsets >= offset and the offset
// just past it, for incremental reads. If the returned start is later
// than requested, older output was overwritten.
func (capture *Capture) OutputSince(offset uint64) (data []byte, start, next uint64) {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	data, start = capture.output.since(offset)
	return data, start, capture.output.written
}

// Input returns every retained input byte.
func (capture *Capture) Input() []byte {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	data, _ := capture.input.since(0)
	return data
}

// Resizes returns the sizes delivered to OnResize, in order.
func (capture *Capture) Resizes() []shell.WindowSize {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	return append([]shell.WindowSize(nil), capture.resizes...)
}

// Shutdowns returns how many times OnShutdown was called.
func (capture *Capture) Shutdowns() int {
	capture.mutex.Lock()
	defer capture.mutex.Unlock()
	return capture.shutdowns
}

// Done is closed when OnShutdown is first called.
func (capture *Capture) Done() <-chan struct{} {
	return capture.done
}

// WaitFor blocks until the retained output contains text, the session
// ends (ErrSessionEnded), or ctx is done (ctx.Err()).
func (capture *Capture) WaitFor(ctx context.Context, text string) error {
	needle := []byte(text)
	for {
		capture.mutex.Lock()
		retained, _ := capture.output.since(0)
		found := bytes.Contains(retained, needle)
		changed := capture.changed
		capture.mutex.Unlock()

		if found {
			return nil
		}
		select {
		case <-changed:
		case <-capture.done:
			// Output delivered before shutdown is already retained.
			capture.mutex.Lock()
			retained, _ = capture.output.since(0)
			capture.mutex.Unlock()
			if bytes.Contains(retained, needle) {
				return nil
			}
			return ErrSessionEnded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
