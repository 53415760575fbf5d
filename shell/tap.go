// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import "sync"

// Tap carries a copy of bytes already committed to a primary
// destination from a forwarding goroutine to the dispatcher. Write
// never blocks on the reader: pending chunks queue in memory until the
// dispatcher drains them, so a stalled handler cannot stall forwarding.
//
// Tap is safe for one writer and one reader on different goroutines.
type Tap struct {
	mutex   sync.Mutex
	pending [][]byte
	closed  bool

	// ready holds at most one token. A token is present whenever
	// pending is non-empty; a token with nothing pending is possible
	// and yields an empty Drain.
	ready chan struct{}
}

// NewTap returns an empty, open tap.
func NewTap() *Tap {
	return &Tap{ready: make(chan struct{}, 1)}
}

// Write queues a copy of data. It returns ErrTapClosed once the tap has
// been closed.
func (tap *Tap) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	tap.mutex.Lock()
	if tap.closed {
		tap.mutex.Unlock()
		return 0, ErrTapClosed
	}
	tap.pending = append(tap.pending, chunk)
	tap.mutex.Unlock()

	select {
	case tap.ready <- struct{}{}:
	default:
	}
	return len(data), nil
}

// Ready returns a channel that receives a value when queued data may be
// available.
func (tap *Tap) Ready() <-chan struct{} {
	return tap.ready
}

// Drain removes every queued byte and returns it in order, repacked
// into chunks of at most limit bytes. Adjacent small writes are merged;
// a write larger than limit is split. Returns nil when nothing is
// queued.
func (tap *Tap) Drain(limit int) [][]byte {
	// The token must be consumed before pending is taken. A Write that
	// lands after the swap then always leaves its own token behind.
	select {
	case <-tap.ready:
	default:
	}

	tap.mutex.Lock()
	pending := tap.pending
	tap.pending = nil
	tap.mutex.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if limit <= 0 {
		return pending
	}

	var chunks [][]byte
	var current []byte
	for _, data := range pending {
		for len(data) > 0 {
			if current == nil {
				current = make([]byte, 0, limit)
			}
			room := limit - len(current)
			take := len(data)
			if take > room {
				take = room
			}
			current = append(current, data[:take]...)
			data = data[take:]
			if len(current) == limit {
				chunks = append(chunks, current)
				current = nil
			}
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Close stops the tap accepting writes. Queued data stays drainable.
func (tap *Tap) Close() {
	tap.mutex.Lock()
	tap.closed = true
	tap.mutex.Unlock()
}
