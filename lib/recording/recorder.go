// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ptyshell/lib/clock"
	"github.com/bureau-foundation/ptyshell/lib/codec"
	"github.com/bureau-foundation/ptyshell/shell"
)

// ErrClosed is returned by Recorder.Err after a write to a closed
// recorder.
var ErrClosed = errors.New("recording: recorder closed")

// Options configures a Recorder.
type Options struct {
	Compression Compression

	// Recipients, when non-empty, encrypt the whole recording to
	// these age recipients.
	Recipients []age.Recipient

	// RecordInput includes keystrokes. Off by default: input contains
	// whatever the user typed, passwords at no-echo prompts included.
	RecordInput bool

	// Command and InitialSize fill in the header.
	Command     []string
	InitialSize *shell.WindowSize

	// SessionID defaults to a random UUID.
	SessionID string

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger receives write failures. Default slog.Default().
	Logger *slog.Logger
}

// Recorder writes a session recording. It implements shell.Handler.
//
// Hook methods never fail: the first write error is logged, kept for
// Err and Close, and every later event is dropped. A broken recording
// must not take the session down with it.
type Recorder struct {
	destination io.Closer
	encrypted   io.WriteCloser
	compressed  io.WriteCloser
	digest      *blake3.Hasher

	clock       clock.Clock
	started     time.Time
	sessionID   string
	recordInput bool
	logger      *slog.Logger

	mutex  sync.Mutex
	err    error
	ended  bool
	closed bool
	events int
}

// New starts a recording on destination, writing the preamble and the
// start event immediately. Close closes destination.
func New(destination io.WriteCloser, options Options) (*Recorder, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.SessionID == "" {
		options.SessionID = uuid.NewString()
	}

	recorder := &Recorder{
		destination: destination,
		digest:      newDigest(),
		clock:       options.Clock,
		started:     options.Clock.Now(),
		sessionID:   options.SessionID,
		recordInput: options.RecordInput,
		logger:      options.Logger.With("session_id", options.SessionID),
	}

	var plain io.Writer = destination
	if len(options.Recipients) > 0 {
		encrypted, err := age.Encrypt(destination, options.Recipients...)
		if err != nil {
			return nil, fmt.Errorf("starting age encryption: %w", err)
		}
		recorder.encrypted = encrypted
		plain = encrypted
	}

	preamble := append([]byte(magic), byte(options.Compression))
	if _, err := plain.Write(preamble); err != nil {
		return nil, fmt.Errorf("writing recording preamble: %w", err)
	}
	compressed, err := options.Compression.newWriter(plain)
	if err != nil {
		return nil, err
	}
	recorder.compressed = compressed

	hostname, _ := os.Hostname()
	header := &Header{
		SessionID: options.SessionID,
		StartedAt: recorder.started.UTC(),
		Command:   options.Command,
		Input:     options.RecordInput,
		Hostname:  hostname,
	}
	if options.InitialSize != nil {
		header.Size = sizeOf(*options.InitialSize)
	}

	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.append(Event{Kind: KindStart, Header: header})
	if recorder.err != nil {
		return nil, recorder.err
	}
	return recorder, nil
}

// Create creates the file at path (mode 0600, parent directories 0700)
// and starts a recording on it.
func Create(path string, options Options) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	recorder, err := New(file, options)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	return recorder, nil
}

// SessionID returns the identifier written to the header.
func (recorder *Recorder) SessionID() string {
	return recorder.sessionID
}

func (recorder *Recorder) OnInput(data []byte) {
	if !recorder.recordInput {
		return
	}
	recorder.record(Event{Kind: KindInput, Data: data})
}

func (recorder *Recorder) OnOutput(data []byte) {
	recorder.record(Event{Kind: KindOutput, Data: data})
}

func (recorder *Recorder) OnResize(size shell.WindowSize) {
	recorder.record(Event{Kind: KindResize, Size: sizeOf(size)})
}

// OnShutdown writes the end event. Later hooks are ignored; the file
// stays open until Close.
func (recorder *Recorder) OnShutdown() {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.end()
}

func (recorder *Recorder) record(event Event) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if recorder.ended {
		return
	}
	event.Offset = recorder.clock.Now().Sub(recorder.started)
	recorder.append(event)
}

// append encodes event, feeds it to the digest, and writes it. Callers
// hold the mutex.
func (recorder *Recorder) append(event Event) {
	if recorder.err != nil {
		return
	}
	if recorder.closed {
		recorder.err = ErrClosed
		return
	}
	encoded, err := codec.Marshal(event)
	if err != nil {
		recorder.fail(fmt.Errorf("encoding %s event: %w", event.Kind, err))
		return
	}
	if event.Kind != KindEnd {
		recorder.digest.Write(encoded)
	}
	if _, err := recorder.compressed.Write(encoded); err != nil {
		recorder.fail(fmt.Errorf("writing %s event: %w", event.Kind, err))
		return
	}
	recorder.events++
}

func (recorder *Recorder) fail(err error) {
	recorder.err = err
	recorder.logger.Error("recording failed; further events dropped", "error", err, "events_written", recorder.events)
}

func (recorder *Recorder) end() {
	if recorder.ended {
		return
	}
	recorder.ended = true
	recorder.append(Event{
		Kind:   KindEnd,
		Offset: recorder.clock.Now().Sub(recorder.started),
		Digest: recorder.digest.Sum(nil),
	})
}

// Err returns the first write error, if any.
func (recorder *Recorder) Err() error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.err
}

// Close writes the end event if the session did not, flushes every
// layer, and closes the destination. It returns the first error seen
// over the recorder's lifetime.
func (recorder *Recorder) Close() error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if recorder.closed {
		return recorder.err
	}
	recorder.end()
	recorder.closed = true

	errs := []error{recorder.err}
	if err := recorder.compressed.Close(); err != nil {
		errs = append(errs, fmt.Errorf("flushing compressor: %w", err))
	}
	if recorder.encrypted != nil {
		if err := recorder.encrypted.Close(); err != nil {
			errs = append(errs, fmt.Errorf("finishing encryption: %w", err))
		}
	}
	if err := recorder.destination.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing recording: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		recorder.err = err
	}
	recorder.logger.Debug("recording closed", "events", recorder.events)
	return recorder.err
}
