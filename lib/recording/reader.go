// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ptyshell/lib/codec"
)

var (
	// ErrNotRecording is returned by Open when the input does not start
	// with a recording preamble.
	ErrNotRecording = errors.New("recording: not a ptyshell recording")

	// ErrEncrypted is returned by Open for an encrypted recording when
	// no identity was supplied.
	ErrEncrypted = errors.New("recording: recording is encrypted; an age identity is required")

	// ErrTruncated is returned by Next when the recording ends without
	// an end event.
	ErrTruncated = errors.New("recording: truncated (no end event)")

	// ErrDigestMismatch is returned by Next when the end event's digest
	// does not cover the events read.
	ErrDigestMismatch = errors.New("recording: digest mismatch")
)

// Reader reads a recording event by event.
type Reader struct {
	closers     []io.Closer
	decoder     *codec.Decoder
	digest      *blake3.Hasher
	header      Header
	compression Compression
	encrypted   bool

	end  *Event
	done bool
}

// Open reads the preamble and the start event from source. Pass one or
// more identities for an encrypted recording. Close releases the
// decompressor but does not close source.
func Open(source io.Reader, identities ...age.Identity) (*Reader, error) {
	reader := &Reader{digest: newDigest()}

	buffered := bufio.NewReader(source)
	var plain io.Reader = buffered
	if prefix, _ := buffered.Peek(len(ageMagic)); string(prefix) == ageMagic {
		if len(identities) == 0 {
			return nil, ErrEncrypted
		}
		decrypted, err := age.Decrypt(buffered, identities...)
		if err != nil {
			return nil, fmt.Errorf("decrypting recording: %w", err)
		}
		plain = decrypted
		reader.encrypted = true
	}

	preamble := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(plain, preamble); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotRecording
		}
		return nil, fmt.Errorf("reading recording preamble: %w", err)
	}
	if !bytes.Equal(preamble[:len(magic)], []byte(magic)) {
		return nil, ErrNotRecording
	}
	reader.compression = Compression(preamble[len(magic)])
	decompressed, err := reader.compression.newReader(plain)
	if err != nil {
		return nil, err
	}
	reader.closers = append(reader.closers, decompressed)
	reader.decoder = codec.NewDecoder(decompressed)

	first, err := reader.Next()
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("reading start event: %w", err)
	}
	if first.Kind != KindStart || first.Header == nil {
		reader.Close()
		return nil, fmt.Errorf("recording begins with a %s event, want start", first.Kind)
	}
	reader.header = *first.Header
	return reader, nil
}

// OpenFile opens the recording at path. Close closes the file.
func OpenFile(path string, identities ...age.Identity) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := Open(file, identities...)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.closers = append(reader.closers, file)
	return reader, nil
}

// Header returns the session header from the start event.
func (reader *Reader) Header() Header { return reader.header }

// Compression returns the recording's compression.
func (reader *Reader) Compression() Compression { return reader.compression }

// Encrypted reports whether the recording was age-encrypted.
func (reader *Reader) Encrypted() bool { return reader.encrypted }

// End returns the end event once Next has returned io.EOF.
func (reader *Reader) End() (Event, bool) {
	if reader.end == nil {
		return Event{}, false
	}
	return *reader.end, true
}

// Next returns the next event after the start event. It returns io.EOF
// after a verified end event, ErrTruncated if the stream stops before
// one, and ErrDigestMismatch if the end event does not verify.
func (reader *Reader) Next() (Event, error) {
	if reader.done {
		return Event{}, io.EOF
	}
	var raw codec.RawMessage
	if err := reader.decoder.Decode(&raw); err != nil {
		reader.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, ErrTruncated
		}
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	var event Event
	if err := codec.Unmarshal(raw, &event); err != nil {
		reader.done = true
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if event.Kind == KindEnd {
		reader.done = true
		if !bytes.Equal(event.Digest, reader.digest.Sum(nil)) {
			return Event{}, ErrDigestMismatch
		}
		reader.end = &event
		return Event{}, io.EOF
	}
	reader.digest.Write(raw)
	return event, nil
}

// Close releases the reader's resources.
func (reader *Reader) Close() error {
	var errs []error
	for _, closer := range reader.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	reader.closers = nil
	return errors.Join(errs...)
}
