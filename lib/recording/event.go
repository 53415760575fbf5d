// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ptyshell/shell"
)

// magic opens every recording after the optional encryption envelope.
const magic = "PTYSHREC"

// ageMagic opens every age-encrypted file.
const ageMagic = "age-encryption.org/v1"

// Kind is the type of an Event. Values are protocol constants.
type Kind uint8

const (
	KindStart  Kind = 1
	KindInput  Kind = 2
	KindOutput Kind = 3
	KindResize Kind = 4
	KindEnd    Kind = 5
)

func (kind Kind) String() string {
	switch kind {
	case KindStart:
		return "start"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindResize:
		return "resize"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("kind(%d)", uint8(kind))
	}
}

// Event is one entry in a recording. Offset is measured from the
// session start recorded in the header.
type Event struct {
	Kind   Kind          `cbor:"1,keyasint"`
	Offset time.Duration `cbor:"2,keyasint"`

	// Data holds the bytes of an input or output event.
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Size is set on resize events.
	Size *Size `cbor:"4,keyasint,omitempty"`

	// Header is set on the start event only.
	Header *Header `cbor:"5,keyasint,omitempty"`

	// Digest is set on the end event only.
	Digest []byte `cbor:"6,keyasint,omitempty"`
}

// Size is the on-disk form of shell.WindowSize.
type Size struct {
	Rows        uint16 `cbor:"1,keyasint"`
	Columns     uint16 `cbor:"2,keyasint"`
	PixelWidth  uint16 `cbor:"3,keyasint,omitempty"`
	PixelHeight uint16 `cbor:"4,keyasint,omitempty"`
}

func sizeOf(size shell.WindowSize) *Size {
	return &Size{Rows: size.Rows, Columns: size.Columns, PixelWidth: size.PixelWidth, PixelHeight: size.PixelHeight}
}

// WindowSize converts back to the session type.
func (size *Size) WindowSize() shell.WindowSize {
	return shell.WindowSize{Rows: size.Rows, Columns: size.Columns, PixelWidth: size.PixelWidth, PixelHeight: size.PixelHeight}
}

// Header describes the recorded session.
type Header struct {
	SessionID string    `cbor:"1,keyasint"`
	StartedAt time.Time `cbor:"2,keyasint"`

	// Command is the argv of the proxied child, when known.
	Command []string `cbor:"3,keyasint,omitempty"`

	// Size is the terminal size at session start, when known.
	Size *Size `cbor:"4,keyasint,omitempty"`

	// Input reports whether input events were recorded.
	Input bool `cbor:"5,keyasint,omitempty"`

	Hostname string `cbor:"6,keyasint,omitempty"`
}

// digestKey keys the BLAKE3 digest so a recording digest cannot be
// confused with a plain hash of the same bytes. It is public: the
// digest detects corruption, not forgery.
var digestKey = blake3.Sum256([]byte("ptyshell.recording.digest.v1"))

func newDigest() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("recording: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}
