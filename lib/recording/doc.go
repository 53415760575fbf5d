// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recording persists proxied sessions and plays them back.
//
// A [Recorder] is a shell.Handler: attach it to a session and every
// output chunk, every resize, and optionally every input chunk is
// appended to a recording file with its offset from session start.
// [Open] reads a recording back event by event, and [Replay] writes its
// output to a terminal with the original timing.
//
// # File format
//
// A recording is, outermost first:
//
//   - an optional age envelope (when the recorder has recipients),
//   - the 8-byte magic "PTYSHREC" and a 1-byte [Compression] tag,
//   - a compressed CBOR sequence (RFC 8742) of [Event] values, starting
//     with a [KindStart] event that carries the [Header] and ending
//     with a [KindEnd] event that carries a BLAKE3 keyed digest of the
//     encoded bytes of every earlier event.
//
// A file without its end event was cut short (the host crashed or was
// killed); the reader returns [ErrTruncated] after the last complete
// event. A digest that does not match returns [ErrDigestMismatch].
//
// The digest is an integrity checksum: its key is a fixed, public
// domain separator, so it catches corruption and accidental edits but
// anyone can recompute it after a deliberate edit. Authenticity comes
// from the age envelope, whose payload is authenticated; a modified
// encrypted recording fails to decrypt.
package recording
