// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every ptyshell
// component that persists data: session recordings and their replay
// tooling. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2), so the same event always encodes to the same bytes. Recording
// digests depend on that.
//
// Buffer-oriented use:
//
//	data, err := codec.Marshal(event)
//	err = codec.Unmarshal(data, &event)
//
// Stream-oriented use, for CBOR sequences (RFC 8742):
//
//	decoder := codec.NewDecoder(file)
//	var raw codec.RawMessage
//	err := decoder.Decode(&raw)
//
// Types serialized here use integer keys (`cbor:"1,keyasint"`) so that
// a recording stays compact when most events are a few bytes of output.
package codec
