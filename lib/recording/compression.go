// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the stream compression of a recording's event
// sequence. The value is stored in the file as one byte; changing the
// constants breaks existing recordings.
type Compression uint8

const (
	// CompressionNone stores events uncompressed.
	CompressionNone Compression = 0

	// CompressionLZ4 is the LZ4 frame format. Cheap enough to leave on
	// for interactive sessions.
	CompressionLZ4 Compression = 1

	// CompressionZstd is the zstd frame format at the default level.
	// Terminal output is highly repetitive text and typically shrinks
	// five- to tenfold.
	CompressionZstd Compression = 2
)

func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(compression))
	}
}

// ParseCompression converts a name accepted on the command line and in
// configuration files to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (valid: none, lz4, zstd)", name)
	}
}

// newWriter wraps destination in the compressor. Closing the returned
// writer flushes the final frame but does not close destination.
func (compression Compression) newWriter(destination io.Writer) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{destination}, nil
	case CompressionLZ4:
		return lz4.NewWriter(destination), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

// newReader wraps source in the matching decompressor.
func (compression Compression) newReader(source io.Reader) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone:
		return io.NopCloser(source), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(source)), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return zstdReadCloser{decoder}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// zstdReadCloser adapts zstd.Decoder, whose Close returns nothing.
type zstdReadCloser struct{ decoder *zstd.Decoder }

func (reader zstdReadCloser) Read(buffer []byte) (int, error) { return reader.decoder.Read(buffer) }

func (reader zstdReadCloser) Close() error {
	reader.decoder.Close()
	return nil
}
