// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

// DefaultCapacity holds a few thousand screens of typical output.
const DefaultCapacity = 1024 * 1024

// ringBuffer keeps the most recent capacity bytes of a stream together
// with the stream offset of the oldest retained byte, so readers can ask
// for "everything after offset N" and learn whether they missed data.
//
// ringBuffer does no locking; Capture serializes access.
type ringBuffer struct {
	data []byte
	// next is the index in data where the next byte is stored.
	next int
	// written counts every byte ever appended.
	written uint64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ringBuffer{data: make([]byte, capacity)}
}

func (ring *ringBuffer) write(chunk []byte) {
	capacity := len(ring.data)
	ring.written += uint64(len(chunk))
	// Only the tail of an oversized chunk can survive.
	if len(chunk) > capacity {
		chunk = chunk[len(chunk)-capacity:]
	}
	for len(chunk) > 0 {
		copied := copy(ring.data[ring.next:], chunk)
		ring.next = (ring.next + copied) % capacity
		chunk = chunk[copied:]
	}
}

// retained returns how many bytes are currently held.
func (ring *ringBuffer) retained() uint64 {
	if ring.written < uint64(len(ring.data)) {
		return ring.written
	}
	return uint64(len(ring.data))
}

// since returns the retained bytes at stream offsets >= offset, and the
// offset of the first byte returned. An offset older than the retained
// window is clamped to the oldest byte still held.
func (ring *ringBuffer) since(offset uint64) ([]byte, uint64) {
	oldest := ring.written - ring.retained()
	if offset < oldest {
		offset = oldest
	}
	if offset >= ring.written {
		return nil, ring.written
	}

	length := int(ring.written - offset)
	capacity := len(ring.data)
	start := (ring.next - length + capacity) % capacity

	result := make([]byte, 0, length)
	if start+length <= capacity {
		result = append(result, ring.data[start:start+length]...)
	} else {
		result = append(result, ring.data[start:]...)
		result = append(result, ring.data[:length-(capacity-start)]...)
	}
	return result, offset
}
