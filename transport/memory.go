// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/vectorchan/vterrors"
)

// Memory is an in-memory Transport backed by a byte slice, for tests that
// need a real (non-mock) Transport without touching the filesystem or
// network. FlipOffsets optionally corrupts fetches starting at given
// offsets to simulate the "flipped bits" scenarios spec.md §8 exercises.
type Memory struct {
	mu   sync.Mutex
	data []byte

	// FlipOffsets, if set, XORs 0xFF into the first byte of any fetch
	// that starts at one of these offsets, simulating corruption.
	FlipOffsets map[uint64]bool

	// FetchCount records how many times Fetch was called, for dedup
	// assertions in filechannel and transport tests.
	FetchCount int
}

// NewMemory builds a Memory transport serving data verbatim.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Size() uint64         { return uint64(len(m.data)) }
func (m *Memory) SupportsRanges() bool { return true }

func (m *Memory) Fetch(_ context.Context, offset, length uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCount++

	if offset >= uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: offset %d >= size %d", vterrors.ErrTransport, offset, len(m.data))
	}
	if offset+length > uint64(len(m.data)) {
		length = uint64(len(m.data)) - offset
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])

	if m.FlipOffsets != nil && m.FlipOffsets[offset] && len(out) > 0 {
		out[0] ^= 0xFF
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
