// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mstate implements the mutable companion tree to a merkleref
// Reference: a per-chunk validity bitmap plus derived hashes, persisted to
// a .mrkl file and atomically updated as chunks pass verification
// (spec.md §3.3, §4.3).
package mstate

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// SaveResult reports the outcome of a SaveIfValid call.
type SaveResult int

const (
	// Saved indicates the chunk's hash matched the reference and the bit
	// was newly set (persist was invoked).
	Saved SaveResult = iota
	// AlreadyValid indicates the chunk was already valid; persist was not
	// invoked (idempotence, spec.md §8).
	AlreadyValid
	// HashMismatch indicates the chunk's hash did not match the
	// reference; state was not modified.
	HashMismatch
)

// State is the mutable validity bitmap + derived hash tree tracking which
// chunks of an artifact have been fetched and verified against a
// Reference.
//
// Bit transitions are single-writer-per-bit: SaveIfValid is the only
// method that may flip a bit from 0 to 1, and it does so under s.mu so
// concurrent callers racing on the same chunk observe at most one Saved
// result (spec.md §4.3.1, §8 Idempotence property).
type State struct {
	mu      sync.Mutex
	shape   shape.Shape
	ref     *merkleref.Reference
	valid   *bitset.BitSet // one bit per real chunk, length L
	hashes  [][merkleref.HashSize]byte
	path    string
	dirty   bool
}

// FromRef creates a fresh State bound to ref, with every bit clear and
// every node hash zero: a leaf's hash is set when SaveIfValid verifies
// its chunk, and internal hashes stay zero until enough descendants become
// valid to recompute them. Persists immediately to path.
func FromRef(ref *merkleref.Reference, path string) (*State, error) {
	sh := ref.Shape()
	s := &State{
		shape:  sh,
		ref:    ref,
		valid:  bitset.New(uint(sh.LeafCount())),
		hashes: make([][merkleref.HashSize]byte, sh.NodeCount()),
		path:   path,
	}
	s.dirty = true
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a .mrkl file and validates its shape against ref.
func Load(path string, ref *merkleref.Reference) (*State, error) {
	return load(path, ref)
}

// Shape returns the tree geometry.
func (s *State) Shape() shape.Shape { return s.shape }

// IsValid reports whether chunk k has been verified.
func (s *State) IsValid(k uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k >= s.shape.LeafCount() {
		return false
	}
	return s.valid.Test(uint(k))
}

// ValidChunks returns a defensive copy of the validity bitmap.
func (s *State) ValidChunks() *bitset.BitSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid.Clone()
}

// ValidCount returns the number of chunks currently marked valid.
func (s *State) ValidCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.valid.Count())
}

// PersistFunc writes verified chunk bytes to their backing store (the
// channel's cache file) at the caller's chosen offset. It is invoked with
// the state lock held, so it must not re-enter State.
type PersistFunc func(bytes []byte) error

// SaveIfValid implements spec.md §4.3.1: hashes bytes, compares against
// the reference's leaf hash for chunk k, and on a match invokes persist
// and sets the bit atomically with respect to concurrent readers. It is
// the only method that transitions a bit from 0 to 1.
func (s *State) SaveIfValid(k uint64, data []byte, persist PersistFunc) (SaveResult, error) {
	n, err := s.shape.ChunkIndexToLeafNode(k)
	if err != nil {
		return HashMismatch, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid.Test(uint(k)) {
		return AlreadyValid, nil
	}

	got := sha256.Sum256(data)
	want, err := s.ref.Hash(n)
	if err != nil {
		return HashMismatch, err
	}
	if !bytes.Equal(got[:], want[:]) {
		return HashMismatch, nil
	}

	if persist != nil {
		if err := persist(data); err != nil {
			return HashMismatch, fmt.Errorf("persisting chunk %d: %w", k, err)
		}
	}

	s.hashes[n] = got
	s.valid.Set(uint(k))
	s.dirty = true
	s.recomputeAncestorsLocked(n)

	if err := s.flushLocked(); err != nil {
		return Saved, err
	}
	return Saved, nil
}

// recomputeAncestorsLocked walks upward from a newly-valid leaf node,
// recomputing each ancestor's hash once both of its children are known
// (i.e. both descend entirely from valid leaves, or from the zero
// sentinel for virtual leaves). Must be called with s.mu held.
func (s *State) recomputeAncestorsLocked(leafNode uint64) {
	if leafNode == 0 {
		return
	}
	n := leafNode
	for n != 0 {
		parent := (n - 1) / 2
		left := 2*parent + 1
		right := 2*parent + 2
		if !s.descendantsKnownLocked(left) || !s.descendantsKnownLocked(right) {
			return
		}
		s.hashes[parent] = merkleref.HashInternal(s.hashes[left], s.hashes[right])
		n = parent
		if parent == 0 {
			return
		}
	}
}

// descendantsKnownLocked reports whether node n's hash is already known:
// true for a real leaf that is valid, for a virtual leaf (always the zero
// sentinel), or for an internal node whose entire covered (clipped) leaf
// range is valid.
func (s *State) descendantsKnownLocked(n uint64) bool {
	if s.shape.IsLeafNode(n) {
		k, err := s.shape.LeafNodeToChunkIndex(n)
		if err != nil {
			// Virtual leaf: always known as the zero sentinel.
			return true
		}
		return s.valid.Test(uint(k))
	}
	return s.subtreeFullyValidLocked(n)
}

// subtreeFullyValidLocked reports whether every real leaf under internal
// node n is valid.
func (s *State) subtreeFullyValidLocked(n uint64) bool {
	a, b, err := s.shape.LeafRangeForNode(n)
	if err != nil || a == b {
		return true // empty clipped range (pure virtual subtree)
	}
	for k := a; k < b; k++ {
		if !s.valid.Test(uint(k)) {
			return false
		}
	}
	return true
}

// Flush durably writes any dirty state to disk.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes and releases the state. The final flush must be durable
// per spec.md §3.3.
func (s *State) Close() error {
	return s.Flush()
}

func (s *State) flushLocked() error {
	if !s.dirty {
		return nil
	}
	if err := save(s); err != nil {
		return fmt.Errorf("%w: %v", vterrors.ErrCorruptState, err)
	}
	s.dirty = false
	return nil
}
