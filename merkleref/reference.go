// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkleref implements the immutable, trusted Merkle tree
// reference: the full set of node hashes over a shape, built once from
// source data (see buildref) or loaded from a .mref file, and compared by
// callers via root-hash (or full per-chunk) equality.
package merkleref

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// HashSize is the size in bytes of a node hash (SHA-256 digest).
const HashSize = sha256.Size

// ZeroSentinel is the fixed hash assigned to virtual leaves (indices
// [L, Lcap)) and to the root of an empty (S=0) artifact. Decided in
// SPEC_FULL.md §6 to resolve the source's inconsistent virtual-leaf
// handling: both buildref and mstate.FromRef use this same constant.
var ZeroSentinel = [HashSize]byte{}

// Reference is the trusted, complete tree of node hashes for a shape.
// Immutable after construction; safe for concurrent reads.
type Reference struct {
	shape  shape.Shape
	hashes [][HashSize]byte
}

// New builds a Reference directly from a pre-computed hash array. Used by
// buildref once all leaf and internal hashes have been computed, and by
// Load once a .mref file has been parsed and checksum-validated.
func New(sh shape.Shape, hashes [][HashSize]byte) (*Reference, error) {
	if uint64(len(hashes)) != sh.NodeCount() {
		return nil, fmt.Errorf("%w: got %d hashes, shape wants %d", vterrors.ErrInvalidShape, len(hashes), sh.NodeCount())
	}
	cp := make([][HashSize]byte, len(hashes))
	copy(cp, hashes)
	return &Reference{shape: sh, hashes: cp}, nil
}

// Shape returns the tree geometry this reference was built over.
func (r *Reference) Shape() shape.Shape { return r.shape }

// Hash returns the 32-byte hash at nodeIndex.
func (r *Reference) Hash(nodeIndex uint64) ([HashSize]byte, error) {
	if nodeIndex >= uint64(len(r.hashes)) {
		return [HashSize]byte{}, fmt.Errorf("%w: node %d >= node count %d", vterrors.ErrOutOfRange, nodeIndex, len(r.hashes))
	}
	return r.hashes[nodeIndex], nil
}

// RootHash returns the hash of node 0.
func (r *Reference) RootHash() [HashSize]byte {
	if len(r.hashes) == 0 {
		return ZeroSentinel
	}
	return r.hashes[0]
}

// Equal reports whether two references have identical root hashes. Per
// spec.md §4.2, comparing two references is exact byte-for-byte on the
// root hash only — it does not imply the shapes match.
func (r *Reference) Equal(other *Reference) bool {
	if other == nil {
		return false
	}
	return r.RootHash() == other.RootHash()
}

// DiffChunks compares every real leaf hash between r and other (which must
// share a shape) and returns the chunk indices whose hashes differ. Used
// by the verify operation (SPEC_FULL.md §6) to report mismatched ranges
// rather than a single pass/fail bit.
func (r *Reference) DiffChunks(other *Reference) ([]uint64, error) {
	if other == nil {
		return nil, fmt.Errorf("%w: nil reference", vterrors.ErrShapeMismatch)
	}
	if r.shape.LeafCount() != other.shape.LeafCount() || r.shape.ChunkSize() != other.shape.ChunkSize() {
		return nil, fmt.Errorf("%w: shapes differ", vterrors.ErrShapeMismatch)
	}

	var diffs []uint64
	for k := uint64(0); k < r.shape.LeafCount(); k++ {
		n, err := r.shape.ChunkIndexToLeafNode(k)
		if err != nil {
			return nil, err
		}
		a := r.hashes[n]
		b := other.hashes[n]
		if !bytes.Equal(a[:], b[:]) {
			diffs = append(diffs, k)
		}
	}
	return diffs, nil
}

// HashLeaf computes the leaf hash of chunk bytes: SHA-256 over the raw
// chunk content.
func HashLeaf(data []byte) [HashSize]byte {
	return sha256.Sum256(data)
}

// HashInternal computes an internal node's hash: SHA-256 over the
// concatenation of its left and right child hashes.
func HashInternal(left, right [HashSize]byte) [HashSize]byte {
	buf := make([]byte, 0, 2*HashSize)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}
