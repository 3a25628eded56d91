// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shape implements the fixed geometry of a content-addressed
// binary tree over a power-of-two-aligned chunking of an artifact: total
// content size, chunk size, leaf count, cap-leaf padding, and the
// heap-order node index ↔ chunk index ↔ byte range mappings used
// throughout merkleref, mstate, scheduler, and filechannel.
//
// A Shape is immutable and holds no I/O state; every method is a pure
// function of (totalSize, chunkSize).
package shape

import (
	"fmt"
	"math/bits"

	"github.com/luxfi/vectorchan/mathutil"
	"github.com/luxfi/vectorchan/vterrors"
)

// Shape describes the geometry of a tree over a fixed-size artifact.
type Shape struct {
	totalSize uint64
	chunkSize uint64
	leafCount uint64
	capLeaf   uint64
}

// New builds a Shape for totalSize bytes of content chunked at chunkSize
// bytes. chunkSize must be a strictly positive power of two.
func New(totalSize, chunkSize uint64) (Shape, error) {
	if chunkSize == 0 || (chunkSize&(chunkSize-1)) != 0 {
		return Shape{}, fmt.Errorf("%w: chunk size %d is not a positive power of two", vterrors.ErrInvalidShape, chunkSize)
	}

	leafCount := uint64(0)
	if totalSize > 0 {
		leafCount = (totalSize + chunkSize - 1) / chunkSize
	}

	return Shape{
		totalSize: totalSize,
		chunkSize: chunkSize,
		leafCount: leafCount,
		capLeaf:   nextPowerOfTwo(leafCount),
	}, nil
}

// nextPowerOfTwo returns the smallest power of two >= n, with the
// convention that a cap leaf of 0 or 1 leaves collapses to 1 (a single
// leaf tree, including the S=0 degenerate case).
func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// TotalSize returns S, the total content size in bytes.
func (s Shape) TotalSize() uint64 { return s.totalSize }

// ChunkSize returns C, the chunk size in bytes.
func (s Shape) ChunkSize() uint64 { return s.chunkSize }

// LeafCount returns L, the number of actual (non-virtual) chunks.
func (s Shape) LeafCount() uint64 { return s.leafCount }

// CapLeaf returns Lcap, the next power of two at or above L.
func (s Shape) CapLeaf() uint64 { return s.capLeaf }

// InternalNodeCount returns I = Lcap - 1.
func (s Shape) InternalNodeCount() uint64 { return s.capLeaf - 1 }

// NodeCount returns N = 2*Lcap - 1.
func (s Shape) NodeCount() uint64 { return 2*s.capLeaf - 1 }

// IsLeafNode reports whether node n is a leaf (real or virtual).
func (s Shape) IsLeafNode(n uint64) bool {
	return n >= s.InternalNodeCount() && n < s.NodeCount()
}

// ChunkIndexToLeafNode maps a chunk index k (0 <= k < L) to its heap-order
// leaf node index I + k.
func (s Shape) ChunkIndexToLeafNode(k uint64) (uint64, error) {
	if k >= s.leafCount {
		return 0, fmt.Errorf("%w: chunk index %d >= leaf count %d", vterrors.ErrOutOfRange, k, s.leafCount)
	}
	return s.InternalNodeCount() + k, nil
}

// LeafNodeToChunkIndex maps a leaf node index n (I <= n < I+L) back to its
// chunk index n - I. Virtual leaves (I+L <= n < N) are rejected: they have
// no backing chunk and must never be selected for fetch.
func (s Shape) LeafNodeToChunkIndex(n uint64) (uint64, error) {
	internal := s.InternalNodeCount()
	if n < internal || n >= internal+s.leafCount {
		return 0, fmt.Errorf("%w: node %d is not a real leaf (I=%d, L=%d)", vterrors.ErrOutOfRange, n, internal, s.leafCount)
	}
	return n - internal, nil
}

// ChunkIndexForPosition returns p / C for 0 <= p < S.
func (s Shape) ChunkIndexForPosition(p uint64) (uint64, error) {
	if p >= s.totalSize {
		return 0, fmt.Errorf("%w: position %d >= size %d", vterrors.ErrOutOfRange, p, s.totalSize)
	}
	return p / s.chunkSize, nil
}

// leafRangeUnclipped returns the [a, b) leaf-index range a complete binary
// tree of capLeaf leaves assigns to node n, without clipping against L.
//
// In heap order, the nodes at depth d occupy indices [2^d-1, 2^(d+1)-2]
// and evenly partition the capLeaf leaves into 2^d spans of width
// capLeaf>>d. So a node's depth and position within its depth give its
// leaf span directly, with no need to walk the tree from the root.
func (s Shape) leafRangeUnclipped(n uint64) (a, b uint64) {
	d := uint64(bits.Len64(n+1) - 1)
	posInLevel := n - (1<<d - 1)
	width := s.capLeaf >> d
	a = posInLevel * width
	b = a + width
	return a, b
}

// LeafRangeForNode returns the clipped chunk-index range [a, b) covered by
// node n: the heap-order leaf span, clipped to [a, min(b, L)). Every index
// in the returned range is guaranteed < L (the clip-correctness property).
func (s Shape) LeafRangeForNode(n uint64) (a, b uint64, err error) {
	if n >= s.NodeCount() {
		return 0, 0, fmt.Errorf("%w: node %d >= node count %d", vterrors.ErrOutOfRange, n, s.NodeCount())
	}
	a, b = s.leafRangeUnclipped(n)
	if b > s.leafCount {
		b = s.leafCount
	}
	if a > b {
		a = b
	}
	return a, b, nil
}

// ByteRangeForNode returns the byte range [a*C, min(b*C, S)) covered by
// node n, after clipping its leaf range.
func (s Shape) ByteRangeForNode(n uint64) (offset, length uint64, err error) {
	a, b, err := s.LeafRangeForNode(n)
	if err != nil {
		return 0, 0, err
	}
	offset = a * s.chunkSize
	end := mathutil.Min64(b*s.chunkSize, s.totalSize)
	if end < offset {
		end = offset
	}
	return offset, end - offset, nil
}

// NodesForByteRange returns a minimal set of node indices whose (clipped)
// byte ranges cover [offset, offset+length). The default implementation
// returns one leaf node per covered chunk; callers that want internal-node
// consolidation use a scheduler.Strategy instead, which builds on this
// leaf-level cover.
func (s Shape) NodesForByteRange(offset, length uint64) ([]uint64, error) {
	if length == 0 {
		return nil, nil
	}
	end, err := mathutil.Add64(offset, length)
	if err != nil {
		return nil, err
	}
	if end > s.totalSize {
		return nil, fmt.Errorf("%w: range end %d > size %d", vterrors.ErrOutOfRange, end, s.totalSize)
	}

	firstChunk, err := s.ChunkIndexForPosition(offset)
	if err != nil {
		return nil, err
	}
	lastChunk, err := s.ChunkIndexForPosition(end - 1)
	if err != nil {
		return nil, err
	}

	nodes := make([]uint64, 0, lastChunk-firstChunk+1)
	for k := firstChunk; k <= lastChunk; k++ {
		n, err := s.ChunkIndexToLeafNode(k)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
