// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package set

// ChunkSet is a set of chunk indices, used wherever callers name the leaves
// they still need (spec.md §4.6.1 read/prebuffer requests).
type ChunkSet = Set[uint64]

// ChunksOf builds a ChunkSet from chunk indices.
func ChunksOf(chunks ...uint64) ChunkSet {
	return Of(chunks...)
}

// Clipped returns the subset of s whose elements fall in [lo, hi). Used to
// intersect a requested chunk range against a tree node's clipped leaf span
// (shape.LeafRangeForNode) without allocating an intermediate range set.
func Clipped(s ChunkSet, lo, hi uint64) ChunkSet {
	result := make(ChunkSet, s.Len())
	for elt := range s {
		if elt >= lo && elt < hi {
			result.Add(elt)
		}
	}
	return result
}
