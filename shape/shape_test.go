// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package shape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/vterrors"
)

func TestNewRejectsNonPowerOfTwoChunkSize(t *testing.T) {
	_, err := New(100, 3)
	require.ErrorIs(t, err, vterrors.ErrInvalidShape)

	_, err = New(100, 0)
	require.ErrorIs(t, err, vterrors.ErrInvalidShape)
}

func TestSingleChunkFile(t *testing.T) {
	s, err := New(1<<20, 1<<20)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.LeafCount())
	require.Equal(t, uint64(1), s.CapLeaf())
	require.Equal(t, uint64(0), s.InternalNodeCount())
	require.Equal(t, uint64(1), s.NodeCount())
	require.True(t, s.IsLeafNode(0))
}

func TestEmptyFile(t *testing.T) {
	s, err := New(0, 1<<20)
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.LeafCount())
	require.Equal(t, uint64(1), s.CapLeaf())
	require.Equal(t, uint64(1), s.NodeCount())
}

func TestChunkIndexLeafNodeBijection(t *testing.T) {
	const chunkSize = 64
	s, err := New(5*chunkSize, chunkSize)
	require.NoError(t, err)

	for k := uint64(0); k < s.LeafCount(); k++ {
		n, err := s.ChunkIndexToLeafNode(k)
		require.NoError(t, err)
		back, err := s.LeafNodeToChunkIndex(n)
		require.NoError(t, err)
		require.Equal(t, k, back)
	}
}

func TestVirtualLeavesRejected(t *testing.T) {
	const chunkSize = 64
	s, err := New(5*chunkSize, chunkSize) // L=5, Lcap=8, I=7
	require.NoError(t, err)
	require.Equal(t, uint64(5), s.LeafCount())
	require.Equal(t, uint64(8), s.CapLeaf())
	require.Equal(t, uint64(7), s.InternalNodeCount())

	// Node indices 12,13,14 are virtual leaves (chunk indices 5,6,7).
	for _, n := range []uint64{12, 13, 14} {
		_, err := s.LeafNodeToChunkIndex(n)
		require.ErrorIs(t, err, vterrors.ErrOutOfRange)
	}
}

func TestLeafRangeClipping(t *testing.T) {
	const chunkSize = 64
	s, err := New(5*chunkSize, chunkSize) // L=5, Lcap=8
	require.NoError(t, err)

	// Root covers [0,8) unclipped, must clip to [0,5).
	a, b, err := s.LeafRangeForNode(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), a)
	require.Equal(t, uint64(5), b)

	for n := uint64(0); n < s.NodeCount(); n++ {
		a, b, err := s.LeafRangeForNode(n)
		require.NoError(t, err)
		require.LessOrEqual(t, b, s.LeafCount(), "node %d leaf range must clip below L", n)
		require.LessOrEqual(t, a, b)
	}
}

func TestByteRangeForNode(t *testing.T) {
	const chunkSize = 64
	s, err := New(5*chunkSize, chunkSize)
	require.NoError(t, err)

	offset, length, err := s.ByteRangeForNode(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), offset)
	require.Equal(t, uint64(5*chunkSize), length)
}

func TestNodesForByteRangeCoverage(t *testing.T) {
	const chunkSize = 64
	s, err := New(5*chunkSize, chunkSize)
	require.NoError(t, err)

	nodes, err := s.NodesForByteRange(4*chunkSize, chunkSize)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	chunkIdx, err := s.LeafNodeToChunkIndex(nodes[0])
	require.NoError(t, err)
	require.Equal(t, uint64(4), chunkIdx)
}

func TestChunkIndexForPositionBoundaries(t *testing.T) {
	const chunkSize = 64
	s, err := New(3*chunkSize, chunkSize)
	require.NoError(t, err)

	idx, err := s.ChunkIndexForPosition(3*chunkSize - 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), idx)

	_, err = s.ChunkIndexForPosition(3 * chunkSize)
	require.ErrorIs(t, err, vterrors.ErrOutOfRange)
}

func TestNodeCoverageCompletenessProperty(t *testing.T) {
	sizes := []uint64{1, 2, 3, 5, 7, 8, 9, 16, 17}
	const chunkSize = 16
	for _, leafCount := range sizes {
		s, err := New(leafCount*chunkSize, chunkSize)
		require.NoError(t, err)

		nodes, err := s.NodesForByteRange(0, s.TotalSize())
		require.NoError(t, err)

		covered := make([]bool, s.LeafCount())
		for _, n := range nodes {
			a, b, err := s.LeafRangeForNode(n)
			require.NoError(t, err)
			for k := a; k < b; k++ {
				covered[k] = true
			}
		}
		for k, ok := range covered {
			require.Truef(t, ok, "leafCount=%d chunk %d not covered", leafCount, k)
		}
	}
}
