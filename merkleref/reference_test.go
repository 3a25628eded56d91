// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkleref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

func buildTestReference(t *testing.T, leafCount, chunkSize uint64) *Reference {
	t.Helper()
	sh, err := shape.New(leafCount*chunkSize, chunkSize)
	require.NoError(t, err)

	hashes := make([][HashSize]byte, sh.NodeCount())
	for k := uint64(0); k < sh.LeafCount(); k++ {
		n, err := sh.ChunkIndexToLeafNode(k)
		require.NoError(t, err)
		content := make([]byte, chunkSize)
		content[0] = byte(k)
		hashes[n] = HashLeaf(content)
	}
	// Fill virtual leaves with the zero sentinel.
	for k := sh.LeafCount(); k < sh.CapLeaf(); k++ {
		hashes[sh.InternalNodeCount()+k] = ZeroSentinel
	}
	// Bottom-up internal hashes.
	for n := int64(sh.InternalNodeCount()) - 1; n >= 0; n-- {
		left := hashes[2*n+1]
		right := hashes[2*n+2]
		hashes[n] = HashInternal(left, right)
	}

	ref, err := New(sh, hashes)
	require.NoError(t, err)
	return ref
}

func TestRoundTripPersistence(t *testing.T) {
	ref := buildTestReference(t, 5, 64)

	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.mref")
	require.NoError(t, ref.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ref.Shape().NodeCount(), loaded.Shape().NodeCount())
	require.Equal(t, ref.RootHash(), loaded.RootHash())
	for n := uint64(0); n < ref.Shape().NodeCount(); n++ {
		a, _ := ref.Hash(n)
		b, _ := loaded.Hash(n)
		require.Equal(t, a, b)
	}
}

func TestLoadRejectsCorruptMagic(t *testing.T) {
	ref := buildTestReference(t, 2, 64)
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.mref")
	require.NoError(t, ref.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	footerStart := len(data) - 1 - footerLen
	corrupted := append([]byte(nil), data...)
	corrupted[footerStart] = 'X'
	require.NoError(t, os.WriteFile(path, corrupted, 0o644))

	_, err = Load(path)
	require.ErrorIs(t, err, vterrors.ErrCorruptReference)
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	ref := buildTestReference(t, 2, 64)
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.mref")
	require.NoError(t, ref.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	corrupted := append([]byte(nil), data...)
	// Flip a byte inside the hash array; the checksum covers only the
	// footer, so this specifically must NOT be caught as a checksum
	// failure but would be caught by a higher-level re-hash; here we flip
	// a byte inside the footer's geometry fields instead.
	footerStart := len(data) - 1 - footerLen
	corrupted[footerStart+6] ^= 0xFF // chunkSize field
	require.NoError(t, os.WriteFile(path, corrupted, 0o644))

	_, err = Load(path)
	require.ErrorIs(t, err, vterrors.ErrCorruptReference)
}

func TestEqualAndDiffChunks(t *testing.T) {
	refA := buildTestReference(t, 4, 64)
	refB := buildTestReference(t, 4, 64)
	require.True(t, refA.Equal(refB))

	diffs, err := refA.DiffChunks(refB)
	require.NoError(t, err)
	require.Empty(t, diffs)

	// Mutate one leaf hash in refB directly to simulate a real divergence.
	n, err := refB.Shape().ChunkIndexToLeafNode(2)
	require.NoError(t, err)
	refB.hashes[n][0] ^= 0xFF
	// Recompute ancestors so RootHash also diverges, matching a real tree.
	p := (n - 1) / 2
	for {
		refB.hashes[p] = HashInternal(refB.hashes[2*p+1], refB.hashes[2*p+2])
		if p == 0 {
			break
		}
		p = (p - 1) / 2
	}

	require.False(t, refA.Equal(refB))
	diffs, err = refA.DiffChunks(refB)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, diffs)
}
