// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mstate

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/shape"
)

const testChunkSize = 64

func buildRefAndChunks(t *testing.T, leafCount uint64) (*merkleref.Reference, [][]byte) {
	t.Helper()
	sh, err := shape.New(leafCount*testChunkSize, testChunkSize)
	require.NoError(t, err)

	chunks := make([][]byte, leafCount)
	hashes := make([][merkleref.HashSize]byte, sh.NodeCount())
	for k := uint64(0); k < leafCount; k++ {
		n, err := sh.ChunkIndexToLeafNode(k)
		require.NoError(t, err)
		content := make([]byte, testChunkSize)
		content[0] = byte(k + 1)
		chunks[k] = content
		hashes[n] = merkleref.HashLeaf(content)
	}
	for k := leafCount; k < sh.CapLeaf(); k++ {
		hashes[sh.InternalNodeCount()+k] = merkleref.ZeroSentinel
	}
	for n := int64(sh.InternalNodeCount()) - 1; n >= 0; n-- {
		hashes[n] = merkleref.HashInternal(hashes[2*n+1], hashes[2*n+2])
	}

	ref, err := merkleref.New(sh, hashes)
	require.NoError(t, err)
	return ref, chunks
}

func TestSaveIfValidVerificationExactness(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 5)
	dir := t.TempDir()
	s, err := FromRef(ref, filepath.Join(dir, "artifact.mrkl"))
	require.NoError(t, err)

	var written []byte
	result, err := s.SaveIfValid(0, chunks[0], func(b []byte) error {
		written = append([]byte(nil), b...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, Saved, result)
	require.Equal(t, chunks[0], written)
	require.True(t, s.IsValid(0))

	corrupted := append([]byte(nil), chunks[1]...)
	corrupted[0] ^= 0xFF
	result, err = s.SaveIfValid(1, corrupted, func([]byte) error {
		t.Fatal("persist must not be called on hash mismatch")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, HashMismatch, result)
	require.False(t, s.IsValid(1))
}

func TestSaveIfValidIdempotent(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 3)
	dir := t.TempDir()
	s, err := FromRef(ref, filepath.Join(dir, "artifact.mrkl"))
	require.NoError(t, err)

	calls := 0
	persist := func([]byte) error {
		calls++
		return nil
	}

	result, err := s.SaveIfValid(0, chunks[0], persist)
	require.NoError(t, err)
	require.Equal(t, Saved, result)

	result, err = s.SaveIfValid(0, chunks[0], persist)
	require.NoError(t, err)
	require.Equal(t, AlreadyValid, result)
	require.Equal(t, 1, calls)
}

func TestSaveIfValidConcurrentSameChunk(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 2)
	dir := t.TempDir()
	s, err := FromRef(ref, filepath.Join(dir, "artifact.mrkl"))
	require.NoError(t, err)

	var persistCount int
	var mu sync.Mutex
	persist := func([]byte) error {
		mu.Lock()
		persistCount++
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	results := make([]SaveResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.SaveIfValid(0, chunks[0], persist)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	savedCount := 0
	for _, r := range results {
		if r == Saved {
			savedCount++
		}
	}
	require.Equal(t, 1, savedCount)
	require.Equal(t, 1, persistCount)
}

func TestAncestorHashRecomputationOnFullSubtree(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 4)
	dir := t.TempDir()
	s, err := FromRef(ref, filepath.Join(dir, "artifact.mrkl"))
	require.NoError(t, err)

	for k := uint64(0); k < 4; k++ {
		_, err := s.SaveIfValid(k, chunks[k], func([]byte) error { return nil })
		require.NoError(t, err)
	}

	require.Equal(t, ref.RootHash(), s.hashes[0])
}

func TestStateRoundTripPersistence(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 5)
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.mrkl")
	s, err := FromRef(ref, path)
	require.NoError(t, err)

	for _, k := range []uint64{0, 2, 4} {
		_, err := s.SaveIfValid(k, chunks[k], func([]byte) error { return nil })
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reloaded, err := Load(path, ref)
	require.NoError(t, err)
	require.Equal(t, uint64(3), reloaded.ValidCount())
	require.True(t, reloaded.IsValid(0))
	require.True(t, reloaded.IsValid(2))
	require.True(t, reloaded.IsValid(4))
	require.False(t, reloaded.IsValid(1))
	require.False(t, reloaded.IsValid(3))
}

func TestStateResumeAfterRestart(t *testing.T) {
	ref, chunks := buildRefAndChunks(t, 3)
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.mrkl")

	s1, err := FromRef(ref, path)
	require.NoError(t, err)
	_, err = s1.SaveIfValid(0, chunks[0], func([]byte) error { return nil })
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Load(path, ref)
	require.NoError(t, err)
	require.True(t, s2.IsValid(0))
	require.False(t, s2.IsValid(1))

	result, err := s2.SaveIfValid(1, chunks[1], func([]byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, Saved, result)
	require.NoError(t, s2.Close())

	s3, err := Load(path, ref)
	require.NoError(t, err)
	require.Equal(t, uint64(2), s3.ValidCount())
}

func TestFromRefStartsEmpty(t *testing.T) {
	ref, _ := buildRefAndChunks(t, 7)
	dir := t.TempDir()
	s, err := FromRef(ref, filepath.Join(dir, "artifact.mrkl"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.ValidCount())
	for k := uint64(0); k < 7; k++ {
		require.False(t, s.IsValid(k))
	}
}
