// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package buildref implements the parallel hashing pipeline that turns a
// local source file into a merkleref.Reference (spec.md §4.7), plus the
// verify-mode diff operation supplementing it (SPEC_FULL.md §6). Grounded
// on golang.org/x/sync/errgroup worker-pool fan-out over a fixed batch of
// chunks (dispatch bounds its open-ended node-download stream with a
// semaphore instead), applied here to parallel pread-and-hash.
package buildref

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// Options tunes the build pipeline.
type Options struct {
	// ChunkSize is C, the fixed chunk size in bytes. Must be a power of
	// two.
	ChunkSize uint64
	// Workers bounds how many chunks are hashed concurrently. Zero means
	// runtime.NumCPU().
	Workers int
	// OnProgress, if set, is invoked after each chunk completes with a
	// snapshot of pipeline progress (see progress.go).
	OnProgress func(Progress)
}

// FromFile builds a Reference by hashing path in parallel per spec.md
// §4.7: each worker performs pread-style offsetted reads (via
// os.File.ReadAt) to avoid shared cursor contention, computes the leaf
// hash, and publishes it to a hash array indexed by chunk position.
// Internal hashes are then computed bottom-up once every leaf is known.
func FromFile(ctx context.Context, path string, opts Options) (*merkleref.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("statting source file: %w", err)
	}

	sh, err := shape.New(uint64(info.Size()), opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	hashes := make([][merkleref.HashSize]byte, sh.NodeCount())
	for k := sh.LeafCount(); k < sh.CapLeaf(); k++ {
		hashes[sh.InternalNodeCount()+k] = merkleref.ZeroSentinel
	}

	prog := newTracker(sh.LeafCount(), uint64(info.Size()), opts.OnProgress)

	g, gctx := errgroup.WithContext(ctx)
	chunkIdx := make(chan uint64)
	g.Go(func() error {
		defer close(chunkIdx)
		for k := uint64(0); k < sh.LeafCount(); k++ {
			select {
			case chunkIdx <- k:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			buf := make([]byte, sh.ChunkSize())
			for k := range chunkIdx {
				n, err := sh.ChunkIndexToLeafNode(k)
				if err != nil {
					return err
				}
				offset, length, err := sh.ByteRangeForNode(n)
				if err != nil {
					return err
				}
				read, err := f.ReadAt(buf[:length], int64(offset))
				if err != nil {
					return fmt.Errorf("reading chunk %d: %w", k, err)
				}
				hashes[n] = merkleref.HashLeaf(buf[:read])
				prog.advance(uint64(read))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", vterrors.ErrCorruptReference, err)
	}

	for n := int64(sh.InternalNodeCount()) - 1; n >= 0; n-- {
		hashes[n] = merkleref.HashInternal(hashes[2*n+1], hashes[2*n+2])
	}

	return merkleref.New(sh, hashes)
}
