// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buildref

import (
	"context"
	"fmt"

	"github.com/luxfi/vectorchan/merkleref"
)

// VerifyResult reports the outcome of checking a local file against a
// trusted Reference (SPEC_FULL.md §6's supplemented verify mode).
type VerifyResult struct {
	// RootHashMatches reports whether the two references' root hashes
	// are byte-for-byte equal.
	RootHashMatches bool
	// MismatchedChunks lists every chunk index whose hash differs,
	// populated even when RootHashMatches is true for a paranoid caller
	// (it won't be, by construction, but the field stays meaningful).
	MismatchedChunks []uint64
}

// VerifyAgainstReference rebuilds a reference from the local file at path
// and compares it against want, returning the list of mismatched chunks
// so a caller (cmd/mrefctl's verify subcommand) can report exact byte
// ranges rather than a single pass/fail bit.
func VerifyAgainstReference(ctx context.Context, path string, want *merkleref.Reference, opts Options) (VerifyResult, error) {
	opts.ChunkSize = want.Shape().ChunkSize()
	got, err := FromFile(ctx, path, opts)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("rebuilding reference from %s: %w", path, err)
	}

	diffs, err := want.DiffChunks(got)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		RootHashMatches:  want.Equal(got),
		MismatchedChunks: diffs,
	}, nil
}
