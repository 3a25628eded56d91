// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scheduler implements the stateless (Adaptive excepted) decision
// function that, given a read request and the current validity bitmap,
// decides which tree nodes to download (spec.md §4.5). Grounded on the
// teacher's poll.Factory/poll.Set shape: a small Factory-like interface
// producing per-request selections instead of per-round polls, read from
// poll/poll.go before that package's deletion in the trim pass (see
// DESIGN.md).
package scheduler

import (
	"fmt"
	"sort"

	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// Task describes one tree-node download: an internal node decomposed into
// its covered leaves, or a single leaf. Mirrors spec.md §4.5's
// NodeDownloadTask (node index, byte offset/length, leaf-or-internal
// flag, leaf range).
type Task struct {
	NodeIndex  uint64
	ByteOffset uint64
	ByteLength uint64
	IsLeaf     bool
	// LeafStart, LeafEnd is the clipped chunk-index range [start, end)
	// this task covers; for a leaf task, End = Start+1.
	LeafStart uint64
	LeafEnd   uint64
	// Strategy names which strategy selected this task, for the
	// dispatcher's per-strategy nodes-scheduled metric.
	Strategy Name
}

// ValidityView is the read-only validity check a Strategy needs. Satisfied
// structurally by *mstate.State without either package importing the
// other.
type ValidityView interface {
	IsValid(chunkIndex uint64) bool
}

// Target is where a Strategy deposits the tasks it selects, and is the
// dedup point across concurrent requests for the same node (spec.md §4.5,
// §5). Satisfied by *dispatch.SchedulingTarget.
type Target interface {
	OfferTask(t Task)
}

// Strategy selects which nodes to download to satisfy a read over
// [offset, offset+length) against sh, given which chunks are already
// valid, and offers its chosen tasks to target.
type Strategy interface {
	ScheduleDownloads(offset, length uint64, sh shape.Shape, valid ValidityView, target Target) error
}

// Name identifies one of the four strategies in the family (spec.md
// §4.5.1).
type Name string

const (
	NameConservative Name = "conservative"
	NameDefault      Name = "default"
	NameAggressive   Name = "aggressive"
	NameAdaptive     Name = "adaptive"
)

// New constructs the named strategy.
func New(name Name) (Strategy, error) {
	switch name {
	case NameConservative:
		return NewConservative(), nil
	case NameDefault:
		return NewDefaultStrategy(), nil
	case NameAggressive:
		return NewAggressive(), nil
	case NameAdaptive:
		return NewAdaptive(), nil
	default:
		return nil, fmt.Errorf("%w: unknown scheduler strategy %q", vterrors.ErrInvalidShape, name)
	}
}

// requiredChunks returns every chunk index touched by [offset,
// offset+length), inclusive of the last covered chunk.
func requiredChunks(offset, length uint64, sh shape.Shape) ([]uint64, error) {
	if length == 0 {
		return nil, nil
	}
	first, err := sh.ChunkIndexForPosition(offset)
	if err != nil {
		return nil, err
	}
	last, err := sh.ChunkIndexForPosition(offset + length - 1)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, last-first+1)
	for k := first; k <= last; k++ {
		out = append(out, k)
	}
	return out, nil
}

// missingOf filters chunks down to those not yet valid.
func missingOf(chunks []uint64, valid ValidityView) []uint64 {
	out := make([]uint64, 0, len(chunks))
	for _, k := range chunks {
		if !valid.IsValid(k) {
			out = append(out, k)
		}
	}
	return out
}

// expandWithPrefetch adds up to n chunks immediately before the first and
// after the last element of sorted, ascending chunks, clipped to [0, L).
func expandWithPrefetch(chunks []uint64, n uint64, sh shape.Shape) []uint64 {
	if n == 0 || len(chunks) == 0 {
		return chunks
	}
	first, last := chunks[0], chunks[len(chunks)-1]

	extra := make([]uint64, 0, 2*n)
	for i := uint64(1); i <= n; i++ {
		if first >= i {
			extra = append(extra, first-i)
		}
	}
	for i := uint64(1); i <= n; i++ {
		if last+i < sh.LeafCount() {
			extra = append(extra, last+i)
		}
	}
	if len(extra) == 0 {
		return chunks
	}

	seen := make(map[uint64]bool, len(chunks)+len(extra))
	out := make([]uint64, 0, len(chunks)+len(extra))
	for _, k := range chunks {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range extra {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
