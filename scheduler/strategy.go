// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	"math/bits"
	"sort"

	"github.com/luxfi/vectorchan/shape"
)

// params tunes the shared selection skeleton (spec.md §4.5.1's table).
// Each named strategy is this skeleton driven by a fixed params value;
// Adaptive recomputes params per call from recent read history.
type params struct {
	// efficiencyThreshold is the minimum
	// |required chunks covered| / |unvalidated chunks covered| an
	// internal-node candidate must meet to be considered.
	efficiencyThreshold float64
	// minRequiredCovered is the minimum number of originally-required,
	// currently-missing chunks a candidate must cover.
	minRequiredCovered uint64
	// prefetchChunks is how many extra chunks to opportunistically
	// expand the missing set with, on each side of the request.
	prefetchChunks uint64
	// maxScanLevel bounds how far above the leaves (level 1 = leaves'
	// immediate parent) the skeleton will consider internal-node
	// candidates. Conservative only looks one level up; Aggressive scans
	// deep into the tree.
	maxScanLevel uint64
}

type baseStrategy struct {
	name Name
	p    params
}

// NewConservative returns the exact-coverage-only strategy: internal
// nodes are only chosen one level above the leaves, and only when both
// chunks they cover are required and unvalidated (efficiency 1.0 with a
// 2-chunk minimum, so a node whose other chunk is already valid is never
// re-downloaded). In practice this usually degenerates to per-leaf tasks.
func NewConservative() Strategy {
	return baseStrategy{NameConservative, params{efficiencyThreshold: 1.0, minRequiredCovered: 2, prefetchChunks: 0, maxScanLevel: 1}}
}

// NewDefaultStrategy returns the balanced strategy: a 60% efficiency
// floor, at least 3 required chunks covered to justify consolidating into
// an internal-node fetch, and a 1-chunk prefetch on each side of the
// request (a simplification of spec.md §4.5.1's "±1 for ≥70% adjacent
// reads" — see DESIGN.md's Open Question decision).
func NewDefaultStrategy() Strategy {
	return baseStrategy{NameDefault, params{efficiencyThreshold: 0.6, minRequiredCovered: 3, prefetchChunks: 1, maxScanLevel: 3}}
}

// NewAggressive returns the strategy that consolidates broadly: a 30%
// efficiency floor, 2-chunk minimum, ±2 chunk prefetch, and a deep scan.
func NewAggressive() Strategy {
	return baseStrategy{NameAggressive, params{efficiencyThreshold: 0.3, minRequiredCovered: 2, prefetchChunks: 2, maxScanLevel: 6}}
}

func (b baseStrategy) ScheduleDownloads(offset, length uint64, sh shape.Shape, valid ValidityView, target Target) error {
	required, err := requiredChunks(offset, length, sh)
	if err != nil {
		return err
	}
	missing := missingOf(required, valid)
	if len(missing) == 0 {
		return nil
	}

	expanded := expandWithPrefetch(missing, b.p.prefetchChunks, sh)
	expandedMissing := missingOf(expanded, valid)

	pending := make(map[uint64]bool, len(missing))
	for _, k := range missing {
		pending[k] = true
	}

	candidates := enumerateCandidates(sh, pending, valid, b.p)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].requiredCovered != candidates[j].requiredCovered {
			return candidates[i].requiredCovered > candidates[j].requiredCovered
		}
		return candidates[i].efficiency > candidates[j].efficiency
	})

	covered := make(map[uint64]bool, len(pending))
	for _, c := range candidates {
		if len(pending) == 0 {
			break
		}
		anyNew := false
		for k := range c.requiredSet {
			if pending[k] {
				anyNew = true
				break
			}
		}
		if !anyNew {
			continue
		}

		offsetBytes, lengthBytes, err := sh.ByteRangeForNode(c.node)
		if err != nil {
			return err
		}
		lo, hi, err := sh.LeafRangeForNode(c.node)
		if err != nil {
			return err
		}
		target.OfferTask(Task{
			NodeIndex:  c.node,
			ByteOffset: offsetBytes,
			ByteLength: lengthBytes,
			IsLeaf:     false,
			LeafStart:  lo,
			LeafEnd:    hi,
			Strategy:   b.name,
		})
		for k := range c.requiredSet {
			delete(pending, k)
			covered[k] = true
		}
	}

	// Fall back to leaf tasks for any required chunk no internal node
	// covered (the post-condition in spec.md §4.5.1).
	for k := range pending {
		if err := offerLeafTask(sh, k, b.name, target); err != nil {
			return err
		}
		covered[k] = true
	}

	// Opportunistically fetch prefetch chunks not already swept up by a
	// selected internal node.
	for _, k := range expandedMissing {
		if covered[k] || pending[k] {
			continue
		}
		if err := offerLeafTask(sh, k, b.name, target); err != nil {
			return err
		}
	}
	return nil
}

func offerLeafTask(sh shape.Shape, k uint64, name Name, target Target) error {
	n, err := sh.ChunkIndexToLeafNode(k)
	if err != nil {
		return err
	}
	offset, length, err := sh.ByteRangeForNode(n)
	if err != nil {
		return err
	}
	target.OfferTask(Task{
		NodeIndex:  n,
		ByteOffset: offset,
		ByteLength: length,
		IsLeaf:     true,
		LeafStart:  k,
		LeafEnd:    k + 1,
		Strategy:   name,
	})
	return nil
}

type candidate struct {
	node            uint64
	requiredCovered uint64
	efficiency      float64
	requiredSet     map[uint64]bool
}

// enumerateCandidates scans internal nodes within p.maxScanLevel of the
// leaves and scores each one whose clipped leaf range intersects pending.
// Uses the clipped leaf range exclusively (shape.LeafRangeForNode), which
// is the root-cause fix spec.md §4.5.1 calls out for the boundary bug.
func enumerateCandidates(sh shape.Shape, pending map[uint64]bool, valid ValidityView, p params) []candidate {
	var out []candidate
	internalCount := sh.InternalNodeCount()
	totalLevels := uint64(bits.Len64(sh.CapLeaf())) - 1

	for n := uint64(0); n < internalCount; n++ {
		depth := uint64(bits.Len64(n+1) - 1)
		levelFromLeaves := totalLevels - depth
		if levelFromLeaves < 1 || levelFromLeaves > p.maxScanLevel {
			continue
		}

		lo, hi, err := sh.LeafRangeForNode(n)
		if err != nil || lo >= hi {
			continue
		}

		requiredSet := make(map[uint64]bool)
		unvalidatedCount := uint64(0)
		for k := lo; k < hi; k++ {
			if valid.IsValid(k) {
				continue
			}
			unvalidatedCount++
			if pending[k] {
				requiredSet[k] = true
			}
		}
		if len(requiredSet) == 0 {
			continue
		}
		if uint64(len(requiredSet)) < p.minRequiredCovered {
			continue
		}

		efficiency := float64(len(requiredSet)) / float64(unvalidatedCount)
		if efficiency < p.efficiencyThreshold {
			continue
		}

		out = append(out, candidate{
			node:            n,
			requiredCovered: uint64(len(requiredSet)),
			efficiency:      efficiency,
			requiredSet:     requiredSet,
		})
	}
	return out
}
