// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/shape"
)

// fakeValidity is a ValidityView over an explicit set of valid chunks.
type fakeValidity map[uint64]bool

func (f fakeValidity) IsValid(k uint64) bool { return f[k] }

// recordingTarget collects offered tasks for assertions.
type recordingTarget struct {
	tasks []Task
}

func (r *recordingTarget) OfferTask(t Task) { r.tasks = append(r.tasks, t) }

func (r *recordingTarget) coveredChunks() map[uint64]bool {
	out := make(map[uint64]bool)
	for _, t := range r.tasks {
		for k := t.LeafStart; k < t.LeafEnd; k++ {
			out[k] = true
		}
	}
	return out
}

func TestConservativeCoversRequiredChunks(t *testing.T) {
	sh, err := shape.New(8*64, 64)
	require.NoError(t, err)
	valid := fakeValidity{}
	target := &recordingTarget{}

	strat := NewConservative()
	require.NoError(t, strat.ScheduleDownloads(0, 4*64, sh, valid, target))

	covered := target.coveredChunks()
	for k := uint64(0); k < 4; k++ {
		require.True(t, covered[k], "chunk %d must be covered", k)
	}
}

func TestAggressiveConsolidatesIntoFewerTasks(t *testing.T) {
	sh, err := shape.New(8*64, 64)
	require.NoError(t, err)
	valid := fakeValidity{}
	target := &recordingTarget{}

	strat := NewAggressive()
	require.NoError(t, strat.ScheduleDownloads(0, 8*64, sh, valid, target))

	covered := target.coveredChunks()
	for k := uint64(0); k < 8; k++ {
		require.True(t, covered[k])
	}
	// Aggressive should consolidate the full 8-chunk range into far fewer
	// than 8 leaf tasks.
	require.Less(t, len(target.tasks), 8)
}

func TestNonPowerOfTwoLeafCountBoundary(t *testing.T) {
	// 5 real chunks padded to a cap of 8: exercises the exact "missing
	// chunk at the boundary" scenario spec.md §4.5.1 calls out.
	sh, err := shape.New(5*64, 64)
	require.NoError(t, err)
	valid := fakeValidity{}
	target := &recordingTarget{}

	strat := NewAggressive()
	require.NoError(t, strat.ScheduleDownloads(0, 5*64, sh, valid, target))

	covered := target.coveredChunks()
	for k := uint64(0); k < 5; k++ {
		require.True(t, covered[k], "chunk %d must be covered", k)
	}
	// No task may claim a virtual leaf (chunk index >= L) as a required
	// chunk.
	for k := range covered {
		require.Less(t, k, uint64(5))
	}
}

func TestAlreadyValidChunksProduceNoTasks(t *testing.T) {
	sh, err := shape.New(4*64, 64)
	require.NoError(t, err)
	valid := fakeValidity{0: true, 1: true, 2: true, 3: true}
	target := &recordingTarget{}

	strat := NewDefaultStrategy()
	require.NoError(t, strat.ScheduleDownloads(0, 4*64, sh, valid, target))
	require.Empty(t, target.tasks)
}

func TestPartiallyValidOnlyFetchesMissing(t *testing.T) {
	sh, err := shape.New(4*64, 64)
	require.NoError(t, err)
	valid := fakeValidity{0: true, 2: true}
	target := &recordingTarget{}

	strat := NewConservative()
	require.NoError(t, strat.ScheduleDownloads(0, 4*64, sh, valid, target))

	covered := target.coveredChunks()
	require.True(t, covered[1])
	require.True(t, covered[3])
	require.False(t, covered[0])
	require.False(t, covered[2])
}

func TestAdaptiveConvergesTowardAggressiveOnHighHitRate(t *testing.T) {
	sh, err := shape.New(16*64, 64)
	require.NoError(t, err)
	strat := NewAdaptiveWithTuning(4, 0.01)

	valid := fakeValidity{}
	for k := uint64(0); k < 14; k++ {
		valid[k] = true
	}

	for i := 0; i < 8; i++ {
		target := &recordingTarget{}
		require.NoError(t, strat.ScheduleDownloads(0, 16*64, sh, valid, target))
	}

	a := strat.(*adaptive)
	a.mu.Lock()
	factor := a.factor
	a.mu.Unlock()
	require.Greater(t, factor, 0.5)
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New("bogus")
	require.Error(t, err)
}

func TestNewKnownStrategies(t *testing.T) {
	for _, name := range []Name{NameConservative, NameDefault, NameAggressive, NameAdaptive} {
		strat, err := New(name)
		require.NoError(t, err)
		require.NotNil(t, strat)
	}
}
