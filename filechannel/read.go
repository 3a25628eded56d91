// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filechannel

import (
	"context"
	"fmt"

	"github.com/luxfi/vectorchan/dispatch"
	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/set"
	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/vterrors"
)

// collectingTarget forwards offered tasks to the real dispatcher while
// recording the futures of any task whose clipped leaf range overlaps a
// caller-supplied set of chunks still needing a read to wait on it
// (spec.md §4.6.1 step 5b: "never trust raw leaf indices to equal chunk
// indices past L" — overlap is computed against the clipped range only).
type collectingTarget struct {
	dispatcher *dispatch.SchedulingTarget
	wanted     set.ChunkSet
	futures    []*dispatch.SharedFuture
}

func (c *collectingTarget) OfferTask(t scheduler.Task) {
	fut := c.dispatcher.OfferTaskAndFuture(t)
	if fut == nil {
		return
	}
	if set.Clipped(c.wanted, t.LeafStart, t.LeafEnd).Len() > 0 {
		c.futures = append(c.futures, fut)
	}
}

// Read fills buffer with bytes starting at position, returning the number
// of bytes read (short at EOF). Implements spec.md §4.6.1.
func (c *Channel) Read(ctx context.Context, buffer []byte, position uint64) (int, error) {
	if position >= c.sh.TotalSize() {
		return 0, nil
	}
	length := uint64(len(buffer))
	if remaining := c.sh.TotalSize() - position; length > remaining {
		length = remaining
	}
	if length == 0 {
		return 0, nil
	}

	required, err := requiredChunkRange(position, length, c.sh)
	if err != nil {
		return 0, err
	}

	missing := make(set.ChunkSet)
	for _, k := range required {
		if !c.state.IsValid(k) {
			missing.Add(k)
		}
	}

	if missing.Len() > 0 {
		ct := &collectingTarget{dispatcher: c.dispatcher, wanted: missing}
		if err := c.strategy.ScheduleDownloads(position, length, c.sh, c.state, ct); err != nil {
			return 0, fmt.Errorf("scheduling downloads: %w", err)
		}
		var waitErr error
		for _, fut := range ct.futures {
			if err := fut.Wait(ctx); err != nil && waitErr == nil {
				waitErr = err
			}
		}
		if waitErr != nil {
			return 0, waitErr
		}
	}

	var stillMissing []uint64
	for _, k := range required {
		if !c.state.IsValid(k) {
			stillMissing = append(stillMissing, k)
		}
	}
	if len(stillMissing) > 0 {
		return 0, &vterrors.ReadIncompleteError{Missing: stillMissing}
	}

	n, err := c.cache.ReadAt(buffer[:length], int64(position))
	if err != nil {
		return 0, fmt.Errorf("reading cache file: %w", err)
	}
	return n, nil
}

// requiredChunkRange returns every chunk index covering [offset,
// offset+length).
func requiredChunkRange(offset, length uint64, sh shape.Shape) ([]uint64, error) {
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
