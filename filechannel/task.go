// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filechannel

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/vectorchan/mstate"
	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/vterrors"
)

// executeTask implements spec.md §4.6.2: fetch the task's contiguous
// byte range, slice it into chunk-sized pieces aligned to absolute file
// offsets, and verify-and-persist each piece via state.SaveIfValid. A
// hash mismatch fails the whole task (never retried against the same
// transport, per §4.6.3), but every piece of the task is still checked:
// chunks that verify are committed by SaveIfValid whether they come before
// or after the mismatched one, and the task's error names the first
// mismatched chunk. The fetch is bounded by cfg.TransportFetchTimeout.
func (c *Channel) executeTask(ctx context.Context, task scheduler.Task) error {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.TransportFetchTimeout)
	data, err := c.tp.Fetch(fetchCtx, task.ByteOffset, task.ByteLength)
	cancel()
	if c.metrics != nil {
		c.metrics.FetchLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.FetchErrors.WithLabelValues("transport").Inc()
		}
		return fmt.Errorf("%w: %v", vterrors.ErrTransport, err)
	}

	var mismatch error
	for k := task.LeafStart; k < task.LeafEnd; k++ {
		if c.state.IsValid(k) {
			continue
		}

		leafNode, err := c.sh.ChunkIndexToLeafNode(k)
		if err != nil {
			return fmt.Errorf("leaf node for chunk %d: %w", k, err)
		}
		pieceOffset, pieceLen, err := c.sh.ByteRangeForNode(leafNode)
		if err != nil {
			return fmt.Errorf("byte range for chunk %d: %w", k, err)
		}
		start := pieceOffset - task.ByteOffset
		end := start + pieceLen
		if end > uint64(len(data)) {
			return fmt.Errorf("%w: task for node %d returned %d bytes, chunk %d needs up to %d", vterrors.ErrIntegrity, task.NodeIndex, len(data), k, end)
		}
		piece := data[start:end]

		persist := func(b []byte) error {
			_, err := c.cache.WriteAt(b, int64(pieceOffset))
			return err
		}

		result, err := c.state.SaveIfValid(k, piece, persist)
		if err != nil {
			return fmt.Errorf("saving chunk %d: %w", k, err)
		}
		if result == mstate.HashMismatch {
			if c.metrics != nil {
				c.metrics.HashMismatches.Inc()
				c.metrics.FetchErrors.WithLabelValues("integrity").Inc()
			}
			if mismatch == nil {
				mismatch = vterrors.NewChunkError("verify", k, vterrors.ErrIntegrity)
			}
			continue
		}
		if c.metrics != nil {
			c.metrics.ChunksVerified.Inc()
			c.metrics.BytesPersisted.Add(float64(pieceLen))
		}
	}
	return mismatch
}
