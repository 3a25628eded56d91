// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buildref

import (
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Progress is a periodic snapshot of the build pipeline's advancement,
// consumable by an external headless log reporter or TUI (spec.md §4.7);
// neither reporter lives in this module.
type Progress struct {
	ChunksDone  uint64
	ChunksTotal uint64
	BytesDone   uint64
	BytesTotal  uint64
}

// String renders a human-readable one-line summary, e.g.
// "512/1,024 chunks, 512 MB/1.0 GB".
func (p Progress) String() string {
	return humanize.Comma(int64(p.ChunksDone)) + "/" + humanize.Comma(int64(p.ChunksTotal)) +
		" chunks, " + humanize.Bytes(p.BytesDone) + "/" + humanize.Bytes(p.BytesTotal)
}

// tracker accumulates completed-chunk and completed-byte counters from
// concurrent hashing workers and reports a Progress snapshot after each
// chunk, matching spec.md §4.7's "samples a monotonic counter of
// completed chunks and total bytes". Snapshots are delivered one at a
// time, in completion order.
type tracker struct {
	mu          sync.Mutex
	chunksTotal uint64
	bytesTotal  uint64
	chunksDone  uint64
	bytesDone   uint64
	onProgress  func(Progress)
}

func newTracker(chunksTotal, bytesTotal uint64, onProgress func(Progress)) *tracker {
	return &tracker{chunksTotal: chunksTotal, bytesTotal: bytesTotal, onProgress: onProgress}
}

func (t *tracker) advance(bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := atomic.AddUint64(&t.chunksDone, 1)
	total := atomic.AddUint64(&t.bytesDone, bytes)
	if t.onProgress != nil {
		t.onProgress(Progress{
			ChunksDone:  done,
			ChunksTotal: t.chunksTotal,
			BytesDone:   total,
			BytesTotal:  t.bytesTotal,
		})
	}
}
