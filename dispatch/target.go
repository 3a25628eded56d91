// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/vterrors"
	"github.com/luxfi/vectorchan/vtmetrics"
)

// Executor performs one node-download task: fetching, verifying, and
// persisting its covered chunks. Supplied by filechannel, which closes
// over its transport, state, and cache file.
type Executor func(ctx context.Context, task scheduler.Task) error

// SchedulingTarget is the dedup point a scheduler.Strategy offers tasks
// to, and the bounded worker pool that executes them. Implements
// scheduler.Target.
type SchedulingTarget struct {
	mu       sync.Mutex
	inFlight map[uint64]*SharedFuture
	closed   bool

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	exec    Executor
	metrics *vtmetrics.Metrics
}

// New returns a SchedulingTarget bounded to concurrency simultaneous
// tasks, executing each offered task with exec. metrics may be nil.
func New(concurrency int, exec Executor, metrics *vtmetrics.Metrics) *SchedulingTarget {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SchedulingTarget{
		inFlight: make(map[uint64]*SharedFuture),
		sem:      semaphore.NewWeighted(int64(concurrency)),
		exec:     exec,
		metrics:  metrics,
	}
}

// OfferTask implements scheduler.Target: it dedupes by node index and
// spawns exactly one worker goroutine per node with no task already
// running (a GetOrCreateFuture placeholder is satisfied by this offer).
func (t *SchedulingTarget) OfferTask(task scheduler.Task) {
	t.OfferTaskAndFuture(task)
}

// OfferTaskAndFuture is OfferTask's non-interface superset: it returns the
// node's SharedFuture from the same locked section that performs the
// dedup check, so a caller that needs to await a specific offered task
// (filechannel's read path, per spec.md §4.6.1 step 5b) never risks
// racing a future that resolved and was forgotten between the offer and a
// later, separate lookup.
func (t *SchedulingTarget) OfferTaskAndFuture(task scheduler.Task) *SharedFuture {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	fut, ok := t.inFlight[task.NodeIndex]
	if !ok {
		fut = newSharedFuture()
		t.inFlight[task.NodeIndex] = fut
	}
	deduped := fut.started
	fut.started = true
	t.mu.Unlock()

	if deduped {
		if t.metrics != nil {
			t.metrics.DedupedFetches.Inc()
		}
		return fut
	}

	if t.metrics != nil {
		t.metrics.NodesScheduled.WithLabelValues(string(task.Strategy)).Inc()
	}
	t.wg.Add(1)
	go t.run(task, fut)
	return fut
}

// GetOrCreateFuture returns the shared future for nodeIndex, creating a
// placeholder if no task has been offered for it yet (the caller is then
// responsible for ensuring a task eventually gets offered, per spec.md
// §4.5's contract).
func (t *SchedulingTarget) GetOrCreateFuture(nodeIndex uint64) *SharedFuture {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.inFlight[nodeIndex]; ok {
		return f
	}
	f := newSharedFuture()
	t.inFlight[nodeIndex] = f
	return f
}

func (t *SchedulingTarget) run(task scheduler.Task, fut *SharedFuture) {
	defer t.wg.Done()

	ctx := context.Background()
	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.forget(task.NodeIndex)
		fut.complete(err)
		return
	}
	if t.metrics != nil {
		t.metrics.InFlightTasks.Inc()
	}

	var err error
	if t.isClosed() {
		err = vterrors.ErrChannelClosed
	} else {
		err = t.exec(ctx, task)
	}

	t.sem.Release(1)
	if t.metrics != nil {
		t.metrics.InFlightTasks.Dec()
	}

	// Forget before completing, so a requester woken by the completion
	// that offers the node again gets a fresh task, not this resolved one.
	t.forget(task.NodeIndex)
	fut.complete(err)
}

// forget removes a resolved node's future from the dedup map so a later,
// independent request for the same node (e.g. after a prior attempt
// failed) triggers a fresh fetch rather than replaying a stale result.
func (t *SchedulingTarget) forget(nodeIndex uint64) {
	t.mu.Lock()
	delete(t.inFlight, nodeIndex)
	t.mu.Unlock()
}

func (t *SchedulingTarget) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close signals shutdown and waits up to drainTimeout for outstanding
// tasks to finish. Tasks already running are allowed to complete (their
// state updates are beneficial, spec.md §5); any future still unresolved
// after the timeout is forcibly failed with vterrors.ErrChannelClosed.
func (t *SchedulingTarget) Close(drainTimeout time.Duration) error {
	t.mu.Lock()
	t.closed = true
	pending := make([]*SharedFuture, 0, len(t.inFlight))
	for _, f := range t.inFlight {
		pending = append(pending, f)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(drainTimeout):
		for _, f := range pending {
			if !f.Done() {
				f.complete(fmt.Errorf("%w: drain timeout exceeded", vterrors.ErrChannelClosed))
			}
		}
		return fmt.Errorf("%w: drain timeout exceeded after %s", vterrors.ErrChannelClosed, drainTimeout)
	}
}
