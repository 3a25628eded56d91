// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatch implements the dedup map and bounded worker pool that
// drive node-download tasks over a transport (spec.md §4.5, §5). Grounded
// on the mutex-guarded map-of-in-flight-work, drained-on-shutdown pattern
// used by the teacher's timeout manager (read from
// .backup_old/networking/timeout/manager.go before its deletion in the
// trim pass — see DESIGN.md); concurrency is bounded with
// golang.org/x/sync/semaphore rather than errgroup, since tasks arrive one
// at a time as the scheduler offers them rather than as one fixed batch.
package dispatch

import (
	"context"
	"sync"
)

// SharedFuture is the completion signal multiple concurrent requesters for
// the same tree node share (spec.md §4.5's SharedFuture<()>, §5's
// dedup-and-shared-state model). Normally exactly one goroutine completes
// it, but Close's drain-timeout path may force-complete a future while its
// task's run() goroutine is still blocked in Executor — once() ensures that
// goroutine's later, natural completion is a no-op instead of a second
// close of done.
type SharedFuture struct {
	done chan struct{}
	once sync.Once
	err  error
	// started is set, under SchedulingTarget.mu, once a task has been
	// spawned for this future; a GetOrCreateFuture placeholder starts unset.
	started bool
}

func newSharedFuture() *SharedFuture {
	return &SharedFuture{done: make(chan struct{})}
}

// complete resolves the future. Safe to call more than once; only the
// first call's error is kept.
func (f *SharedFuture) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves or ctx is done. Cancelling ctx
// unregisters this particular waiter; it does not cancel the underlying
// task (spec.md §5, "cancelling a read future ... leaves tasks running").
func (f *SharedFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether the future has resolved, without blocking.
func (f *SharedFuture) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
