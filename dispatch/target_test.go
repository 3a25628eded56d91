// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/vterrors"
)

func TestOfferTaskDedupsConcurrentOffers(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	exec := func(ctx context.Context, task scheduler.Task) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}

	target := New(4, exec, nil)
	task := scheduler.Task{NodeIndex: 7}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target.OfferTask(task)
		}()
	}
	wg.Wait()
	fut := target.GetOrCreateFuture(7) // task still blocked, so this is the in-flight future
	close(release)

	require.NoError(t, fut.Wait(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrCreateFutureBeforeOfferIsSatisfiedByLaterOffer(t *testing.T) {
	exec := func(ctx context.Context, task scheduler.Task) error { return nil }
	target := New(2, exec, nil)

	fut := target.GetOrCreateFuture(3)
	target.OfferTask(scheduler.Task{NodeIndex: 3})

	require.NoError(t, fut.Wait(context.Background()))
}

func TestExecutorErrorPropagatesToFuture(t *testing.T) {
	wantErr := errors.New("boom")
	exec := func(ctx context.Context, task scheduler.Task) error { return wantErr }
	target := New(1, exec, nil)

	fut := target.OfferTaskAndFuture(scheduler.Task{NodeIndex: 1})
	err := fut.Wait(context.Background())
	require.ErrorIs(t, err, wantErr)
}

func TestNodeCanBeRefetchedAfterCompletion(t *testing.T) {
	var calls int32
	exec := func(ctx context.Context, task scheduler.Task) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	target := New(2, exec, nil)

	require.NoError(t, target.OfferTaskAndFuture(scheduler.Task{NodeIndex: 5}).Wait(context.Background()))

	require.NoError(t, target.OfferTaskAndFuture(scheduler.Task{NodeIndex: 5}).Wait(context.Background()))

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCloseDrainsRunningTasks(t *testing.T) {
	started := make(chan struct{})
	exec := func(ctx context.Context, task scheduler.Task) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return nil
	}
	target := New(1, exec, nil)
	target.OfferTask(scheduler.Task{NodeIndex: 1})
	<-started

	require.NoError(t, target.Close(time.Second))
}

func TestCloseForciblyFailsTasksAfterTimeout(t *testing.T) {
	block := make(chan struct{})
	exec := func(ctx context.Context, task scheduler.Task) error {
		<-block
		return nil
	}
	target := New(1, exec, nil)
	target.OfferTask(scheduler.Task{NodeIndex: 1})
	fut := target.GetOrCreateFuture(1)

	err := target.Close(10 * time.Millisecond)
	require.ErrorIs(t, err, vterrors.ErrChannelClosed)
	require.True(t, fut.Done())
	close(block)
}

func TestOfferTaskAfterCloseIsNoop(t *testing.T) {
	exec := func(ctx context.Context, task scheduler.Task) error { return nil }
	target := New(1, exec, nil)
	require.NoError(t, target.Close(time.Second))

	target.OfferTask(scheduler.Task{NodeIndex: 9})
	// No panic, no future created for a dropped offer.
}
