// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package filechannel implements the verified, resumable, range-fetching
// file channel: the public Open/Read/Prebuffer/Force/Close surface that
// ties shape, merkleref, mstate, transport, scheduler, and dispatch
// together (spec.md §4.6). Grounded on the constructor-acquires /
// Close()-releases resource discipline used throughout the teacher (e.g.
// timeout.NewManager / Manager.Stop), generalized from a single timer
// wheel to a cache file + state file + transport + worker pool bundle.
package filechannel

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/luxfi/vectorchan/config"
	"github.com/luxfi/vectorchan/dispatch"
	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/mstate"
	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/shape"
	"github.com/luxfi/vectorchan/transport"
	"github.com/luxfi/vectorchan/vterrors"
	"github.com/luxfi/vectorchan/vtlog"
	"github.com/luxfi/vectorchan/vtmetrics"
)

// Channel is the verified async file channel described by spec.md §4.6:
// it serves reads against a local cache file, fetching and verifying only
// the chunks a given read actually needs, and persists progress so a
// restart resumes rather than re-fetching already-valid chunks.
type Channel struct {
	sh    shape.Shape
	ref   *merkleref.Reference
	state *mstate.State

	cache *os.File

	tp         transport.Transport
	strategy   scheduler.Strategy
	dispatcher *dispatch.SchedulingTarget

	cfg     config.Config
	log     vtlog.Logger
	metrics *vtmetrics.Metrics

	closeOnce sync.Once
	closeErr  error
}

// Open acquires every resource the channel needs: the cache file (opened
// or created and sized to ref.Shape().TotalSize()), the state file
// (loaded if present, else freshly derived from ref), and a Transport for
// remoteURL (whose reported size must match the shape's). Any failure
// after partial acquisition rolls back what was already opened.
func Open(ctx context.Context, cachePath, statePath, remoteURL string, ref *merkleref.Reference, cfg config.Config, log vtlog.Logger, metrics *vtmetrics.Metrics) (*Channel, error) {
	if log == nil {
		log = vtlog.NewNoOp()
	}
	if metrics == nil {
		metrics = vtmetrics.NewNoOp()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sh := ref.Shape()

	cache, err := openSizedCacheFile(cachePath, sh.TotalSize())
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}

	st, err := openOrCreateState(statePath, ref)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("opening state file: %w", err)
	}

	tp, err := transport.Open(ctx, remoteURL)
	if err != nil {
		cache.Close()
		st.Close()
		return nil, fmt.Errorf("opening transport %s: %w", remoteURL, err)
	}
	if tp.Size() != sh.TotalSize() {
		tp.Close()
		cache.Close()
		st.Close()
		return nil, fmt.Errorf("%w: transport reports size %d, shape wants %d", vterrors.ErrShapeMismatch, tp.Size(), sh.TotalSize())
	}
	tp = transport.WithRetry(tp, cfg.TransportRetryAttempts)

	strat, err := scheduler.New(scheduler.Name(cfg.Strategy))
	if err != nil {
		tp.Close()
		cache.Close()
		st.Close()
		return nil, err
	}
	if cfg.Strategy == config.Adaptive {
		strat = scheduler.NewAdaptiveWithTuning(cfg.AdaptiveWindow, cfg.AdaptiveHysteresis)
	}

	c := &Channel{
		sh:       sh,
		ref:      ref,
		state:    st,
		cache:    cache,
		tp:       tp,
		strategy: strat,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
	c.dispatcher = dispatch.New(cfg.DispatcherConcurrency, c.executeTask, metrics)

	log.Info("channel opened", "cache", cachePath, "state", statePath, "remote", remoteURL, "size", sh.TotalSize())
	return c, nil
}

func openSizedCacheFile(path string, size uint64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func openOrCreateState(path string, ref *merkleref.Reference) (*mstate.State, error) {
	if _, err := os.Stat(path); err == nil {
		return mstate.Load(path, ref)
	}
	return mstate.FromRef(ref, path)
}

// Size returns S, the total content size in bytes.
func (c *Channel) Size() uint64 { return c.sh.TotalSize() }
