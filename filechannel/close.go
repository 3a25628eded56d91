// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filechannel

import "fmt"

// Force flushes the cache file and the state file durably, per spec.md
// §4.6 and §5's "before close() or force(true) returns, all set bits must
// be on disk".
func (c *Channel) Force() error {
	if err := c.cache.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := c.state.Flush(); err != nil {
		return fmt.Errorf("flushing state: %w", err)
	}
	return nil
}

// Close drains the dispatcher (waiting for outstanding tasks up to the
// configured drain timeout), flushes, and releases every resource the
// channel holds. Safe to call more than once; only the first call's
// result is returned.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.closeLocked()
	})
	return c.closeErr
}

func (c *Channel) closeLocked() error {
	// A drain timeout forcibly fails pending futures (spec.md §5); it is
	// not itself a reason to skip releasing the rest of the resources.
	if drainErr := c.dispatcher.Close(c.cfg.CloseDrainTimeout); drainErr != nil {
		c.log.Warn("dispatcher drain did not complete cleanly", "error", drainErr)
	}

	forceErr := c.Force()
	tpErr := c.tp.Close()
	cacheErr := c.cache.Close()
	stateErr := c.state.Close()

	for _, err := range []error{forceErr, tpErr, cacheErr, stateErr} {
		if err != nil {
			return err
		}
	}
	c.log.Info("channel closed")
	return nil
}
