// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filechannel

import (
	"context"
	"fmt"

	"github.com/luxfi/vectorchan/scheduler"
	"github.com/luxfi/vectorchan/set"
	"github.com/luxfi/vectorchan/vterrors"
)

// Prebuffer ensures every chunk covering [position, position+length) is
// valid, using an aggressive scheduler regardless of the channel's
// configured default strategy (spec.md §4.6). After awaiting every
// scheduled future it re-checks the validity bitmap and fails with
// PrebufferIncomplete if any required chunk remains unset — an explicit
// correctness gate independent of whether the transport reported success.
func (c *Channel) Prebuffer(ctx context.Context, position, length uint64) error {
	if length == 0 || position >= c.sh.TotalSize() {
		return nil
	}
	if remaining := c.sh.TotalSize() - position; length > remaining {
		length = remaining
	}

	required, err := requiredChunkRange(position, length, c.sh)
	if err != nil {
		return err
	}

	missing := make(set.ChunkSet)
	for _, k := range required {
		if !c.state.IsValid(k) {
			missing.Add(k)
		}
	}
	if missing.Len() == 0 {
		return nil
	}

	aggressive := scheduler.NewAggressive()
	ct := &collectingTarget{dispatcher: c.dispatcher, wanted: missing}
	if err := aggressive.ScheduleDownloads(position, length, c.sh, c.state, ct); err != nil {
		return fmt.Errorf("scheduling prebuffer downloads: %w", err)
	}
	for _, fut := range ct.futures {
		if err := fut.Wait(ctx); err != nil {
			return err
		}
	}

	var stillMissing []uint64
	for _, k := range required {
		if !c.state.IsValid(k) {
			stillMissing = append(stillMissing, k)
		}
	}
	if len(stillMissing) > 0 {
		return &vterrors.PrebufferIncompleteError{Missing: stillMissing}
	}
	return nil
}
