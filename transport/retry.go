// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/luxfi/vectorchan/vterrors"
)

// DefaultMaxAttempts bounds retried fetches (spec.md §4.6.3, "retry with
// exponential backoff up to a bounded attempt count (default 3)").
const DefaultMaxAttempts = 3

// WithRetry wraps next so every Fetch call is retried with exponential
// backoff on transport-level failures, up to maxAttempts. Hash mismatches
// are never surfaced through Transport.Fetch (they're detected a layer up
// in mstate.SaveIfValid), so this wrapper only ever sees and retries
// vterrors.ErrTransport.
func WithRetry(next Transport, maxAttempts int) Transport {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &retryingTransport{next: next, maxAttempts: maxAttempts}
}

type retryingTransport struct {
	next        Transport
	maxAttempts int
}

func (t *retryingTransport) Size() uint64         { return t.next.Size() }
func (t *retryingTransport) SupportsRanges() bool { return t.next.SupportsRanges() }
func (t *retryingTransport) Close() error         { return t.next.Close() }

func (t *retryingTransport) Fetch(ctx context.Context, offset, length uint64) ([]byte, error) {
	var result []byte

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(t.maxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		data, err := t.next.Fetch(ctx, offset, length)
		if err != nil {
			if !errors.Is(err, vterrors.ErrTransport) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = data
		return nil
	}, bo)
	if err != nil {
		return nil, err
	}
	return result, nil
}
