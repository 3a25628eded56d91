// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luxfi/vectorchan/vterrors"
)

func init() {
	Register("http", openHTTPTransport)
	Register("https", openHTTPTransport)
}

// DefaultFetchTimeout bounds a single HTTP range fetch (spec.md §5,
// "Transport fetch has a per-request timeout (default 60s)").
const DefaultFetchTimeout = 60 * time.Second

// httpTransport fetches ranges via HTTP Range requests, probing server
// support with a HEAD request at construction.
type httpTransport struct {
	client  *http.Client
	baseURL string
	size    uint64
	ranges  bool
}

func openHTTPTransport(ctx context.Context, rawURL string) (Transport, error) {
	client := &http.Client{Timeout: DefaultFetchTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building HEAD request: %v", vterrors.ErrTransport, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HEAD %s: %v", vterrors.ErrTransport, rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HEAD %s: status %d", vterrors.ErrTransport, rawURL, resp.StatusCode)
	}

	return &httpTransport{
		client:  client,
		baseURL: rawURL,
		size:    uint64(resp.ContentLength),
		ranges:  resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

func (t *httpTransport) Size() uint64         { return t.size }
func (t *httpTransport) SupportsRanges() bool { return t.ranges }

func (t *httpTransport) Fetch(ctx context.Context, offset, length uint64) ([]byte, error) {
	if offset+length > t.size {
		length = t.size - offset
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building GET request: %v", vterrors.ErrTransport, err)
	}
	if t.ranges {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", vterrors.ErrTransport, t.baseURL, err)
	}
	defer resp.Body.Close()

	if t.ranges && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: expected 206, got %d", vterrors.ErrTransport, resp.StatusCode)
	}
	if !t.ranges && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: expected 200, got %d", vterrors.ErrTransport, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if !t.ranges {
		// Server ignores ranges entirely: discard the prefix ourselves.
		if _, err := io.CopyN(io.Discard, body, int64(offset)); err != nil {
			return nil, fmt.Errorf("%w: discarding prefix: %v", vterrors.ErrTransport, err)
		}
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", vterrors.ErrTransport, err)
	}
	return buf, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
