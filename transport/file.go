// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/luxfi/vectorchan/vterrors"
)

func init() {
	Register("file", openFileTransport)
}

// fileTransport serves range fetches from a local file via pread-style
// offsetted reads (spec.md §4.7's worker pattern, applied here to reads
// instead of the build pipeline).
type fileTransport struct {
	f    *os.File
	size uint64
}

func openFileTransport(_ context.Context, rawURL string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing file URL: %v", vterrors.ErrTransport, err)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", vterrors.ErrTransport, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: statting %s: %v", vterrors.ErrTransport, path, err)
	}
	return &fileTransport{f: f, size: uint64(info.Size())}, nil
}

func (t *fileTransport) Size() uint64         { return t.size }
func (t *fileTransport) SupportsRanges() bool { return true }

func (t *fileTransport) Fetch(_ context.Context, offset, length uint64) ([]byte, error) {
	if offset >= t.size {
		return nil, vterrors.NewRangeError("fetch", offset, length, fmt.Errorf("%w: offset beyond size %d", vterrors.ErrTransport, t.size))
	}
	if offset+length > t.size {
		length = t.size - offset
	}
	buf := make([]byte, length)
	if _, err := t.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes at %d: %v", vterrors.ErrTransport, length, offset, err)
	}
	return buf, nil
}

func (t *fileTransport) Close() error {
	return t.f.Close()
}
