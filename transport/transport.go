// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport abstracts the range-fetch client the channel pulls
// chunk bytes through (spec.md §4.4). The core depends only on the
// Transport contract; concrete schemes (http://, file://) register
// themselves with a provider registry keyed on URL scheme, mirroring the
// teacher's handler-registration pattern (networking/router) applied to a
// much smaller surface.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Transport is the abstract range-fetch client a remote (or local) vector
// artifact is served over.
type Transport interface {
	// Size returns the total content length of the artifact in bytes.
	Size() uint64
	// SupportsRanges reports whether partial fetches are honored. A
	// transport that cannot range-fetch must still satisfy Fetch by
	// reading and discarding any bytes before offset.
	SupportsRanges() bool
	// Fetch returns exactly length bytes starting at offset. Callers must
	// ensure offset+length <= Size(); Fetch clips only at true EOF.
	// Failures are wrapped in vterrors.ErrTransport.
	Fetch(ctx context.Context, offset, length uint64) ([]byte, error)
	// Close releases any resources (sockets, file descriptors) held by
	// the transport.
	Close() error
}

// Provider opens a Transport for the given URL. Registered providers are
// looked up by the URL's scheme.
type Provider func(ctx context.Context, rawURL string) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register installs a Provider for scheme. Intended to be called from
// package init() by each scheme implementation (see http.go, file.go).
// Re-registering a scheme replaces the previous provider, which is useful
// for tests substituting a mock.
func Register(scheme string, p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = p
}

// Open resolves rawURL's scheme against the provider registry and opens a
// Transport for it.
func Open(ctx context.Context, rawURL string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing transport URL %q: %w", rawURL, err)
	}

	registryMu.RLock()
	p, ok := registry[u.Scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no transport provider registered for scheme %q", u.Scheme)
	}
	return p(ctx, rawURL)
}
