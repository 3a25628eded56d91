// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/vectorchan/vterrors"
)

func TestFileTransportFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	tr, err := Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	defer tr.Close()

	require.Equal(t, uint64(len(content)), tr.Size())
	require.True(t, tr.SupportsRanges())

	got, err := tr.Fetch(context.Background(), 4, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("quick"), got)
}

func TestFileTransportClipsAtEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	tr, err := Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	defer tr.Close()

	got, err := tr.Fetch(context.Background(), 3, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("lo"), got)
}

func TestUnregisteredScheme(t *testing.T) {
	_, err := Open(context.Background(), "ftp://example.com/x")
	require.Error(t, err)
}

func TestMemoryTransportFlip(t *testing.T) {
	data := []byte("0123456789")
	m := NewMemory(data)
	m.FlipOffsets = map[uint64]bool{4: true}

	got, err := m.Fetch(context.Background(), 4, 2)
	require.NoError(t, err)
	require.NotEqual(t, data[4:6], got)
	require.Equal(t, 1, m.FetchCount)
}

type alwaysFailTransport struct{ calls int }

func (a *alwaysFailTransport) Size() uint64         { return 100 }
func (a *alwaysFailTransport) SupportsRanges() bool { return true }
func (a *alwaysFailTransport) Close() error         { return nil }
func (a *alwaysFailTransport) Fetch(context.Context, uint64, uint64) ([]byte, error) {
	a.calls++
	return nil, errors.Join(vterrors.ErrTransport, errors.New("simulated failure"))
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	inner := &alwaysFailTransport{}
	tr := WithRetry(inner, 3)

	_, err := tr.Fetch(context.Background(), 0, 10)
	require.Error(t, err)
	require.ErrorIs(t, err, vterrors.ErrTransport)
	require.Equal(t, 3, inner.calls)
}

type flakyTransport struct {
	failuresLeft int
}

func (f *flakyTransport) Size() uint64         { return 100 }
func (f *flakyTransport) SupportsRanges() bool { return true }
func (f *flakyTransport) Close() error         { return nil }
func (f *flakyTransport) Fetch(ctx context.Context, offset, length uint64) ([]byte, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.Join(vterrors.ErrTransport, errors.New("transient"))
	}
	return make([]byte, length), nil
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyTransport{failuresLeft: 2}
	tr := WithRetry(inner, 3)

	data, err := tr.Fetch(context.Background(), 0, 16)
	require.NoError(t, err)
	require.Len(t, data, 16)
}
