// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package set

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	require := require.New(t)

	// Empty set
	s1 := Of[int]()
	require.Equal(0, s1.Len())

	// Set with elements
	s2 := Of(1, 2, 3)
	require.Equal(3, s2.Len())
	require.True(s2.Contains(1))
	require.True(s2.Contains(2))
	require.True(s2.Contains(3))

	// Set with duplicates
	s3 := Of(1, 2, 2, 3, 3, 3)
	require.Equal(3, s3.Len())
}

func TestAdd(t *testing.T) {
	require := require.New(t)

	s := make(Set[string])
	require.Equal(0, s.Len())

	// Add single element
	s.Add("a")
	require.Equal(1, s.Len())
	require.True(s.Contains("a"))

	// Add multiple elements
	s.Add("b", "c")
	require.Equal(3, s.Len())
	require.True(s.Contains("b"))
	require.True(s.Contains("c"))

	// Add duplicate
	s.Add("a")
	require.Equal(3, s.Len())
}

func TestContains(t *testing.T) {
	require := require.New(t)

	s := Of("a", "b", "c")
	require.True(s.Contains("a"))
	require.True(s.Contains("b"))
	require.True(s.Contains("c"))
	require.False(s.Contains("d"))
}
