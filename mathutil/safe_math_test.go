// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		err  error
	}{
		{"normal addition", 10, 20, 30, nil},
		{"zero addition", 0, 0, 0, nil},
		{"max value", math.MaxUint64 - 1, 1, math.MaxUint64, nil},
		{"overflow", math.MaxUint64, 1, 0, ErrOverflow},
		{"overflow both large", math.MaxUint64 - 10, 20, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add64(tt.a, tt.b)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMin64(t *testing.T) {
	require.Equal(t, uint64(1), Min64(1, 2))
	require.Equal(t, uint64(5), Min64(5, 5))
}
