// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mathutil provides overflow-checked arithmetic over uint64 byte
// offsets and lengths, used by shape so that S, C, and
// position+length computations never silently wrap.
package mathutil

import (
	"errors"
	"math"
)

var ErrOverflow = errors.New("overflow")

// Add64 returns a + b with overflow detection.
func Add64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Min64 returns the minimum of two uint64 values.
func Min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
