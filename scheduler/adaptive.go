// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	"sync"

	"github.com/luxfi/vectorchan/shape"
)

// adaptiveWindow bounds how many recent requests feed the hit-rate
// estimate (spec.md §4.5.1's "observes recent hit/miss pattern").
const adaptiveWindow = 32

// adaptiveHysteresis is the minimum swing in hit rate before the
// interpolation factor is allowed to move, so a single outlier request
// doesn't whipsaw the strategy between conservative and aggressive.
const adaptiveHysteresis = 0.1

// adaptive is the only strategy that is not a pure function of its
// arguments: it tracks a short rolling window of recent hit ratios
// (valid-on-arrival chunks vs total required) and interpolates its
// selection params between Conservative and Aggressive accordingly. A
// high hit rate (the cache is mostly warm; reads are exploratory or
// re-reads) relaxes toward Aggressive's broader consolidation, since
// over-downloading a mostly-valid region is cheap. A low hit rate (cold
// cache, first pass) tightens toward Conservative to avoid wasting
// bandwidth on large, mostly-wrong guesses.
type adaptive struct {
	mu         sync.Mutex
	samples    []float64
	factor     float64 // last-applied interpolation factor, for hysteresis
	window     int
	hysteresis float64
}

// NewAdaptive returns a fresh Adaptive strategy with no history, starting
// at interpolation factor 0.5 (midway between Conservative's and
// Aggressive's params), using the package's default window and hysteresis.
func NewAdaptive() Strategy {
	return NewAdaptiveWithTuning(adaptiveWindow, adaptiveHysteresis)
}

// NewAdaptiveWithTuning returns a fresh Adaptive strategy with the given
// rolling-window size and hysteresis band; filechannel.Open passes
// config.Config's AdaptiveWindow/AdaptiveHysteresis here.
func NewAdaptiveWithTuning(window int, hysteresis float64) Strategy {
	if window < 1 {
		window = adaptiveWindow
	}
	return &adaptive{factor: 0.5, window: window, hysteresis: hysteresis}
}

func (a *adaptive) ScheduleDownloads(offset, length uint64, sh shape.Shape, valid ValidityView, target Target) error {
	required, err := requiredChunks(offset, length, sh)
	if err != nil {
		return err
	}

	p := a.currentParams(required, valid)
	err = (baseStrategy{NameAdaptive, p}).ScheduleDownloads(offset, length, sh, valid, target)

	a.recordSample(required, valid)
	return err
}

func (a *adaptive) currentParams(required []uint64, valid ValidityView) params {
	a.mu.Lock()
	factor := a.factor
	a.mu.Unlock()

	lo := NewConservative().(baseStrategy).p
	hi := NewAggressive().(baseStrategy).p
	return interpolate(lo, hi, factor)
}

func (a *adaptive) recordSample(required []uint64, valid ValidityView) {
	if len(required) == 0 {
		return
	}
	hits := 0
	for _, k := range required {
		if valid.IsValid(k) {
			hits++
		}
	}
	hitRate := float64(hits) / float64(len(required))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, hitRate)
	if len(a.samples) > a.window {
		a.samples = a.samples[len(a.samples)-a.window:]
	}
	avg := 0.0
	for _, s := range a.samples {
		avg += s
	}
	avg /= float64(len(a.samples))

	if diff := avg - a.factor; diff > a.hysteresis || diff < -a.hysteresis {
		a.factor = avg
	}
}

func interpolate(lo, hi params, factor float64) params {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	lerp := func(a, b float64) float64 { return a + (b-a)*factor }
	lerpU := func(a, b uint64) uint64 {
		v := lerp(float64(a), float64(b))
		if v < 0 {
			v = 0
		}
		return uint64(v + 0.5)
	}
	return params{
		efficiencyThreshold: lerp(lo.efficiencyThreshold, hi.efficiencyThreshold),
		minRequiredCovered:  lerpU(lo.minRequiredCovered, hi.minRequiredCovered),
		prefetchChunks:      lerpU(lo.prefetchChunks, hi.prefetchChunks),
		maxScanLevel:        lerpU(lo.maxScanLevel, hi.maxScanLevel),
	}
}
