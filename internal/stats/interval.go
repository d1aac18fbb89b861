// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stats

import (
	"fmt"
	"math"
)

// DefaultMaxTimeIntervalSamples bounds how many timestamps the interval
// estimator accumulates before it stops updating. Enough for several
// minutes of data at typical IMU rates.
const DefaultMaxTimeIntervalSamples = 100_000

// TimeIntervalEstimator accumulates sample timestamps (seconds, relative to
// an arbitrary epoch) and estimates the average interval between
// consecutive samples along with its variance.
type TimeIntervalEstimator struct {
	maxSamples int

	n    int // timestamps seen
	last float64

	intervals int
	mean      float64
	m2        float64
}

// NewTimeIntervalEstimator returns an estimator that stops accumulating
// after maxSamples timestamps.
func NewTimeIntervalEstimator(maxSamples int) (*TimeIntervalEstimator, error) {
	if maxSamples < 2 {
		return nil, fmt.Errorf("max samples must be at least 2, got %d", maxSamples)
	}
	return &TimeIntervalEstimator{maxSamples: maxSamples}, nil
}

// AddTimestamp accumulates one timestamp. Returns false once the maximum
// sample count has been reached; the call is then a no-op.
func (e *TimeIntervalEstimator) AddTimestamp(seconds float64) bool {
	if e.n >= e.maxSamples {
		return false
	}
	if e.n > 0 {
		dt := seconds - e.last
		e.intervals++
		nf := float64(e.intervals)
		d := dt - e.mean
		e.mean += d / nf
		e.m2 += d * (dt - e.mean)
	}
	e.last = seconds
	e.n++
	return true
}

// Count returns the number of accumulated timestamps.
func (e *TimeIntervalEstimator) Count() int {
	return e.n
}

// MaxSamples returns the configured accumulation limit.
func (e *TimeIntervalEstimator) MaxSamples() int {
	return e.maxSamples
}

// AverageTimeInterval returns the mean interval between consecutive
// timestamps. ok is false until at least two timestamps have been seen.
func (e *TimeIntervalEstimator) AverageTimeInterval() (float64, bool) {
	if e.intervals == 0 {
		return 0, false
	}
	return e.mean, true
}

// TimeIntervalVariance returns the variance of the accumulated intervals.
// ok is false until at least two intervals have been seen.
func (e *TimeIntervalEstimator) TimeIntervalVariance() (float64, bool) {
	if e.intervals < 2 {
		return 0, false
	}
	return e.m2 / float64(e.intervals), true
}

// TimeIntervalStandardDeviation returns the standard deviation of the
// accumulated intervals.
func (e *TimeIntervalEstimator) TimeIntervalStandardDeviation() (float64, bool) {
	v, ok := e.TimeIntervalVariance()
	if !ok {
		return 0, false
	}
	return math.Sqrt(v), true
}

// Reset discards accumulated timestamps, keeping the configured maximum
// sample count.
func (e *TimeIntervalEstimator) Reset() {
	max := e.maxSamples
	*e = TimeIntervalEstimator{maxSamples: max}
}
