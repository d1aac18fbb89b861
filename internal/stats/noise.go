// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats holds the running estimators consumed by the calibration
// pipeline: per-axis triad noise accumulation and sample timing statistics.
package stats

import (
	"math"

	"github.com/relabs-tech/inertial_calibrator/internal/triad"
)

// TriadNoiseEstimator accumulates triad samples and exposes the running
// standard deviation norm and average norm. Uses Welford's algorithm per
// axis so long sessions stay numerically stable.
type TriadNoiseEstimator struct {
	n    int
	mean triad.Triad
	m2   triad.Triad

	sumNorm float64
}

// Add accumulates one triad sample.
func (e *TriadNoiseEstimator) Add(t triad.Triad) {
	e.n++
	nf := float64(e.n)

	dx := t.X - e.mean.X
	e.mean.X += dx / nf
	e.m2.X += dx * (t.X - e.mean.X)

	dy := t.Y - e.mean.Y
	e.mean.Y += dy / nf
	e.m2.Y += dy * (t.Y - e.mean.Y)

	dz := t.Z - e.mean.Z
	e.mean.Z += dz / nf
	e.m2.Z += dz * (t.Z - e.mean.Z)

	e.sumNorm += t.Norm()
}

// Count returns the number of accumulated samples.
func (e *TriadNoiseEstimator) Count() int {
	return e.n
}

// Average returns the per-axis mean of the accumulated samples.
func (e *TriadNoiseEstimator) Average() triad.Triad {
	return e.mean
}

// StandardDeviationNorm returns the norm of the per-axis standard
// deviations. Zero until at least two samples have been accumulated.
func (e *TriadNoiseEstimator) StandardDeviationNorm() float64 {
	if e.n < 2 {
		return 0
	}
	nf := float64(e.n)
	sx := e.m2.X / nf
	sy := e.m2.Y / nf
	sz := e.m2.Z / nf
	return math.Sqrt(sx + sy + sz)
}

// AverageNorm returns the mean of the sample magnitudes.
func (e *TriadNoiseEstimator) AverageNorm() float64 {
	if e.n == 0 {
		return 0
	}
	return e.sumNorm / float64(e.n)
}

// Reset discards all accumulated state.
func (e *TriadNoiseEstimator) Reset() {
	*e = TriadNoiseEstimator{}
}
