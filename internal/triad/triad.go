// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package triad provides the 3-axis vector type used throughout the
// calibration pipeline and the device-to-body frame conversion applied to
// every sensor stream.
package triad

import "math"

// Triad is a 3-axis sensor vector.
type Triad struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean magnitude of the triad.
func (t Triad) Norm() float64 {
	return math.Sqrt(t.X*t.X + t.Y*t.Y + t.Z*t.Z)
}

// Scale returns the triad with every component multiplied by k.
func (t Triad) Scale(k float64) Triad {
	return Triad{X: t.X * k, Y: t.Y * k, Z: t.Z * k}
}

// BodyFrame maps a device-frame measurement m with bias estimate b into the
// body (NED-like) frame:
//
//	x' = my + by
//	y' = mx + bx
//	z' = -(mz + bz)
//
// The same permutation and sign convention applies to accelerometer,
// gyroscope, and magnetometer triads.
func BodyFrame(m, b Triad) Triad {
	return Triad{
		X: m.Y + b.Y,
		Y: m.X + b.X,
		Z: -(m.Z + b.Z),
	}
}
