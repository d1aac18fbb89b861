// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/inertial_calibrator/internal/triad"
	"github.com/relabs-tech/inertial_calibrator/internal/units"
)

// Motion profile of the mock: a repeating cycle of stillness followed by a
// rotation burst, so a calibration session sees alternating static and
// dynamic intervals without hardware.
const (
	mockCyclePeriod = 60.0 // seconds
	mockStaticSpan  = 40.0 // seconds of stillness per cycle
)

type mockSource struct {
	start time.Time
}

// NewMockIMUSource creates a mock IMU that generates smooth, repeatable
// values including a magnetometer channel.
func NewMockIMUSource() IMUReader {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Read() (Reading, error) {
	elapsed := time.Since(m.start).Seconds()
	phase := math.Mod(elapsed, mockCyclePeriod)

	// Sensor noise floor, present in every phase.
	jitter := 0.004 * math.Sin(2*math.Pi*37*elapsed)

	r := Reading{
		Acceleration: triad.Triad{
			X: jitter,
			Y: -jitter,
			Z: units.StandardGravity + 0.004*math.Cos(2*math.Pi*29*elapsed),
		},
		AngularRate: triad.Triad{
			X: 0.001 * math.Sin(2*math.Pi*11*elapsed),
			Y: 0.001 * math.Cos(2*math.Pi*13*elapsed),
			Z: 0.001 * math.Sin(2*math.Pi*17*elapsed),
		},
		// Roughly an earth field in µT, slowly wandering.
		MagneticField: triad.Triad{
			X: 22.0 + 0.05*math.Sin(0.1*elapsed),
			Y: 5.0 + 0.05*math.Cos(0.1*elapsed),
			Z: -42.0 + 0.05*math.Sin(0.07*elapsed),
		},
		HasMag:    true,
		Timestamp: time.Now().UnixNano(),
	}

	if phase >= mockStaticSpan {
		// Rotation burst: strong rates plus the acceleration wobble a
		// hand-held rotation produces.
		r.AngularRate.X += 1.2 * math.Sin(0.8*elapsed)
		r.AngularRate.Y += 0.9 * math.Cos(0.6*elapsed)
		r.AngularRate.Z += 1.5 * math.Sin(0.5*elapsed)
		r.Acceleration.X += 2.0 * math.Sin(1.3*elapsed)
		r.Acceleration.Y += 1.5 * math.Cos(1.1*elapsed)
		r.Acceleration.Z += 1.0 * math.Sin(0.9*elapsed)
	}

	return r, nil
}
