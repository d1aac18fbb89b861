// Package imu defines the raw sensor sample handed to the calibration
// pipeline by a collector, plus the body-frame quantities derived from it.
package imu

import (
	"github.com/relabs-tech/inertial_calibrator/internal/triad"
)

// SensorType identifies which physical stream a sample belongs to.
type SensorType int

const (
	SensorAccelerometer SensorType = iota
	SensorAccelerometerUncalibrated
	SensorGyroscope
	SensorGyroscopeUncalibrated
	SensorMagnetometer
	SensorMagnetometerUncalibrated
)

// String returns the MQTT/JSON name of the sensor type.
func (t SensorType) String() string {
	switch t {
	case SensorAccelerometer:
		return "accelerometer"
	case SensorAccelerometerUncalibrated:
		return "accelerometer_uncalibrated"
	case SensorGyroscope:
		return "gyroscope"
	case SensorGyroscopeUncalibrated:
		return "gyroscope_uncalibrated"
	case SensorMagnetometer:
		return "magnetometer"
	case SensorMagnetometerUncalibrated:
		return "magnetometer_uncalibrated"
	}
	return "unknown"
}

// Accuracy is the reliability flag reported by the sensor hardware for a
// single sample.
type Accuracy int

const (
	AccuracyUnreliable Accuracy = iota
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

// Sample is a single raw sensor reading in device axes.
//
// Units depend on the stream: m/s² for accelerometer, rad/s for gyroscope,
// µT for magnetometer. The timestamp is monotonic with nanosecond
// resolution; samples within one session share the same clock.
type Sample struct {
	Source    string      `json:"source"`
	Type      SensorType  `json:"type"`
	Values    triad.Triad `json:"values"`
	Bias      triad.Triad `json:"bias"`
	Timestamp int64       `json:"timestamp_ns"`
	Accuracy  Accuracy    `json:"accuracy"`
}

// BodyKinematics holds specific force (m/s²) and angular rate (rad/s) in
// body axes. The processor reuses one instance across calls.
type BodyKinematics struct {
	SpecificForce triad.Triad `json:"specific_force"`
	AngularRate   triad.Triad `json:"angular_rate"`
}

// MagneticFluxDensity is a body-frame magnetic flux density triad in tesla.
type MagneticFluxDensity struct {
	B triad.Triad `json:"b"`
}

// TimedKinematics is the composite sample handed to the measurement
// generator: one per accelerometer tick, with the timestamp expressed in
// seconds relative to the first accelerometer sample of the session.
//
// Angular-rate and flux fields stay zero when built from an
// accelerometer-only sample; gyroscope and magnetometer data reach the
// pipeline through separate bookkeeping.
type TimedKinematics struct {
	Kinematics       BodyKinematics      `json:"kinematics"`
	Flux             MagneticFluxDensity `json:"flux"`
	TimestampSeconds float64             `json:"timestamp_s"`
}
