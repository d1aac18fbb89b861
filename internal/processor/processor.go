// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package processor coordinates the three sensor sample streams feeding a
// calibration session.
//
// The Processor converts every raw sample into a body-frame quantity,
// forwards one timed composite sample per accelerometer tick to the
// measurement generator, and maintains derived session statistics (sample
// timing, base noise levels, initial magnetic field norm) that are computed
// lazily and frozen for the rest of the session. It also re-exposes the
// generator's lifecycle callbacks under its own identity.
//
// Calls are synchronous and single-threaded: the collector layer serializes
// sample delivery, and listeners must not call back into Process* methods.
package processor

import (
	"github.com/relabs-tech/inertial_calibrator/internal/generator"
	"github.com/relabs-tech/inertial_calibrator/internal/imu"
	"github.com/relabs-tech/inertial_calibrator/internal/stats"
	"github.com/relabs-tech/inertial_calibrator/internal/triad"
	"github.com/relabs-tech/inertial_calibrator/internal/units"
)

// measurementGenerator is the slice of the generator the processor drives.
// *generator.MeasurementGenerator satisfies it; tests substitute spies.
type measurementGenerator interface {
	SetListener(generator.Listener)
	Process(imu.TimedKinematics) error
	Status() generator.Status
	SetTimeInterval(seconds float64) error
	TimeInterval() float64
	Reset()

	WindowSize() int
	SetWindowSize(int) error
	InitialStaticSamples() int
	SetInitialStaticSamples(int) error
	ThresholdFactor() float64
	SetThresholdFactor(float64) error
	InstantaneousNoiseLevelFactor() float64
	SetInstantaneousNoiseLevelFactor(float64) error
	BaseNoiseLevelAbsoluteThreshold() float64
	SetBaseNoiseLevelAbsoluteThreshold(float64) error
	MinStaticSamples() int
	SetMinStaticSamples(int) error
	MaxDynamicSamples() int
	SetMaxDynamicSamples(int) error
}

// noiseEstimator is the slice of stats.TriadNoiseEstimator the processor
// consumes.
type noiseEstimator interface {
	Add(triad.Triad)
	StandardDeviationNorm() float64
	AverageNorm() float64
	Reset()
}

// intervalEstimator is the slice of stats.TimeIntervalEstimator the
// processor consumes.
type intervalEstimator interface {
	AddTimestamp(seconds float64) bool
	AverageTimeInterval() (float64, bool)
	TimeIntervalVariance() (float64, bool)
	TimeIntervalStandardDeviation() (float64, bool)
	Reset()
}

// Listener carries the optional public callback slots. Every callback
// reports the processor itself as source; unset slots are skipped.
type Listener struct {
	OnInitializationStarted   func(p *Processor)
	OnInitializationCompleted func(p *Processor, baseNoiseLevel float64)
	OnError                   func(p *Processor, reason ErrorReason)

	OnStaticIntervalDetected  func(p *Processor)
	OnDynamicIntervalDetected func(p *Processor)
	OnStaticIntervalSkipped   func(p *Processor)
	OnDynamicIntervalSkipped  func(p *Processor)

	OnGeneratedAccelerometerMeasurement func(p *Processor, m generator.Measurement)
	OnGeneratedGyroscopeMeasurement     func(p *Processor, m generator.Measurement)
	OnGeneratedMagnetometerMeasurement  func(p *Processor, m generator.Measurement)

	OnReset func(p *Processor)
}

// cachedValue is a write-once session statistic.
type cachedValue struct {
	value float64
	set   bool
}

// Processor owns one calibration session: the measurement generator, the
// timing and noise estimators, and the reusable body-frame scratch buffers.
// One instance per session; Reset starts a fresh session in place.
type Processor struct {
	// Listener survives Reset; register before feeding samples.
	Listener Listener

	gen           measurementGenerator
	timeEstimator intervalEstimator
	gyroNoise     noiseEstimator
	magNoise      noiseEstimator

	// Shared scratch, reused across calls to avoid per-sample allocation.
	kinematics imu.BodyKinematics
	flux       imu.MagneticFluxDensity

	initialized           bool
	unreliable            bool
	initialAccelTimestamp int64

	accelProcessed int
	gyroProcessed  int
	magProcessed   int

	gyroBaseNoise   cachedValue
	magBaseNoise    cachedValue
	initialFluxNorm cachedValue

	staticSkipped  bool
	dynamicSkipped bool
}

// New returns a processor wired to a fresh measurement generator and
// estimators with default configuration.
func New() *Processor {
	te, err := stats.NewTimeIntervalEstimator(stats.DefaultMaxTimeIntervalSamples)
	if err != nil {
		// Unreachable with the package default.
		panic(err)
	}
	p := &Processor{
		gen:           generator.New(),
		timeEstimator: te,
		gyroNoise:     &stats.TriadNoiseEstimator{},
		magNoise:      &stats.TriadNoiseEstimator{},
	}
	p.gen.SetListener(p.bridge())
	return p
}

// bridge builds the single internal generator listener that re-emits every
// callback through the processor's own listener slots.
func (p *Processor) bridge() generator.Listener {
	return generator.Listener{
		OnInitializationStarted: func() {
			if p.Listener.OnInitializationStarted != nil {
				p.Listener.OnInitializationStarted(p)
			}
		},
		OnInitializationCompleted: func(baseNoiseLevel float64) {
			if p.Listener.OnInitializationCompleted != nil {
				p.Listener.OnInitializationCompleted(p, baseNoiseLevel)
			}
		},
		OnError: func(reason generator.ErrorReason) {
			if p.Listener.OnError != nil {
				p.Listener.OnError(p, p.MapErrorReason(reason))
			}
		},
		OnStaticIntervalDetected: func() {
			if p.Listener.OnStaticIntervalDetected != nil {
				p.Listener.OnStaticIntervalDetected(p)
			}
		},
		OnDynamicIntervalDetected: func() {
			if p.Listener.OnDynamicIntervalDetected != nil {
				p.Listener.OnDynamicIntervalDetected(p)
			}
		},
		OnStaticIntervalSkipped: func() {
			p.staticSkipped = true
			if p.Listener.OnStaticIntervalSkipped != nil {
				p.Listener.OnStaticIntervalSkipped(p)
			}
		},
		OnDynamicIntervalSkipped: func() {
			p.dynamicSkipped = true
			if p.Listener.OnDynamicIntervalSkipped != nil {
				p.Listener.OnDynamicIntervalSkipped(p)
			}
		},
		OnGeneratedAccelerometerMeasurement: func(m generator.Measurement) {
			if p.Listener.OnGeneratedAccelerometerMeasurement != nil {
				p.Listener.OnGeneratedAccelerometerMeasurement(p, m)
			}
		},
		OnGeneratedGyroscopeMeasurement: func(m generator.Measurement) {
			if p.Listener.OnGeneratedGyroscopeMeasurement != nil {
				p.Listener.OnGeneratedGyroscopeMeasurement(p, m)
			}
		},
		OnGeneratedMagnetometerMeasurement: func(m generator.Measurement) {
			if p.Listener.OnGeneratedMagnetometerMeasurement != nil {
				p.Listener.OnGeneratedMagnetometerMeasurement(p, m)
			}
		},
		OnReset: func() {
			if p.Listener.OnReset != nil {
				p.Listener.OnReset(p)
			}
		},
	}
}

// ---------- Sample handlers ----------

// ProcessAccelerometerMeasurement feeds one accelerometer sample through
// the session: timing bookkeeping, frame conversion, and exactly one
// generator process call.
func (p *Processor) ProcessAccelerometerMeasurement(s imu.Sample) {
	p.checkAccuracy(s)

	first := p.accelProcessed == 0
	if p.initialAccelTimestamp == 0 {
		// Reference epoch for the whole session.
		p.initialAccelTimestamp = s.Timestamp
	}
	relative := float64(s.Timestamp-p.initialAccelTimestamp) * 1e-9
	if !first {
		p.timeEstimator.AddTimestamp(relative)
	}

	// Angular-rate and flux fields stay zero: gyroscope and magnetometer
	// data arrive on separate paths and are not time-fused here.
	composite := imu.TimedKinematics{
		Kinematics: imu.BodyKinematics{
			SpecificForce: triad.BodyFrame(s.Values, s.Bias),
		},
		TimestampSeconds: relative,
	}
	p.gen.Process(composite)
	p.accelProcessed++

	if !p.initialized && p.gen.Status() != generator.StatusInitializing {
		// First transition away from initialization: hand the measured
		// sample cadence to the generator, exactly once per session.
		avg, _ := p.timeEstimator.AverageTimeInterval()
		p.gen.SetTimeInterval(avg)
		p.initialized = true
	}
}

// ProcessGyroscopeMeasurement converts one gyroscope sample into the shared
// body-frame kinematics buffer and maintains the angular-rate noise
// statistics.
func (p *Processor) ProcessGyroscopeMeasurement(s imu.Sample) {
	p.checkAccuracy(s)

	p.kinematics.AngularRate = triad.BodyFrame(s.Values, s.Bias)
	p.gyroProcessed++

	if !p.initialized {
		// Initial stationary period: keep accumulating.
		p.gyroNoise.Add(p.kinematics.AngularRate)
	} else if !p.gyroBaseNoise.set {
		// First opportunity after initialization: freeze the base noise
		// level. The accumulator is not queried again this session.
		p.gyroBaseNoise = cachedValue{value: p.gyroNoise.StandardDeviationNorm(), set: true}
	}
}

// ProcessMagnetometerMeasurement converts one magnetometer sample (µT in
// device axes) into the shared body-frame flux buffer (tesla) and maintains
// the flux-density noise statistics.
func (p *Processor) ProcessMagnetometerMeasurement(s imu.Sample) {
	p.checkAccuracy(s)

	values := s.Values.Scale(units.TeslaPerMicroTesla)
	bias := s.Bias.Scale(units.TeslaPerMicroTesla)
	p.flux.B = triad.BodyFrame(values, bias)
	p.magProcessed++

	if !p.initialized {
		p.magNoise.Add(p.flux.B)
	} else if !p.magBaseNoise.set && !p.initialFluxNorm.set {
		// Both caches freeze together from one accumulator query pair.
		p.magBaseNoise = cachedValue{value: p.magNoise.StandardDeviationNorm(), set: true}
		p.initialFluxNorm = cachedValue{value: p.magNoise.AverageNorm(), set: true}
	}
}

// checkAccuracy flags the session unreliable the first time a sample
// reports degraded hardware accuracy. The flag sticks until Reset.
func (p *Processor) checkAccuracy(s imu.Sample) {
	if s.Accuracy != imu.AccuracyUnreliable || p.unreliable {
		return
	}
	p.unreliable = true
	if p.Listener.OnError != nil {
		p.Listener.OnError(p, ErrorUnreliableSensor)
	}
}

// ---------- Derived state ----------

// Status returns the public session status. An unreliable sensor overrides
// whatever the generator reports.
func (p *Processor) Status() Status {
	if p.unreliable {
		return StatusFailed
	}
	return statusFromGenerator(p.gen.Status())
}

// MapErrorReason translates a generator error into the public reason. Once
// the session is unreliable every reason maps to ErrorUnreliableSensor.
func (p *Processor) MapErrorReason(reason generator.ErrorReason) ErrorReason {
	if p.unreliable {
		return ErrorUnreliableSensor
	}
	switch reason {
	case generator.SuddenExcessiveMovement:
		return ErrorSuddenExcessiveMovementDuringInitialization
	default:
		return ErrorOverallExcessiveMovementDuringInitialization
	}
}

// Initialized reports whether the generator has left its initialization
// phase this session.
func (p *Processor) Initialized() bool { return p.initialized }

// Unreliable reports whether degraded sensor accuracy was seen this session.
func (p *Processor) Unreliable() bool { return p.unreliable }

// InitialAccelerometerTimestamp returns the session epoch in nanoseconds,
// zero while unset.
func (p *Processor) InitialAccelerometerTimestamp() int64 { return p.initialAccelTimestamp }

// AccelerometerProcessedSamples returns the accelerometer sample count.
func (p *Processor) AccelerometerProcessedSamples() int { return p.accelProcessed }

// GyroscopeProcessedSamples returns the gyroscope sample count.
func (p *Processor) GyroscopeProcessedSamples() int { return p.gyroProcessed }

// MagnetometerProcessedSamples returns the magnetometer sample count.
func (p *Processor) MagnetometerProcessedSamples() int { return p.magProcessed }

// StaticIntervalSkipped reports whether any static interval was discarded
// as too short this session.
func (p *Processor) StaticIntervalSkipped() bool { return p.staticSkipped }

// DynamicIntervalSkipped reports whether any dynamic interval was discarded
// as too long this session.
func (p *Processor) DynamicIntervalSkipped() bool { return p.dynamicSkipped }

// AverageTimeInterval returns the mean accelerometer sample interval in
// seconds. Unavailable until the session is initialized.
func (p *Processor) AverageTimeInterval() (float64, bool) {
	if !p.initialized {
		return 0, false
	}
	return p.timeEstimator.AverageTimeInterval()
}

// TimeIntervalVariance returns the variance of the accelerometer sample
// interval. Unavailable until the session is initialized.
func (p *Processor) TimeIntervalVariance() (float64, bool) {
	if !p.initialized {
		return 0, false
	}
	return p.timeEstimator.TimeIntervalVariance()
}

// TimeIntervalStandardDeviation returns the standard deviation of the
// accelerometer sample interval. Unavailable until the session is
// initialized.
func (p *Processor) TimeIntervalStandardDeviation() (float64, bool) {
	if !p.initialized {
		return 0, false
	}
	return p.timeEstimator.TimeIntervalStandardDeviation()
}

// GyroscopeBaseNoiseLevel returns the frozen angular-rate noise level in
// rad/s. Unavailable until cached after initialization.
func (p *Processor) GyroscopeBaseNoiseLevel() (float64, bool) {
	return p.gyroBaseNoise.value, p.gyroBaseNoise.set
}

// MagnetometerBaseNoiseLevel returns the frozen flux-density noise level in
// tesla. Unavailable until cached after initialization.
func (p *Processor) MagnetometerBaseNoiseLevel() (float64, bool) {
	return p.magBaseNoise.value, p.magBaseNoise.set
}

// InitialMagneticFluxDensityNorm returns the frozen average magnetic field
// magnitude in tesla. Unavailable until cached after initialization.
func (p *Processor) InitialMagneticFluxDensityNorm() (float64, bool) {
	return p.initialFluxNorm.value, p.initialFluxNorm.set
}

// BodyKinematics returns the current shared body-frame kinematics buffer.
func (p *Processor) BodyKinematics() imu.BodyKinematics { return p.kinematics }

// MagneticFluxDensity returns the current shared body-frame flux buffer.
func (p *Processor) MagneticFluxDensity() imu.MagneticFluxDensity { return p.flux }

// ---------- Configuration surface (forwarded to the generator) ----------

// WindowSize returns the detector window size.
func (p *Processor) WindowSize() int { return p.gen.WindowSize() }

// SetWindowSize forwards the detector window size; out-of-range values are
// rejected and the previous value kept.
func (p *Processor) SetWindowSize(n int) error { return p.gen.SetWindowSize(n) }

// InitialStaticSamples returns the initialization phase length.
func (p *Processor) InitialStaticSamples() int { return p.gen.InitialStaticSamples() }

// SetInitialStaticSamples forwards the initialization phase length.
func (p *Processor) SetInitialStaticSamples(n int) error { return p.gen.SetInitialStaticSamples(n) }

// ThresholdFactor returns the static/dynamic threshold factor.
func (p *Processor) ThresholdFactor() float64 { return p.gen.ThresholdFactor() }

// SetThresholdFactor forwards the static/dynamic threshold factor.
func (p *Processor) SetThresholdFactor(f float64) error { return p.gen.SetThresholdFactor(f) }

// InstantaneousNoiseLevelFactor returns the sudden-movement factor.
func (p *Processor) InstantaneousNoiseLevelFactor() float64 {
	return p.gen.InstantaneousNoiseLevelFactor()
}

// SetInstantaneousNoiseLevelFactor forwards the sudden-movement factor.
func (p *Processor) SetInstantaneousNoiseLevelFactor(f float64) error {
	return p.gen.SetInstantaneousNoiseLevelFactor(f)
}

// BaseNoiseLevelAbsoluteThreshold returns the failure threshold in m/s².
func (p *Processor) BaseNoiseLevelAbsoluteThreshold() float64 {
	return p.gen.BaseNoiseLevelAbsoluteThreshold()
}

// SetBaseNoiseLevelAbsoluteThreshold forwards the failure threshold, m/s².
func (p *Processor) SetBaseNoiseLevelAbsoluteThreshold(v float64) error {
	return p.gen.SetBaseNoiseLevelAbsoluteThreshold(v)
}

// BaseNoiseLevelAbsoluteThresholdAcceleration returns the failure threshold
// in unit-bearing form.
func (p *Processor) BaseNoiseLevelAbsoluteThresholdAcceleration() units.Acceleration {
	return units.Acceleration{
		Value: p.gen.BaseNoiseLevelAbsoluteThreshold(),
		Unit:  units.MetersPerSquaredSecond,
	}
}

// SetBaseNoiseLevelAbsoluteThresholdAcceleration forwards the failure
// threshold given in any acceleration unit.
func (p *Processor) SetBaseNoiseLevelAbsoluteThresholdAcceleration(a units.Acceleration) error {
	return p.gen.SetBaseNoiseLevelAbsoluteThreshold(a.MetersPerSquaredSecond())
}

// MinStaticSamples returns the minimum static interval length.
func (p *Processor) MinStaticSamples() int { return p.gen.MinStaticSamples() }

// SetMinStaticSamples forwards the minimum static interval length.
func (p *Processor) SetMinStaticSamples(n int) error { return p.gen.SetMinStaticSamples(n) }

// MaxDynamicSamples returns the maximum dynamic interval length.
func (p *Processor) MaxDynamicSamples() int { return p.gen.MaxDynamicSamples() }

// SetMaxDynamicSamples forwards the maximum dynamic interval length.
func (p *Processor) SetMaxDynamicSamples(n int) error { return p.gen.SetMaxDynamicSamples(n) }

// ---------- Reset ----------

// Reset clears all session state and resets every owned collaborator. The
// instance behaves like a freshly constructed one afterwards, except that
// listener registrations are preserved.
func (p *Processor) Reset() {
	p.initialized = false
	p.unreliable = false
	p.initialAccelTimestamp = 0
	p.accelProcessed = 0
	p.gyroProcessed = 0
	p.magProcessed = 0
	p.gyroBaseNoise = cachedValue{}
	p.magBaseNoise = cachedValue{}
	p.initialFluxNorm = cachedValue{}
	p.staticSkipped = false
	p.dynamicSkipped = false
	p.kinematics = imu.BodyKinematics{}
	p.flux = imu.MagneticFluxDensity{}

	p.timeEstimator.Reset()
	p.gyroNoise.Reset()
	p.magNoise.Reset()
	p.gen.Reset()
}
