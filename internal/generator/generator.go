// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package generator implements the static/dynamic interval detector and
// calibration measurement emitter.
//
// The generator receives one timed composite sample per accelerometer tick.
// It first estimates the accelerometer base noise level over an initial
// stationary period, then classifies each subsequent sample as static or
// dynamic by comparing the windowed (instantaneous) noise level against a
// threshold derived from the base noise level. Completed intervals produce
// averaged calibration measurements delivered through a listener.
package generator

import (
	"fmt"
	"math"

	"github.com/relabs-tech/inertial_calibrator/internal/imu"
	"github.com/relabs-tech/inertial_calibrator/internal/stats"
)

// Defaults for the detector parameters. Window size must stay odd so the
// windowed estimate is centered.
const (
	DefaultWindowSize                      = 101
	DefaultInitialStaticSamples            = 5000
	DefaultThresholdFactor                 = 2.0
	DefaultInstantaneousNoiseLevelFactor   = 2.0
	DefaultBaseNoiseLevelAbsoluteThreshold = 0.5 // m/s²
	DefaultMinStaticSamples                = 700
	DefaultMaxDynamicSamples               = 10_000

	minWindowSize = 3
)

// Measurement is an averaged calibration measurement produced from one
// completed interval.
type Measurement struct {
	Average           imu.BodyKinematics      `json:"average"`
	Flux              imu.MagneticFluxDensity `json:"flux"`
	StandardDeviation float64                 `json:"standard_deviation"`
	Samples           int                     `json:"samples"`
}

// Listener receives generator lifecycle callbacks. Nil slots are skipped.
type Listener struct {
	OnInitializationStarted   func()
	OnInitializationCompleted func(baseNoiseLevel float64)
	OnError                   func(reason ErrorReason)

	OnStaticIntervalDetected  func()
	OnDynamicIntervalDetected func()
	OnStaticIntervalSkipped   func()
	OnDynamicIntervalSkipped  func()

	OnGeneratedAccelerometerMeasurement func(m Measurement)
	OnGeneratedGyroscopeMeasurement     func(m Measurement)
	OnGeneratedMagnetometerMeasurement  func(m Measurement)

	OnReset func()
}

// MeasurementGenerator detects static/dynamic intervals in a stream of
// timed composite samples and emits calibration measurements. Not safe for
// concurrent use; the caller serializes Process calls.
type MeasurementGenerator struct {
	windowSize                      int
	initialStaticSamples            int
	thresholdFactor                 float64
	instantaneousNoiseLevelFactor   float64
	baseNoiseLevelAbsoluteThreshold float64
	minStaticSamples                int
	maxDynamicSamples               int

	timeInterval float64

	listener Listener

	status    Status
	processed int

	// Sliding window over specific-force norms.
	window  []float64
	winSum  float64
	winSum2 float64

	// Accumulated noise during initialization.
	initNoise stats.TriadNoiseEstimator

	baseNoiseLevel float64
	threshold      float64

	// Current interval accumulators.
	staticForce stats.TriadNoiseEstimator
	staticFlux  stats.TriadNoiseEstimator
	dynamicRate stats.TriadNoiseEstimator
}

// New returns a generator with default detector parameters.
func New() *MeasurementGenerator {
	return &MeasurementGenerator{
		windowSize:                      DefaultWindowSize,
		initialStaticSamples:            DefaultInitialStaticSamples,
		thresholdFactor:                 DefaultThresholdFactor,
		instantaneousNoiseLevelFactor:   DefaultInstantaneousNoiseLevelFactor,
		baseNoiseLevelAbsoluteThreshold: DefaultBaseNoiseLevelAbsoluteThreshold,
		minStaticSamples:                DefaultMinStaticSamples,
		maxDynamicSamples:               DefaultMaxDynamicSamples,
	}
}

// SetListener registers the single listener slot. Must be set before the
// first Process call to observe the whole session.
func (g *MeasurementGenerator) SetListener(l Listener) {
	g.listener = l
}

// Status returns the current lifecycle state.
func (g *MeasurementGenerator) Status() Status {
	return g.status
}

// BaseNoiseLevel returns the accelerometer base noise level estimated
// during initialization, zero before initialization completes.
func (g *MeasurementGenerator) BaseNoiseLevel() float64 {
	return g.baseNoiseLevel
}

// Threshold returns the static/dynamic classification threshold, zero
// before initialization completes.
func (g *MeasurementGenerator) Threshold() float64 {
	return g.threshold
}

// ProcessedSamples returns the number of composite samples processed since
// construction or the last Reset.
func (g *MeasurementGenerator) ProcessedSamples() int {
	return g.processed
}

// ---------- Parameter setters ----------
//
// Each setter rejects out-of-range input and refuses changes once a session
// is running; the previous value is kept in both cases.

func (g *MeasurementGenerator) checkIdle() error {
	if g.status != StatusIdle {
		return fmt.Errorf("generator is running (status %s), reset before reconfiguring", g.status)
	}
	return nil
}

// WindowSize returns the instantaneous-noise window length.
func (g *MeasurementGenerator) WindowSize() int { return g.windowSize }

// SetWindowSize configures the instantaneous-noise window length. The size
// must be odd and at least 3.
func (g *MeasurementGenerator) SetWindowSize(n int) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if n < minWindowSize || n%2 == 0 {
		return fmt.Errorf("window size must be odd and at least %d, got %d", minWindowSize, n)
	}
	g.windowSize = n
	return nil
}

// InitialStaticSamples returns the number of samples used to estimate the
// base noise level.
func (g *MeasurementGenerator) InitialStaticSamples() int { return g.initialStaticSamples }

// SetInitialStaticSamples configures the length of the initialization
// phase. It must cover at least two windows.
func (g *MeasurementGenerator) SetInitialStaticSamples(n int) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if n < 2*g.windowSize {
		return fmt.Errorf("initial static samples must be at least twice the window size (%d), got %d", 2*g.windowSize, n)
	}
	g.initialStaticSamples = n
	return nil
}

// ThresholdFactor returns the static/dynamic threshold factor.
func (g *MeasurementGenerator) ThresholdFactor() float64 { return g.thresholdFactor }

// SetThresholdFactor configures the factor applied to the base noise level
// to derive the classification threshold.
func (g *MeasurementGenerator) SetThresholdFactor(f float64) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if f <= 0 || math.IsNaN(f) {
		return fmt.Errorf("threshold factor must be greater than zero, got %v", f)
	}
	g.thresholdFactor = f
	return nil
}

// InstantaneousNoiseLevelFactor returns the sudden-movement detection factor.
func (g *MeasurementGenerator) InstantaneousNoiseLevelFactor() float64 {
	return g.instantaneousNoiseLevelFactor
}

// SetInstantaneousNoiseLevelFactor configures the factor used to flag a
// sudden movement during initialization.
func (g *MeasurementGenerator) SetInstantaneousNoiseLevelFactor(f float64) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if f <= 0 || math.IsNaN(f) {
		return fmt.Errorf("instantaneous noise level factor must be greater than zero, got %v", f)
	}
	g.instantaneousNoiseLevelFactor = f
	return nil
}

// BaseNoiseLevelAbsoluteThreshold returns the overall-movement failure
// threshold in m/s².
func (g *MeasurementGenerator) BaseNoiseLevelAbsoluteThreshold() float64 {
	return g.baseNoiseLevelAbsoluteThreshold
}

// SetBaseNoiseLevelAbsoluteThreshold configures the maximum acceptable base
// noise level, in m/s².
func (g *MeasurementGenerator) SetBaseNoiseLevelAbsoluteThreshold(v float64) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if v <= 0 || math.IsNaN(v) {
		return fmt.Errorf("base noise level absolute threshold must be greater than zero, got %v", v)
	}
	g.baseNoiseLevelAbsoluteThreshold = v
	return nil
}

// MinStaticSamples returns the minimum static interval length.
func (g *MeasurementGenerator) MinStaticSamples() int { return g.minStaticSamples }

// SetMinStaticSamples configures the minimum number of samples a static
// interval needs before it produces measurements.
func (g *MeasurementGenerator) SetMinStaticSamples(n int) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if n < 2 {
		return fmt.Errorf("min static samples must be at least 2, got %d", n)
	}
	g.minStaticSamples = n
	return nil
}

// MaxDynamicSamples returns the maximum dynamic interval length.
func (g *MeasurementGenerator) MaxDynamicSamples() int { return g.maxDynamicSamples }

// SetMaxDynamicSamples configures the maximum number of samples a dynamic
// interval may span before it is skipped.
func (g *MeasurementGenerator) SetMaxDynamicSamples(n int) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if n < 2 {
		return fmt.Errorf("max dynamic samples must be at least 2, got %d", n)
	}
	g.maxDynamicSamples = n
	return nil
}

// TimeInterval returns the sample timing parameter in seconds.
func (g *MeasurementGenerator) TimeInterval() float64 { return g.timeInterval }

// SetTimeInterval assigns the average sample interval in seconds. Zero
// means unknown. Unlike the detector parameters this may be set while the
// session is running: the processor assigns it once initialization settles.
func (g *MeasurementGenerator) SetTimeInterval(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) {
		return fmt.Errorf("time interval must not be negative, got %v", seconds)
	}
	g.timeInterval = seconds
	return nil
}

// ---------- Processing ----------

// Process feeds one timed composite sample through the detector. After a
// failure the generator ignores further samples until Reset.
func (g *MeasurementGenerator) Process(k imu.TimedKinematics) error {
	if g.status == StatusFailed {
		return nil
	}
	if g.status == StatusIdle {
		g.status = StatusInitializing
		g.window = make([]float64, 0, g.windowSize)
		if g.listener.OnInitializationStarted != nil {
			g.listener.OnInitializationStarted()
		}
	}

	g.processed++
	norm := k.Kinematics.SpecificForce.Norm()
	g.pushWindow(norm)

	if g.status == StatusInitializing {
		g.processInitializing(k)
		return nil
	}

	g.processClassify(k)
	return nil
}

// pushWindow slides norm into the instantaneous-noise window.
func (g *MeasurementGenerator) pushWindow(norm float64) {
	if len(g.window) == g.windowSize {
		old := g.window[0]
		g.window = g.window[1:]
		g.winSum -= old
		g.winSum2 -= old * old
	}
	g.window = append(g.window, norm)
	g.winSum += norm
	g.winSum2 += norm * norm
}

// instantaneousNoise returns the standard deviation of the norms currently
// in the window, zero until the window has filled.
func (g *MeasurementGenerator) instantaneousNoise() float64 {
	n := len(g.window)
	if n < g.windowSize {
		return 0
	}
	nf := float64(n)
	mean := g.winSum / nf
	v := g.winSum2/nf - mean*mean
	if v < 0 {
		v = 0 // guard against rounding
	}
	return math.Sqrt(v)
}

func (g *MeasurementGenerator) processInitializing(k imu.TimedKinematics) {
	// Sudden movement: once the accumulated estimate has settled over two
	// windows, a windowed noise level far above it fails the session. The
	// accumulated level is taken before this sample so a spike cannot mask
	// itself.
	if g.initNoise.Count() >= 2*g.windowSize {
		accumulated := g.initNoise.StandardDeviationNorm()
		inst := g.instantaneousNoise()
		if inst > accumulated*g.instantaneousNoiseLevelFactor && inst > g.baseNoiseLevelAbsoluteThreshold {
			g.fail(SuddenExcessiveMovement)
			return
		}
	}

	g.initNoise.Add(k.Kinematics.SpecificForce)
	if g.initNoise.Count() < g.initialStaticSamples {
		return
	}

	// Initialization finished: freeze the base noise level.
	accumulated := g.initNoise.StandardDeviationNorm()
	if accumulated > g.baseNoiseLevelAbsoluteThreshold {
		g.fail(OverallExcessiveMovement)
		return
	}

	g.baseNoiseLevel = accumulated
	g.threshold = accumulated * g.thresholdFactor
	g.status = StatusInitializationCompleted
	if g.listener.OnInitializationCompleted != nil {
		g.listener.OnInitializationCompleted(g.baseNoiseLevel)
	}
}

func (g *MeasurementGenerator) processClassify(k imu.TimedKinematics) {
	static := g.instantaneousNoise() < g.threshold

	switch g.status {
	case StatusInitializationCompleted:
		if static {
			g.status = StatusStaticInterval
		} else {
			g.status = StatusDynamicInterval
		}
	case StatusStaticInterval:
		if !static {
			g.closeStaticInterval()
			g.status = StatusDynamicInterval
		}
	case StatusDynamicInterval:
		if static {
			g.closeDynamicInterval()
			g.status = StatusStaticInterval
		}
	}

	if g.status == StatusStaticInterval {
		g.staticForce.Add(k.Kinematics.SpecificForce)
		g.staticFlux.Add(k.Flux.B)
	} else {
		g.dynamicRate.Add(k.Kinematics.AngularRate)
	}
}

func (g *MeasurementGenerator) closeStaticInterval() {
	n := g.staticForce.Count()
	defer func() {
		g.staticForce.Reset()
		g.staticFlux.Reset()
	}()
	if n == 0 {
		return
	}
	if n < g.minStaticSamples {
		if g.listener.OnStaticIntervalSkipped != nil {
			g.listener.OnStaticIntervalSkipped()
		}
		return
	}
	if g.listener.OnStaticIntervalDetected != nil {
		g.listener.OnStaticIntervalDetected()
	}
	if g.listener.OnGeneratedAccelerometerMeasurement != nil {
		g.listener.OnGeneratedAccelerometerMeasurement(Measurement{
			Average:           imu.BodyKinematics{SpecificForce: g.staticForce.Average()},
			StandardDeviation: g.staticForce.StandardDeviationNorm(),
			Samples:           n,
		})
	}
	if g.listener.OnGeneratedMagnetometerMeasurement != nil {
		g.listener.OnGeneratedMagnetometerMeasurement(Measurement{
			Flux:              imu.MagneticFluxDensity{B: g.staticFlux.Average()},
			StandardDeviation: g.staticFlux.StandardDeviationNorm(),
			Samples:           n,
		})
	}
}

func (g *MeasurementGenerator) closeDynamicInterval() {
	n := g.dynamicRate.Count()
	defer g.dynamicRate.Reset()
	if n == 0 {
		return
	}
	if n > g.maxDynamicSamples {
		if g.listener.OnDynamicIntervalSkipped != nil {
			g.listener.OnDynamicIntervalSkipped()
		}
		return
	}
	if g.listener.OnDynamicIntervalDetected != nil {
		g.listener.OnDynamicIntervalDetected()
	}
	if g.listener.OnGeneratedGyroscopeMeasurement != nil {
		g.listener.OnGeneratedGyroscopeMeasurement(Measurement{
			Average:           imu.BodyKinematics{AngularRate: g.dynamicRate.Average()},
			StandardDeviation: g.dynamicRate.StandardDeviationNorm(),
			Samples:           n,
		})
	}
}

func (g *MeasurementGenerator) fail(reason ErrorReason) {
	g.status = StatusFailed
	if g.listener.OnError != nil {
		g.listener.OnError(reason)
	}
}

// Reset returns the generator to idle, discarding all session state but
// keeping the configured parameters and listener.
func (g *MeasurementGenerator) Reset() {
	g.status = StatusIdle
	g.processed = 0
	g.window = nil
	g.winSum = 0
	g.winSum2 = 0
	g.initNoise.Reset()
	g.baseNoiseLevel = 0
	g.threshold = 0
	g.timeInterval = 0
	g.staticForce.Reset()
	g.staticFlux.Reset()
	g.dynamicRate.Reset()
	if g.listener.OnReset != nil {
		g.listener.OnReset()
	}
}
