package processor

import (
	"math"
	"testing"

	"github.com/relabs-tech/inertial_calibrator/internal/generator"
	"github.com/relabs-tech/inertial_calibrator/internal/imu"
	"github.com/relabs-tech/inertial_calibrator/internal/stats"
	"github.com/relabs-tech/inertial_calibrator/internal/triad"
	"github.com/relabs-tech/inertial_calibrator/internal/units"
)

// ---------- Spies ----------

// spyGenerator wraps the real generator and counts the calls the processor
// makes to it. A non-nil statusOverride fakes the reported status.
type spyGenerator struct {
	*generator.MeasurementGenerator

	processCalls    int
	composites      []imu.TimedKinematics
	setTimeCalls    int
	timeIntervals   []float64
	resetCalls      int
	statusOverride  *generator.Status
}

func (s *spyGenerator) Process(k imu.TimedKinematics) error {
	s.processCalls++
	s.composites = append(s.composites, k)
	return s.MeasurementGenerator.Process(k)
}

func (s *spyGenerator) Status() generator.Status {
	if s.statusOverride != nil {
		return *s.statusOverride
	}
	return s.MeasurementGenerator.Status()
}

func (s *spyGenerator) SetTimeInterval(v float64) error {
	s.setTimeCalls++
	s.timeIntervals = append(s.timeIntervals, v)
	return s.MeasurementGenerator.SetTimeInterval(v)
}

func (s *spyGenerator) Reset() {
	s.resetCalls++
	s.MeasurementGenerator.Reset()
}

type spyNoise struct {
	inner stats.TriadNoiseEstimator

	addCalls   int
	stdCalls   int
	avgCalls   int
	resetCalls int
}

func (s *spyNoise) Add(t triad.Triad) { s.addCalls++; s.inner.Add(t) }
func (s *spyNoise) StandardDeviationNorm() float64 {
	s.stdCalls++
	return s.inner.StandardDeviationNorm()
}
func (s *spyNoise) AverageNorm() float64 { s.avgCalls++; return s.inner.AverageNorm() }
func (s *spyNoise) Reset()               { s.resetCalls++; s.inner.Reset() }

type spyInterval struct {
	inner *stats.TimeIntervalEstimator

	addCalls   int
	timestamps []float64
	resetCalls int
}

func (s *spyInterval) AddTimestamp(sec float64) bool {
	s.addCalls++
	s.timestamps = append(s.timestamps, sec)
	return s.inner.AddTimestamp(sec)
}
func (s *spyInterval) AverageTimeInterval() (float64, bool) { return s.inner.AverageTimeInterval() }
func (s *spyInterval) TimeIntervalVariance() (float64, bool) {
	return s.inner.TimeIntervalVariance()
}
func (s *spyInterval) TimeIntervalStandardDeviation() (float64, bool) {
	return s.inner.TimeIntervalStandardDeviation()
}
func (s *spyInterval) Reset() { s.resetCalls++; s.inner.Reset() }

// newSpiedProcessor returns a processor whose collaborators count calls.
func newSpiedProcessor(t *testing.T) (*Processor, *spyGenerator, *spyInterval, *spyNoise, *spyNoise) {
	t.Helper()
	p := New()

	g := &spyGenerator{MeasurementGenerator: generator.New()}
	p.gen = g
	g.SetListener(p.bridge())

	te, err := stats.NewTimeIntervalEstimator(stats.DefaultMaxTimeIntervalSamples)
	if err != nil {
		t.Fatalf("NewTimeIntervalEstimator: %v", err)
	}
	ti := &spyInterval{inner: te}
	p.timeEstimator = ti

	gn := &spyNoise{}
	mn := &spyNoise{}
	p.gyroNoise = gn
	p.magNoise = mn
	return p, g, ti, gn, mn
}

func accelSample(ts int64, y float64) imu.Sample {
	// Device Y lands on body X after the frame permutation, so feeding the
	// signal on Y keeps the generator-side math identical to device axes.
	return imu.Sample{
		Type:      imu.SensorAccelerometerUncalibrated,
		Values:    triad.Triad{Y: y},
		Timestamp: ts,
		Accuracy:  imu.AccuracyHigh,
	}
}

func gyroSample(v, b triad.Triad) imu.Sample {
	return imu.Sample{Type: imu.SensorGyroscopeUncalibrated, Values: v, Bias: b, Accuracy: imu.AccuracyHigh}
}

func magSample(v, b triad.Triad) imu.Sample {
	return imu.Sample{Type: imu.SensorMagnetometerUncalibrated, Values: v, Bias: b, Accuracy: imu.AccuracyHigh}
}

// markInitialized drives the processor past initialization using a faked
// generator status, with a single accelerometer sample.
func markInitialized(p *Processor, g *spyGenerator) {
	st := generator.StatusInitializationCompleted
	g.statusOverride = &st
	p.ProcessAccelerometerMeasurement(accelSample(1_000_000, 9.81))
}

// ---------- Tests ----------

func TestFreshProcessorState(t *testing.T) {
	p := New()

	if p.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", p.Status())
	}
	if p.AccelerometerProcessedSamples() != 0 ||
		p.GyroscopeProcessedSamples() != 0 ||
		p.MagnetometerProcessedSamples() != 0 {
		t.Errorf("fresh processor has nonzero counters")
	}
	if p.InitialAccelerometerTimestamp() != 0 {
		t.Errorf("fresh processor has an epoch")
	}
	if p.Initialized() || p.Unreliable() {
		t.Errorf("fresh processor flags set")
	}
	if p.StaticIntervalSkipped() || p.DynamicIntervalSkipped() {
		t.Errorf("fresh processor skip flags set")
	}

	unavailable := []struct {
		name string
		get  func() (float64, bool)
	}{
		{"AverageTimeInterval", p.AverageTimeInterval},
		{"TimeIntervalVariance", p.TimeIntervalVariance},
		{"TimeIntervalStandardDeviation", p.TimeIntervalStandardDeviation},
		{"GyroscopeBaseNoiseLevel", p.GyroscopeBaseNoiseLevel},
		{"MagnetometerBaseNoiseLevel", p.MagnetometerBaseNoiseLevel},
		{"InitialMagneticFluxDensityNorm", p.InitialMagneticFluxDensityNorm},
	}
	for _, g := range unavailable {
		if _, ok := g.get(); ok {
			t.Errorf("%s available before any sample", g.name)
		}
	}
}

func TestConfigurationRoundTrip(t *testing.T) {
	p := New()

	if err := p.SetWindowSize(51); err != nil {
		t.Fatalf("SetWindowSize: %v", err)
	}
	if p.WindowSize() != 51 {
		t.Errorf("WindowSize() = %d, want 51", p.WindowSize())
	}
	if err := p.SetInitialStaticSamples(4000); err != nil {
		t.Fatalf("SetInitialStaticSamples: %v", err)
	}
	if p.InitialStaticSamples() != 4000 {
		t.Errorf("InitialStaticSamples() = %d, want 4000", p.InitialStaticSamples())
	}
	if err := p.SetThresholdFactor(3.5); err != nil {
		t.Fatalf("SetThresholdFactor: %v", err)
	}
	if p.ThresholdFactor() != 3.5 {
		t.Errorf("ThresholdFactor() = %v, want 3.5", p.ThresholdFactor())
	}
	if err := p.SetMinStaticSamples(500); err != nil {
		t.Fatalf("SetMinStaticSamples: %v", err)
	}
	if p.MinStaticSamples() != 500 {
		t.Errorf("MinStaticSamples() = %d, want 500", p.MinStaticSamples())
	}
	if err := p.SetMaxDynamicSamples(5000); err != nil {
		t.Fatalf("SetMaxDynamicSamples: %v", err)
	}
	if p.MaxDynamicSamples() != 5000 {
		t.Errorf("MaxDynamicSamples() = %d, want 5000", p.MaxDynamicSamples())
	}

	// Unit-bearing threshold form: 0.1 g must land as m/s².
	if err := p.SetBaseNoiseLevelAbsoluteThresholdAcceleration(units.Acceleration{Value: 0.1, Unit: units.Gravity}); err != nil {
		t.Fatalf("SetBaseNoiseLevelAbsoluteThresholdAcceleration: %v", err)
	}
	want := 0.1 * units.StandardGravity
	if got := p.BaseNoiseLevelAbsoluteThreshold(); math.Abs(got-want) > 1e-12 {
		t.Errorf("BaseNoiseLevelAbsoluteThreshold() = %v, want %v", got, want)
	}
	a := p.BaseNoiseLevelAbsoluteThresholdAcceleration()
	if a.Unit != units.MetersPerSquaredSecond || math.Abs(a.Value-want) > 1e-12 {
		t.Errorf("unit-bearing getter = %+v, want %v m/s²", a, want)
	}

	// Invalid values keep the prior configuration.
	if err := p.SetWindowSize(-3); err == nil {
		t.Errorf("SetWindowSize(-3) succeeded, want error")
	}
	if p.WindowSize() != 51 {
		t.Errorf("rejected setter changed window size to %d", p.WindowSize())
	}
	if err := p.SetThresholdFactor(-1); err == nil {
		t.Errorf("SetThresholdFactor(-1) succeeded, want error")
	}
	if p.ThresholdFactor() != 3.5 {
		t.Errorf("rejected setter changed threshold factor to %v", p.ThresholdFactor())
	}
	if err := p.SetInstantaneousNoiseLevelFactor(0); err == nil {
		t.Errorf("SetInstantaneousNoiseLevelFactor(0) succeeded, want error")
	}
	if err := p.SetBaseNoiseLevelAbsoluteThreshold(-0.5); err == nil {
		t.Errorf("SetBaseNoiseLevelAbsoluteThreshold(-0.5) succeeded, want error")
	}
}

func TestAccelerometerTimingProtocol(t *testing.T) {
	p, g, ti, _, _ := newSpiedProcessor(t)

	t1 := int64(5_000_000_000)
	p.ProcessAccelerometerMeasurement(accelSample(t1, 9.81))

	if p.InitialAccelerometerTimestamp() != t1 {
		t.Errorf("epoch = %d, want %d", p.InitialAccelerometerTimestamp(), t1)
	}
	if ti.addCalls != 0 {
		t.Errorf("AddTimestamp called %d times after first sample, want 0", ti.addCalls)
	}
	if g.processCalls != 1 {
		t.Errorf("generator processed %d composites after first sample, want 1", g.processCalls)
	}
	if p.AccelerometerProcessedSamples() != 1 {
		t.Errorf("accel counter = %d, want 1", p.AccelerometerProcessedSamples())
	}

	t2 := t1 + 10_000_000 // 10ms later
	p.ProcessAccelerometerMeasurement(accelSample(t2, 9.81))

	if ti.addCalls != 1 {
		t.Fatalf("AddTimestamp called %d times after second sample, want 1", ti.addCalls)
	}
	if math.Abs(ti.timestamps[0]-0.01) > 1e-12 {
		t.Errorf("AddTimestamp got %v, want 0.01", ti.timestamps[0])
	}
	if g.processCalls != 2 {
		t.Errorf("generator processed %d composites, want 2", g.processCalls)
	}
}

func TestTimingParameterAssignedExactlyOnce(t *testing.T) {
	p, g, _, _, _ := newSpiedProcessor(t)

	st := generator.StatusInitializationCompleted
	g.statusOverride = &st

	// The very first sample may already see a non-initializing status; the
	// assignment fires with the estimator still empty.
	p.ProcessAccelerometerMeasurement(accelSample(1_000_000, 9.81))
	if !p.Initialized() {
		t.Fatalf("processor not initialized after non-initializing status")
	}
	if g.setTimeCalls != 1 {
		t.Fatalf("SetTimeInterval called %d times, want 1", g.setTimeCalls)
	}
	if g.timeIntervals[0] != 0 {
		t.Errorf("SetTimeInterval got %v with empty estimator, want 0", g.timeIntervals[0])
	}

	// Further non-initializing samples never assign again.
	for i := 0; i < 5; i++ {
		p.ProcessAccelerometerMeasurement(accelSample(int64(2_000_000+i*10_000_000), 9.81))
	}
	if g.setTimeCalls != 1 {
		t.Errorf("SetTimeInterval called %d times after more samples, want 1", g.setTimeCalls)
	}
}

func TestFrameConversionLaws(t *testing.T) {
	p, g, _, _, _ := newSpiedProcessor(t)

	// Accelerometer: composite carries (my+by, mx+bx, -(mz+bz)) and zero
	// angular-rate/flux fields.
	s := imu.Sample{
		Values:    triad.Triad{X: 1, Y: 2, Z: 3},
		Bias:      triad.Triad{X: 0.1, Y: 0.2, Z: 0.3},
		Timestamp: 40_000_000,
		Accuracy:  imu.AccuracyHigh,
	}
	p.ProcessAccelerometerMeasurement(s)
	if len(g.composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(g.composites))
	}
	c := g.composites[0]
	wantForce := triad.Triad{X: 2.2, Y: 1.1, Z: -3.3}
	if d := diff(c.Kinematics.SpecificForce, wantForce); d > 1e-12 {
		t.Errorf("composite force = %+v, want %+v", c.Kinematics.SpecificForce, wantForce)
	}
	if c.Kinematics.AngularRate != (triad.Triad{}) || c.Flux.B != (triad.Triad{}) {
		t.Errorf("composite carries angular rate or flux on the accelerometer path")
	}
	if c.TimestampSeconds != 0 {
		t.Errorf("first composite timestamp = %v, want 0", c.TimestampSeconds)
	}

	// Gyroscope: same law into the shared kinematics buffer.
	p.ProcessGyroscopeMeasurement(gyroSample(
		triad.Triad{X: 0.4, Y: 0.5, Z: 0.6},
		triad.Triad{X: 0.01, Y: 0.02, Z: 0.03},
	))
	wantRate := triad.Triad{X: 0.52, Y: 0.41, Z: -0.63}
	if d := diff(p.BodyKinematics().AngularRate, wantRate); d > 1e-12 {
		t.Errorf("body angular rate = %+v, want %+v", p.BodyKinematics().AngularRate, wantRate)
	}

	// Magnetometer: µT inputs scaled to tesla before the permutation.
	p.ProcessMagnetometerMeasurement(magSample(
		triad.Triad{X: 10, Y: 20, Z: 30},
		triad.Triad{X: 1, Y: 2, Z: 3},
	))
	wantFlux := triad.Triad{X: 22e-6, Y: 11e-6, Z: -33e-6}
	if d := diff(p.MagneticFluxDensity().B, wantFlux); d > 1e-15 {
		t.Errorf("body flux = %+v, want %+v", p.MagneticFluxDensity().B, wantFlux)
	}
}

func diff(a, b triad.Triad) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Max(math.Abs(a.Y-b.Y), math.Abs(a.Z-b.Z)))
}

func TestGyroscopeNoiseCacheFreezesOnce(t *testing.T) {
	p, g, _, gn, _ := newSpiedProcessor(t)

	// Pre-initialization samples accumulate without querying the estimate.
	for i := 0; i < 4; i++ {
		p.ProcessGyroscopeMeasurement(gyroSample(triad.Triad{X: float64(i)}, triad.Triad{}))
	}
	if gn.addCalls != 4 {
		t.Errorf("gyro accumulator Add called %d times, want 4", gn.addCalls)
	}
	if gn.stdCalls != 0 {
		t.Errorf("gyro std queried %d times before initialization, want 0", gn.stdCalls)
	}
	if _, ok := p.GyroscopeBaseNoiseLevel(); ok {
		t.Errorf("gyro base noise available before initialization")
	}

	markInitialized(p, g)

	p.ProcessGyroscopeMeasurement(gyroSample(triad.Triad{X: 9}, triad.Triad{}))
	v1, ok := p.GyroscopeBaseNoiseLevel()
	if !ok {
		t.Fatalf("gyro base noise unavailable after initialization")
	}
	if gn.stdCalls != 1 {
		t.Fatalf("gyro std queried %d times, want 1", gn.stdCalls)
	}

	// Repeated processing never re-queries or changes the cache.
	for i := 0; i < 10; i++ {
		p.ProcessGyroscopeMeasurement(gyroSample(triad.Triad{X: 100}, triad.Triad{}))
	}
	if gn.stdCalls != 1 {
		t.Errorf("gyro std queried %d times after cache set, want 1", gn.stdCalls)
	}
	if v2, _ := p.GyroscopeBaseNoiseLevel(); v2 != v1 {
		t.Errorf("cached gyro base noise changed from %v to %v", v1, v2)
	}
	if p.GyroscopeProcessedSamples() != 15 {
		t.Errorf("gyro counter = %d, want 15", p.GyroscopeProcessedSamples())
	}
}

func TestMagnetometerCachesSetAtomically(t *testing.T) {
	p, g, _, _, mn := newSpiedProcessor(t)

	for i := 0; i < 3; i++ {
		p.ProcessMagnetometerMeasurement(magSample(triad.Triad{X: 40 + float64(i)}, triad.Triad{}))
	}
	if mn.stdCalls != 0 || mn.avgCalls != 0 {
		t.Errorf("mag accumulator queried before initialization: std=%d avg=%d", mn.stdCalls, mn.avgCalls)
	}

	markInitialized(p, g)

	p.ProcessMagnetometerMeasurement(magSample(triad.Triad{X: 43}, triad.Triad{}))

	noise, okNoise := p.MagnetometerBaseNoiseLevel()
	norm, okNorm := p.InitialMagneticFluxDensityNorm()
	if !okNoise || !okNorm {
		t.Fatalf("mag caches not set together: noise ok=%v norm ok=%v", okNoise, okNorm)
	}
	if mn.stdCalls != 1 || mn.avgCalls != 1 {
		t.Fatalf("mag accumulator queries std=%d avg=%d, want 1 and 1", mn.stdCalls, mn.avgCalls)
	}

	for i := 0; i < 10; i++ {
		p.ProcessMagnetometerMeasurement(magSample(triad.Triad{X: 500}, triad.Triad{}))
	}
	if mn.stdCalls != 1 || mn.avgCalls != 1 {
		t.Errorf("mag accumulator re-queried after caches set: std=%d avg=%d", mn.stdCalls, mn.avgCalls)
	}
	if v, _ := p.MagnetometerBaseNoiseLevel(); v != noise {
		t.Errorf("cached mag base noise changed from %v to %v", noise, v)
	}
	if v, _ := p.InitialMagneticFluxDensityNorm(); v != norm {
		t.Errorf("cached flux norm changed from %v to %v", norm, v)
	}
}

func TestUnreliableSensorOverridesEverything(t *testing.T) {
	p, g, _, _, _ := newSpiedProcessor(t)

	var errs []ErrorReason
	p.Listener.OnError = func(_ *Processor, r ErrorReason) { errs = append(errs, r) }

	markInitialized(p, g) // generator reports initialization completed

	s := accelSample(2_000_000, 9.81)
	s.Accuracy = imu.AccuracyUnreliable
	p.ProcessAccelerometerMeasurement(s)

	if !p.Unreliable() {
		t.Fatalf("unreliable flag not set")
	}
	if p.Status() != StatusFailed {
		t.Errorf("Status() = %v with unreliable sensor, want failed", p.Status())
	}
	if len(errs) != 1 || errs[0] != ErrorUnreliableSensor {
		t.Fatalf("error callbacks = %v, want one unreliable_sensor", errs)
	}

	// Every internal reason now maps to unreliable_sensor.
	if got := p.MapErrorReason(generator.SuddenExcessiveMovement); got != ErrorUnreliableSensor {
		t.Errorf("MapErrorReason(sudden) = %v, want unreliable_sensor", got)
	}
	if got := p.MapErrorReason(generator.OverallExcessiveMovement); got != ErrorUnreliableSensor {
		t.Errorf("MapErrorReason(overall) = %v, want unreliable_sensor", got)
	}

	// The flag is reported once, and samples keep flowing to the generator.
	before := g.processCalls
	s.Timestamp += 10_000_000
	p.ProcessAccelerometerMeasurement(s)
	if len(errs) != 1 {
		t.Errorf("unreliable error reported %d times, want 1", len(errs))
	}
	if g.processCalls != before+1 {
		t.Errorf("generator process calls stopped after unreliable flag")
	}
}

func TestMapErrorReasonWhenReliable(t *testing.T) {
	p := New()
	if got := p.MapErrorReason(generator.SuddenExcessiveMovement); got != ErrorSuddenExcessiveMovementDuringInitialization {
		t.Errorf("MapErrorReason(sudden) = %v", got)
	}
	if got := p.MapErrorReason(generator.OverallExcessiveMovement); got != ErrorOverallExcessiveMovementDuringInitialization {
		t.Errorf("MapErrorReason(overall) = %v", got)
	}
}

func TestResetRestoresFreshState(t *testing.T) {
	p, g, ti, gn, mn := newSpiedProcessor(t)

	var resets int
	p.Listener.OnReset = func(*Processor) { resets++ }

	markInitialized(p, g)
	p.ProcessGyroscopeMeasurement(gyroSample(triad.Triad{X: 1}, triad.Triad{}))
	p.ProcessMagnetometerMeasurement(magSample(triad.Triad{X: 40}, triad.Triad{}))
	s := accelSample(2_000_000, 9.81)
	s.Accuracy = imu.AccuracyUnreliable
	p.ProcessAccelerometerMeasurement(s)

	p.Reset()

	if p.AccelerometerProcessedSamples() != 0 ||
		p.GyroscopeProcessedSamples() != 0 ||
		p.MagnetometerProcessedSamples() != 0 {
		t.Errorf("counters survived reset")
	}
	if p.Initialized() || p.Unreliable() {
		t.Errorf("flags survived reset")
	}
	if p.InitialAccelerometerTimestamp() != 0 {
		t.Errorf("epoch survived reset")
	}
	if _, ok := p.GyroscopeBaseNoiseLevel(); ok {
		t.Errorf("gyro cache survived reset")
	}
	if _, ok := p.MagnetometerBaseNoiseLevel(); ok {
		t.Errorf("mag cache survived reset")
	}
	if _, ok := p.InitialMagneticFluxDensityNorm(); ok {
		t.Errorf("flux norm cache survived reset")
	}
	if p.BodyKinematics() != (imu.BodyKinematics{}) || p.MagneticFluxDensity() != (imu.MagneticFluxDensity{}) {
		t.Errorf("scratch buffers survived reset")
	}

	// Exactly one reset per owned collaborator.
	if g.resetCalls != 1 {
		t.Errorf("generator reset %d times, want 1", g.resetCalls)
	}
	if ti.resetCalls != 1 {
		t.Errorf("time estimator reset %d times, want 1", ti.resetCalls)
	}
	if gn.resetCalls != 1 || mn.resetCalls != 1 {
		t.Errorf("noise estimators reset %d/%d times, want 1/1", gn.resetCalls, mn.resetCalls)
	}

	// Listener registration is preserved and the reset callback fired.
	if resets != 1 {
		t.Errorf("reset callback fired %d times, want 1", resets)
	}
	if p.Listener.OnReset == nil {
		t.Errorf("listener lost on reset")
	}
}

// TestListenerBridgeEndToEnd drives a full session through the real
// generator and checks every re-emitted callback carries the processor as
// source.
func TestListenerBridgeEndToEnd(t *testing.T) {
	p := New()
	if err := p.SetWindowSize(3); err != nil {
		t.Fatalf("SetWindowSize: %v", err)
	}
	if err := p.SetInitialStaticSamples(6); err != nil {
		t.Fatalf("SetInitialStaticSamples: %v", err)
	}
	if err := p.SetMinStaticSamples(2); err != nil {
		t.Fatalf("SetMinStaticSamples: %v", err)
	}

	var (
		started, completed           int
		staticDet, dynamicDet        int
		accelM, gyroM, magM          int
		sources                      []*Processor
		baseNoise                    float64
	)
	p.Listener = Listener{
		OnInitializationStarted: func(src *Processor) { started++; sources = append(sources, src) },
		OnInitializationCompleted: func(src *Processor, b float64) {
			completed++
			baseNoise = b
			sources = append(sources, src)
		},
		OnStaticIntervalDetected:  func(src *Processor) { staticDet++; sources = append(sources, src) },
		OnDynamicIntervalDetected: func(src *Processor) { dynamicDet++; sources = append(sources, src) },
		OnGeneratedAccelerometerMeasurement: func(src *Processor, m generator.Measurement) {
			accelM++
			sources = append(sources, src)
		},
		OnGeneratedGyroscopeMeasurement: func(src *Processor, m generator.Measurement) {
			gyroM++
			sources = append(sources, src)
		},
		OnGeneratedMagnetometerMeasurement: func(src *Processor, m generator.Measurement) {
			magM++
			sources = append(sources, src)
		},
	}

	ts := int64(1_000_000_000)
	feed := func(y float64) {
		p.ProcessAccelerometerMeasurement(accelSample(ts, y))
		ts += 10_000_000
	}
	quiet := func(n int) {
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				feed(9.82)
			} else {
				feed(9.80)
			}
		}
	}
	loud := func(n int) {
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				feed(12)
			} else {
				feed(8)
			}
		}
	}

	quiet(6) // initialization
	if started != 1 || completed != 1 {
		t.Fatalf("init callbacks: started=%d completed=%d, want 1 and 1", started, completed)
	}
	if baseNoise <= 0 {
		t.Errorf("initialization-completed base noise = %v, want > 0", baseNoise)
	}
	if !p.Initialized() {
		t.Fatalf("processor not initialized after generator left initialization")
	}
	if avg, ok := p.AverageTimeInterval(); !ok || math.Abs(avg-0.01) > 1e-9 {
		t.Errorf("AverageTimeInterval() = %v, %v; want 0.01, true", avg, ok)
	}

	quiet(5) // static interval
	loud(6)  // dynamic interval, closes the static one
	quiet(3) // closes the dynamic one

	if staticDet != 1 || dynamicDet != 1 {
		t.Errorf("interval callbacks: static=%d dynamic=%d, want 1 and 1", staticDet, dynamicDet)
	}
	if accelM != 1 || gyroM != 1 || magM != 1 {
		t.Errorf("measurement callbacks: accel=%d gyro=%d mag=%d, want 1 each", accelM, gyroM, magM)
	}
	for i, src := range sources {
		if src != p {
			t.Fatalf("callback %d reported source %p, want processor %p", i, src, p)
		}
	}

	// Unset listener slots are a no-op, not an error.
	p.Listener = Listener{}
	quiet(5)
	loud(4)
}
