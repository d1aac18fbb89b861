package units

// Conversion factors shared by the sensor pipeline. Magnetometer hardware
// and MQTT payloads carry micro-tesla; everything downstream of the frame
// conversion works in tesla.
const (
	TeslaPerMicroTesla = 1e-6

	// StandardGravity is g0 in m/s².
	StandardGravity = 9.80665
)

// MicroTeslaToTesla converts a magnetic flux density value from µT to T.
func MicroTeslaToTesla(v float64) float64 {
	return v * TeslaPerMicroTesla
}

// AccelerationUnit identifies the unit an Acceleration value is expressed in.
type AccelerationUnit int

const (
	MetersPerSquaredSecond AccelerationUnit = iota
	Gravity
)

// Acceleration is a unit-bearing acceleration value.
type Acceleration struct {
	Value float64
	Unit  AccelerationUnit
}

// MetersPerSquaredSecond returns the value converted to m/s².
func (a Acceleration) MetersPerSquaredSecond() float64 {
	if a.Unit == Gravity {
		return a.Value * StandardGravity
	}
	return a.Value
}
