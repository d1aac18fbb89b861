package env

// Sample represents a single environmental measurement (BME/BMP).
// Temperature is published alongside calibration output because gyroscope
// bias drifts with die temperature.
type Sample struct {
	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
	PressureHPa float64 `json:"pressure_hpa"`
}
