package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDProducer   string
	MQTTClientIDGPS        string
	MQTTClientIDCalibrator string
	MQTTClientIDConsole    string
	MQTTClientIDMonitor    string
	MQTTClientIDDisplay    string

	// Topics
	TopicAccelerometer string
	TopicGyroscope     string
	TopicMagnetometer  string
	TopicEnv           string
	TopicGPS           string
	TopicStatus        string
	TopicMeasurements  string
	TopicErrors        string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Environmental sensor (BME/BMP over SPI), used to tag calibration
	// sessions with temperature.
	EnvSPIDevice string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Detector parameters. Zero means "keep the built-in default".
	DetectorWindowSize           int
	DetectorInitialStaticSamples int
	DetectorThresholdFactor      float64
	DetectorNoiseLevelFactor     float64
	DetectorBaseNoiseThreshold   float64 // m/s²
	DetectorMinStaticSamples     int
	DetectorMaxDynamicSamples    int

	// Timing
	IMUSampleInterval  int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Monitor web server
	MonitorPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get() allows multiple concurrent readers.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CALIBRATOR":
		c.MQTTClientIDCalibrator = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ACCELEROMETER":
		c.TopicAccelerometer = value
	case "TOPIC_GYROSCOPE":
		c.TopicGyroscope = value
	case "TOPIC_MAGNETOMETER":
		c.TopicMagnetometer = value
	case "TOPIC_ENV":
		c.TopicEnv = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_MEASUREMENTS":
		c.TopicMeasurements = value
	case "TOPIC_ERRORS":
		c.TopicErrors = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Environmental sensor
	case "ENV_SPI_DEVICE":
		c.EnvSPIDevice = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Detector parameters
	case "DETECTOR_WINDOW_SIZE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_WINDOW_SIZE %q: %w", value, err)
		}
		if val < 3 || val%2 == 0 {
			return fmt.Errorf("DETECTOR_WINDOW_SIZE must be an odd number >= 3, got %d", val)
		}
		c.DetectorWindowSize = val
	case "DETECTOR_INITIAL_STATIC_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_INITIAL_STATIC_SAMPLES %q: %w", value, err)
		}
		if val < 3 {
			return fmt.Errorf("DETECTOR_INITIAL_STATIC_SAMPLES must be >= 3, got %d", val)
		}
		c.DetectorInitialStaticSamples = val
	case "DETECTOR_THRESHOLD_FACTOR":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_THRESHOLD_FACTOR %q: %w", value, err)
		}
		if val <= 0 {
			return fmt.Errorf("DETECTOR_THRESHOLD_FACTOR must be > 0, got %g", val)
		}
		c.DetectorThresholdFactor = val
	case "DETECTOR_NOISE_LEVEL_FACTOR":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_NOISE_LEVEL_FACTOR %q: %w", value, err)
		}
		if val <= 0 {
			return fmt.Errorf("DETECTOR_NOISE_LEVEL_FACTOR must be > 0, got %g", val)
		}
		c.DetectorNoiseLevelFactor = val
	case "DETECTOR_BASE_NOISE_THRESHOLD":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_BASE_NOISE_THRESHOLD %q: %w", value, err)
		}
		if val <= 0 {
			return fmt.Errorf("DETECTOR_BASE_NOISE_THRESHOLD must be > 0 m/s², got %g", val)
		}
		c.DetectorBaseNoiseThreshold = val
	case "DETECTOR_MIN_STATIC_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_MIN_STATIC_SAMPLES %q: %w", value, err)
		}
		if val < 2 {
			return fmt.Errorf("DETECTOR_MIN_STATIC_SAMPLES must be >= 2, got %d", val)
		}
		c.DetectorMinStaticSamples = val
	case "DETECTOR_MAX_DYNAMIC_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DETECTOR_MAX_DYNAMIC_SAMPLES %q: %w", value, err)
		}
		if val < 2 {
			return fmt.Errorf("DETECTOR_MAX_DYNAMIC_SAMPLES must be >= 2, got %d", val)
		}
		c.DetectorMaxDynamicSamples = val

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Monitor web server
	case "MONITOR_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MONITOR_PORT %q: %w", value, err)
		}
		c.MonitorPort = port
	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicAccelerometer == "" {
		return fmt.Errorf("TOPIC_ACCELEROMETER is required")
	}
	if c.TopicGyroscope == "" {
		return fmt.Errorf("TOPIC_GYROSCOPE is required")
	}
	if c.TopicMagnetometer == "" {
		return fmt.Errorf("TOPIC_MAGNETOMETER is required")
	}
	if c.IMUSPIDevice == "" {
		return fmt.Errorf("IMU_SPI_DEVICE is required")
	}
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate == 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	if c.IMUSampleInterval == 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	if c.ConsoleLogInterval == 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so repeated calls keep the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
