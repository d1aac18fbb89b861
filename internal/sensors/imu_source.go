// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
	"github.com/relabs-tech/inertial_calibrator/internal/triad"
	"github.com/relabs-tech/inertial_calibrator/internal/units"
)

// Reading is one IMU reading converted to physical units, in device axes.
type Reading struct {
	Acceleration  triad.Triad // m/s²
	AngularRate   triad.Triad // rad/s
	MagneticField triad.Triad // µT
	HasMag        bool
	Timestamp     int64 // nanoseconds
}

// IMUReader defines the interface for reading IMU data.
type IMUReader interface {
	Read() (Reading, error)
}

var (
	accelFullScaleG  = []float64{2, 4, 8, 16}
	gyroFullScaleDPS = []float64{250, 500, 1000, 2000}
)

const imuSensorCounts = 32768.0

type imuSource struct {
	imu *mpu9250.MPU9250

	accelScale float64 // m/s² per count
	gyroScale  float64 // rad/s per count
}

// NewIMUSource initializes the MPU9250 over SPI. The magnetometer is not
// exposed by this driver, so readings carry HasMag=false.
func NewIMUSource() (IMUReader, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}

	// Conversion scales must match the ranges programmed into the device.
	accelG := accelFullScaleG[cfg.IMUAccelRange]
	gyroDPS := gyroFullScaleDPS[cfg.IMUGyroRange]
	log.Printf("IMU: converting counts at ±%gg / ±%g°/s full scale", accelG, gyroDPS)

	return &imuSource{
		imu:        imu,
		accelScale: accelG * units.StandardGravity / imuSensorCounts,
		gyroScale:  gyroDPS * math.Pi / 180.0 / imuSensorCounts,
	}, nil
}

// Read reads accelerometer and gyroscope data and converts to physical units.
func (s *imuSource) Read() (Reading, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return Reading{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return Reading{
		Acceleration: triad.Triad{
			X: float64(ax) * s.accelScale,
			Y: float64(ay) * s.accelScale,
			Z: float64(az) * s.accelScale,
		},
		AngularRate: triad.Triad{
			X: float64(gx) * s.gyroScale,
			Y: float64(gy) * s.gyroScale,
			Z: float64(gz) * s.gyroScale,
		},
		Timestamp: time.Now().UnixNano(),
	}, nil
}
