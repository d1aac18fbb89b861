// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
	"github.com/relabs-tech/inertial_calibrator/internal/env"
	"github.com/relabs-tech/inertial_calibrator/internal/generator"
	"github.com/relabs-tech/inertial_calibrator/internal/gps"
	"github.com/relabs-tech/inertial_calibrator/internal/imu"
	"github.com/relabs-tech/inertial_calibrator/internal/processor"
)

// StatusMessage is the periodic session snapshot published to the status
// topic and consumed by console, monitor, and display.
type StatusMessage struct {
	Status               string  `json:"status"`
	Initialized          bool    `json:"initialized"`
	AccelerometerSamples int     `json:"accel_samples"`
	GyroscopeSamples     int     `json:"gyro_samples"`
	MagnetometerSamples  int     `json:"mag_samples"`
	AverageTimeInterval  float64 `json:"avg_time_interval_s,omitempty"`
	GyroBaseNoise        float64 `json:"gyro_base_noise,omitempty"`
	MagBaseNoise         float64 `json:"mag_base_noise,omitempty"`
	InitialFluxNorm      float64 `json:"initial_flux_norm,omitempty"`

	// Session context, when available.
	Temperature float64  `json:"temp_c,omitempty"`
	Fix         *gps.Fix `json:"gps,omitempty"`

	Time string `json:"time"`
}

// MeasurementMessage wraps one generated calibration measurement with the
// sensor it belongs to and the session context at generation time.
type MeasurementMessage struct {
	Sensor      string                `json:"sensor"` // "accelerometer", "gyroscope", "magnetometer"
	Measurement generator.Measurement `json:"measurement"`
	Temperature float64               `json:"temp_c,omitempty"`
	Fix         *gps.Fix              `json:"gps,omitempty"`
}

// ErrorMessage reports a failed session on the errors topic.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Status string `json:"status"`
}

// RunCalibrator subscribes to the three sensor sample topics, drives the
// calibration processor, and publishes status, measurements, and errors.
func RunCalibrator() error {
	log.Println("starting inertial-calibrator session")

	cfg := config.Get()

	proc := processor.New()
	if err := applyDetectorConfig(proc, cfg); err != nil {
		return err
	}

	// Session context updated from MQTT handler goroutines, read from the
	// processing loop.
	var (
		ctxMu    sync.RWMutex
		lastFix  *gps.Fix
		lastTemp float64
	)
	sessionContext := func() (float64, *gps.Fix) {
		ctxMu.RLock()
		defer ctxMu.RUnlock()
		return lastTemp, lastFix
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCalibrator)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("calibrator: connected to MQTT broker at %s", cfg.MQTTBroker)

	publishJSON := func(topic string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("calibrator: marshal error (%s): %v", topic, err)
			return
		}
		if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("calibrator: MQTT publish error (%s): %v", topic, token.Error())
		}
	}

	publishMeasurement := func(sensor string, m generator.Measurement) {
		if cfg.TopicMeasurements == "" {
			return
		}
		temp, fix := sessionContext()
		publishJSON(cfg.TopicMeasurements, MeasurementMessage{
			Sensor:      sensor,
			Measurement: m,
			Temperature: temp,
			Fix:         fix,
		})
	}

	proc.Listener = processor.Listener{
		OnInitializationStarted: func(*processor.Processor) {
			log.Println("calibrator: initialization started, keep the device still")
		},
		OnInitializationCompleted: func(_ *processor.Processor, baseNoiseLevel float64) {
			log.Printf("calibrator: initialization completed, base noise level %.6f m/s²", baseNoiseLevel)
		},
		OnError: func(p *processor.Processor, reason processor.ErrorReason) {
			log.Printf("calibrator: session failed: %s", reason)
			if cfg.TopicErrors != "" {
				publishJSON(cfg.TopicErrors, ErrorMessage{
					Reason: reason.String(),
					Status: p.Status().String(),
				})
			}
		},
		OnStaticIntervalDetected: func(*processor.Processor) {
			log.Println("calibrator: static interval closed")
		},
		OnDynamicIntervalDetected: func(*processor.Processor) {
			log.Println("calibrator: dynamic interval closed")
		},
		OnStaticIntervalSkipped: func(*processor.Processor) {
			log.Println("calibrator: static interval skipped (too short)")
		},
		OnDynamicIntervalSkipped: func(*processor.Processor) {
			log.Println("calibrator: dynamic interval skipped (too long)")
		},
		OnGeneratedAccelerometerMeasurement: func(_ *processor.Processor, m generator.Measurement) {
			publishMeasurement("accelerometer", m)
		},
		OnGeneratedGyroscopeMeasurement: func(_ *processor.Processor, m generator.Measurement) {
			publishMeasurement("gyroscope", m)
		},
		OnGeneratedMagnetometerMeasurement: func(_ *processor.Processor, m generator.Measurement) {
			publishMeasurement("magnetometer", m)
		},
		OnReset: func(*processor.Processor) {
			log.Println("calibrator: session reset")
		},
	}

	// Samples are funneled into one channel so the processor only ever runs
	// on the loop goroutine below.
	samples := make(chan imu.Sample, 256)
	enqueue := func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("calibrator: sample unmarshal error (%s): %v", msg.Topic(), err)
			return
		}
		select {
		case samples <- s:
		default:
			log.Printf("calibrator: sample queue full, dropping %s sample", s.Type)
		}
	}

	for _, topic := range []string{cfg.TopicAccelerometer, cfg.TopicGyroscope, cfg.TopicMagnetometer} {
		token := client.Subscribe(topic, 0, enqueue)
		if token.Wait(); token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		log.Printf("calibrator: subscribed to %s", topic)
	}

	if cfg.TopicGPS != "" {
		token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				log.Printf("calibrator: gps unmarshal error: %v", err)
				return
			}
			ctxMu.Lock()
			lastFix = &f
			ctxMu.Unlock()
		})
		if token.Wait(); token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", cfg.TopicGPS, token.Error())
		}
	}

	if cfg.TopicEnv != "" {
		token := client.Subscribe(cfg.TopicEnv, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var e env.Sample
			if err := json.Unmarshal(msg.Payload(), &e); err != nil {
				log.Printf("calibrator: env unmarshal error: %v", err)
				return
			}
			ctxMu.Lock()
			lastTemp = e.Temperature
			ctxMu.Unlock()
		})
		if token.Wait(); token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", cfg.TopicEnv, token.Error())
		}
	}

	statusTicker := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer statusTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case s := <-samples:
			dispatchSample(proc, s)

		case <-statusTicker.C:
			temp, fix := sessionContext()
			msg := StatusMessage{
				Status:               proc.Status().String(),
				Initialized:          proc.Initialized(),
				AccelerometerSamples: proc.AccelerometerProcessedSamples(),
				GyroscopeSamples:     proc.GyroscopeProcessedSamples(),
				MagnetometerSamples:  proc.MagnetometerProcessedSamples(),
				Temperature:          temp,
				Fix:                  fix,
				Time:                 time.Now().Format(time.RFC3339),
			}
			if v, ok := proc.AverageTimeInterval(); ok {
				msg.AverageTimeInterval = v
			}
			if v, ok := proc.GyroscopeBaseNoiseLevel(); ok {
				msg.GyroBaseNoise = v
			}
			if v, ok := proc.MagnetometerBaseNoiseLevel(); ok {
				msg.MagBaseNoise = v
			}
			if v, ok := proc.InitialMagneticFluxDensityNorm(); ok {
				msg.InitialFluxNorm = v
			}
			publishJSON(cfg.TopicStatus, msg)

		case <-sigCh:
			log.Println("calibrator: shutting down")
			return nil
		}
	}
}

// dispatchSample routes one sample to the matching processor entry point.
func dispatchSample(proc *processor.Processor, s imu.Sample) {
	switch s.Type {
	case imu.SensorAccelerometer, imu.SensorAccelerometerUncalibrated:
		proc.ProcessAccelerometerMeasurement(s)
	case imu.SensorGyroscope, imu.SensorGyroscopeUncalibrated:
		proc.ProcessGyroscopeMeasurement(s)
	case imu.SensorMagnetometer, imu.SensorMagnetometerUncalibrated:
		proc.ProcessMagnetometerMeasurement(s)
	default:
		log.Printf("calibrator: ignoring sample with unknown sensor type %d", s.Type)
	}
}

// applyDetectorConfig forwards the configured detector parameters. Zero
// values keep the processor defaults.
func applyDetectorConfig(proc *processor.Processor, cfg *config.Config) error {
	if cfg.DetectorWindowSize != 0 {
		if err := proc.SetWindowSize(cfg.DetectorWindowSize); err != nil {
			return fmt.Errorf("detector window size: %w", err)
		}
	}
	if cfg.DetectorInitialStaticSamples != 0 {
		if err := proc.SetInitialStaticSamples(cfg.DetectorInitialStaticSamples); err != nil {
			return fmt.Errorf("detector initial static samples: %w", err)
		}
	}
	if cfg.DetectorThresholdFactor != 0 {
		if err := proc.SetThresholdFactor(cfg.DetectorThresholdFactor); err != nil {
			return fmt.Errorf("detector threshold factor: %w", err)
		}
	}
	if cfg.DetectorNoiseLevelFactor != 0 {
		if err := proc.SetInstantaneousNoiseLevelFactor(cfg.DetectorNoiseLevelFactor); err != nil {
			return fmt.Errorf("detector noise level factor: %w", err)
		}
	}
	if cfg.DetectorBaseNoiseThreshold != 0 {
		if err := proc.SetBaseNoiseLevelAbsoluteThreshold(cfg.DetectorBaseNoiseThreshold); err != nil {
			return fmt.Errorf("detector base noise threshold: %w", err)
		}
	}
	if cfg.DetectorMinStaticSamples != 0 {
		if err := proc.SetMinStaticSamples(cfg.DetectorMinStaticSamples); err != nil {
			return fmt.Errorf("detector min static samples: %w", err)
		}
	}
	if cfg.DetectorMaxDynamicSamples != 0 {
		if err := proc.SetMaxDynamicSamples(cfg.DetectorMaxDynamicSamples); err != nil {
			return fmt.Errorf("detector max dynamic samples: %w", err)
		}
	}
	return nil
}
