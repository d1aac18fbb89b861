package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
	"github.com/relabs-tech/inertial_calibrator/internal/gps"
)

// RunConsole subscribes to the calibration topics and prints a line per
// message. Useful for watching a session from a terminal.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to session status
	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s StatusMessage
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STAT]  %-24s accel=%6d gyro=%6d mag=%6d init=%v dt=%.4fs\n",
			s.Status, s.AccelerometerSamples, s.GyroscopeSamples, s.MagnetometerSamples,
			s.Initialized, s.AverageTimeInterval,
		)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	// Subscribe to generated measurements
	measToken := client.Subscribe(cfg.TopicMeasurements, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m MeasurementMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: measurement unmarshal error: %v", err)
			return
		}

		switch m.Sensor {
		case "gyroscope":
			r := m.Measurement.Average.AngularRate
			fmt.Printf(
				"[MEAS]  %-13s n=%5d  avg=(%8.4f %8.4f %8.4f) rad/s  std=%.5f\n",
				m.Sensor, m.Measurement.Samples, r.X, r.Y, r.Z, m.Measurement.StandardDeviation,
			)
		case "magnetometer":
			b := m.Measurement.Flux.B
			fmt.Printf(
				"[MEAS]  %-13s n=%5d  avg=(%8.2f %8.2f %8.2f) µT   std=%.5f\n",
				m.Sensor, m.Measurement.Samples, b.X*1e6, b.Y*1e6, b.Z*1e6, m.Measurement.StandardDeviation,
			)
		default:
			f := m.Measurement.Average.SpecificForce
			fmt.Printf(
				"[MEAS]  %-13s n=%5d  avg=(%8.4f %8.4f %8.4f) m/s²  std=%.5f\n",
				m.Sensor, m.Measurement.Samples, f.X, f.Y, f.Z, m.Measurement.StandardDeviation,
			)
		}
	})
	measToken.Wait()
	if measToken.Error() != nil {
		return measToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicMeasurements)

	// Subscribe to session errors
	errToken := client.Subscribe(cfg.TopicErrors, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e ErrorMessage
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: error unmarshal error: %v", err)
			return
		}
		fmt.Printf("[ERR ]  %s (status=%s)\n", e.Reason, e.Status)
	})
	errToken.Wait()
	if errToken.Error() != nil {
		return errToken.Error()
	}

	// Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[GPS ]  time=%s lat=%.6f lon=%.6f speed=%.1fkn validity=%s\n",
			f.Time, f.Latitude, f.Longitude, f.SpeedKnots, f.Validity,
		)
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
