package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
	"github.com/relabs-tech/inertial_calibrator/internal/imu"
	"github.com/relabs-tech/inertial_calibrator/internal/sensors"
)

// How many sample ticks between environmental reads. Temperature moves
// slowly, no point hammering the SPI bus for it.
const envEveryTicks = 100

// RunProducer samples the IMU and publishes one JSON message per sensor
// stream on each tick. With useMock set it runs against the synthetic
// source instead of hardware.
func RunProducer(useMock bool) error {
	log.Println("starting inertial-calibrator sample producer")

	cfg := config.Get()

	var (
		src    sensors.IMUReader
		source string
		err    error
	)
	if useMock {
		log.Println("using mock IMU source")
		src = sensors.NewMockIMUSource()
		source = "mock"
	} else {
		src, err = sensors.NewIMUSource()
		if err != nil {
			return err
		}
		source = "mpu9250"
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	publish := func(topic string, s imu.Sample) {
		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("producer: %s marshal error: %v", s.Type, err)
			return
		}
		if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (%s): %v", topic, token.Error())
		}
	}

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	tick := 0
	for range ticker.C {
		reading, err := src.Read()
		if err != nil {
			log.Printf("producer: IMU read error: %v", err)
			continue
		}

		publish(cfg.TopicAccelerometer, imu.Sample{
			Source:    source,
			Type:      imu.SensorAccelerometerUncalibrated,
			Values:    reading.Acceleration,
			Timestamp: reading.Timestamp,
			Accuracy:  imu.AccuracyHigh,
		})
		publish(cfg.TopicGyroscope, imu.Sample{
			Source:    source,
			Type:      imu.SensorGyroscopeUncalibrated,
			Values:    reading.AngularRate,
			Timestamp: reading.Timestamp,
			Accuracy:  imu.AccuracyHigh,
		})
		if reading.HasMag {
			publish(cfg.TopicMagnetometer, imu.Sample{
				Source:    source,
				Type:      imu.SensorMagnetometerUncalibrated,
				Values:    reading.MagneticField,
				Timestamp: reading.Timestamp,
				Accuracy:  imu.AccuracyHigh,
			})
		}

		// Environmental sensor, low rate and optional.
		tick++
		if cfg.EnvSPIDevice != "" && !useMock && tick%envEveryTicks == 0 {
			if sample, err := sensors.ReadEnv(); err != nil {
				log.Printf("producer: env read error: %v", err)
			} else if payload, err := json.Marshal(sample); err != nil {
				log.Printf("producer: env marshal error: %v", err)
			} else {
				client.Publish(cfg.TopicEnv, 0, true, payload)
			}
		}
	}
	return nil
}
