package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/inertial_calibrator/internal/app"
	"github.com/relabs-tech/inertial_calibrator/internal/config"
)

func main() {
	configPath := flag.String("config", "./calibrator_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting inertial-calibrator GPS producer (NMEA → MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunGPSProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
