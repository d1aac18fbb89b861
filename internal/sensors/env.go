package sensors

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
	"github.com/relabs-tech/inertial_calibrator/internal/env"
)

var (
	envDev     *bmxx80.Dev
	envOnce    sync.Once
	envInitErr error
)

// initEnv initializes the environmental sensor once
func initEnv() {
	envOnce.Do(func() {
		cfg := config.Get()

		if _, err := host.Init(); err != nil {
			envInitErr = fmt.Errorf("periph host init: %w", err)
			return
		}

		bus, err := spireg.Open(cfg.EnvSPIDevice)
		if err != nil {
			envInitErr = fmt.Errorf("env sensor SPI open: %w", err)
			return
		}

		envDev, err = bmxx80.NewSPI(bus, &bmxx80.DefaultOpts)
		if err != nil {
			envInitErr = fmt.Errorf("env sensor init: %w", err)
			return
		}
	})
}

// ReadEnv reads the environmental sensor (temp + pressure).
func ReadEnv() (env.Sample, error) {
	initEnv()
	if envInitErr != nil {
		return env.Sample{}, envInitErr
	}

	var e physic.Env
	if err := envDev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("env sensor sense: %w", err)
	}

	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.Sample{
		Temperature: e.Temperature.Celsius(),
		Pressure:    pressurePa,
		PressureHPa: pressurePa / 100.0, // 1 hPa = 100 Pa
	}, nil
}
