// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package sensors reads the weather station's sensors and publishes the combined reading.
//
// The station has a hygrometer for temperature and humidity (AHT20), a barometer for pressure
// (BMP280 or BME280 via bmxx80) and optionally a thermocouple (MAX31855) whose temperature takes
// precedence over the hygrometer's.
package sensors

import (
	"fmt"
	"sort"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/tve/loralink/telemetry"
)

// Senser is implemented by all periph environmental sensors.
type Senser interface {
	Sense(e *physic.Env) error
}

// NewBarometer opens a BMP280 or BME280 on an I2C bus, addr is 0x76 or 0x77.
func NewBarometer(b i2c.Bus, addr uint16) (*bmxx80.Dev, error) {
	d, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("sensors: barometer: %w", err)
	}
	return d, nil
}

// Station combines the individual sensors into one reading. Hygrometer may be nil if the
// barometer is a BME280, which measures humidity as well. Thermometer is optional.
type Station struct {
	Hygrometer  Senser
	Barometer   Senser
	Thermometer Senser
}

// Read samples all sensors. Any sensor failing fails the whole reading.
func (s *Station) Read() (telemetry.Reading, error) {
	var baro, hygro physic.Env
	if err := s.Barometer.Sense(&baro); err != nil {
		return telemetry.Reading{}, fmt.Errorf("sensors: barometer: %w", err)
	}
	hygro = baro
	if s.Hygrometer != nil {
		if err := s.Hygrometer.Sense(&hygro); err != nil {
			return telemetry.Reading{}, fmt.Errorf("sensors: hygrometer: %w", err)
		}
	}
	if s.Thermometer != nil {
		var th physic.Env
		if err := s.Thermometer.Sense(&th); err != nil {
			return telemetry.Reading{}, fmt.Errorf("sensors: thermometer: %w", err)
		}
		hygro.Temperature = th.Temperature
	}
	return telemetry.Reading{
		Temperature: Celsius(hygro.Temperature),
		Humidity:    Percent(hygro.Humidity),
		Pressure:    KiloPascal(baro.Pressure),
	}, nil
}

// Celsius converts a temperature to degrees centigrade.
func Celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}

// Percent converts a relative humidity to percent.
func Percent(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}

// KiloPascal converts a pressure to kPa.
func KiloPascal(p physic.Pressure) float64 {
	return float64(p) / float64(physic.KiloPascal)
}

// Thermometer reads two temperatures, a max31855.Dev is a Thermometer.
type Thermometer interface {
	Temperature() (physic.Temperature, physic.Temperature, error)
}

// Thermocouple takes the median of three thermocouple readings. Every now and then the
// max31855 returns a bad value, depending a lot on noise.
type Thermocouple struct {
	dev   Thermometer
	Delay time.Duration // between readings so the chip performs a fresh conversion, default 100ms
}

// NewThermocouple wraps a thermocouple converter.
func NewThermocouple(dev Thermometer) *Thermocouple {
	return &Thermocouple{dev: dev, Delay: 100 * time.Millisecond}
}

// Sense sets the temperature to the median of three readings. It gives up after three
// errors.
func (t *Thermocouple) Sense(e *physic.Env) error {
	var temps []physic.Temperature
	var nErr int
	for len(temps) < 3 {
		th, _, err := t.dev.Temperature()
		if err != nil {
			nErr++
			if nErr == 3 {
				return err
			}
		} else {
			temps = append(temps, th)
			if len(temps) == 3 {
				break
			}
		}
		time.Sleep(t.Delay)
	}
	sort.Slice(temps, func(i, j int) bool { return temps[i] < temps[j] })
	e.Temperature = temps[1]
	return nil
}
