// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Sensor-check takes one reading from the station's sensors and prints it.
package main

import (
	"flag"
	"fmt"
	"os"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tve/loralink/max31855"
	"github.com/tve/loralink/sensors"
)

func mainImpl() error {
	i2cBus := flag.String("i2c", "", "I2C bus of the sensors")
	baro := flag.Uint("baro", 0x76, "I2C address of the BMP280/BME280")
	aht20 := flag.Bool("aht20", true, "read temperature and humidity from an AHT20")
	thermo := flag.String("thermo", "", "SPI port of a MAX31855 thermocouple")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(*i2cBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	st := &sensors.Station{}
	if st.Barometer, err = sensors.NewBarometer(bus, uint16(*baro)); err != nil {
		return err
	}
	if *aht20 {
		if st.Hygrometer, err = sensors.NewAHT20(bus); err != nil {
			return err
		}
	}
	if *thermo != "" {
		port, err := spireg.Open(*thermo)
		if err != nil {
			return err
		}
		defer port.Close()
		dev, err := max31855.New(port)
		if err != nil {
			return err
		}
		_, internal, err := dev.Temperature()
		if err != nil {
			return err
		}
		fmt.Printf("MAX31855 internal: %.2f°C\n", sensors.Celsius(internal))
		st.Thermometer = sensors.NewThermocouple(dev)
	}

	r, err := st.Read()
	if err != nil {
		return err
	}
	fmt.Printf("Temperature: %.2f°C humidity: %.2f%% pressure: %.2fkPa\n",
		r.Temperature, r.Humidity, r.Pressure)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "sensor-check: %s.\n", err)
		os.Exit(1)
	}
}
