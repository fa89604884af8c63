// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The max31855 package interfaces with the Maxim Integrated MAX31855 thermocouple
// to digital converter chip.
//
// The MAX31855 chip contains an analog-to-digital converter that is designed to read the
// low voltages produced by thermocouples and convert them to degrees centigrate which can
// be read out using a read-only SPI interface. The MAX31855 comes in a number of variants
// for the different types of thermocouples (max31855K for K-type, max31855J for J-type, etc).
//
// The max31855 measures the thermocouple temperature to a resolution of 0.25°C and its internal
// temperature to 0.0625°C. The absolute accuracy, however, is +/-2°C for K-type thermocouples in
// the -200°C..700°C range as well as for the internal temperature sensor.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/MAX31855.pdf
package max31855

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Fault bits reported by the chip.
var (
	ErrOpen     = errors.New("max31855: thermocouple open circuit")
	ErrShortGND = errors.New("max31855: thermocouple shorted to ground")
	ErrShortVCC = errors.New("max31855: thermocouple shorted to VCC")
)

// Dev represents a MAX31855 device.
type Dev struct {
	c conn.Conn
}

// New returns a device using an SPI port, connecting at 1MHz.
func New(p spi.Port) (*Dev, error) {
	c, err := p.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("max31855: connect: %w", err)
	}
	return &Dev{c}, nil
}

// NewConn returns a device using an already configured connection, such as a spimux.Conn.
func NewConn(c conn.Conn) *Dev { return &Dev{c} }

// Temperature returns the themocouple temperature and the internal MAX31855 temperature (in that
// order).
func (d *Dev) Temperature() (physic.Temperature, physic.Temperature, error) {
	// Perform a 32-bit read of the device.
	var wBuf, rBuf [4]byte
	if err := d.c.Tx(wBuf[:], rBuf[:]); err != nil {
		return 0, 0, fmt.Errorf("max31855: txn error: %w", err)
	}

	switch {
	case rBuf[3]&1 != 0:
		return 0, 0, ErrOpen
	case rBuf[3]&2 != 0:
		return 0, 0, ErrShortGND
	case rBuf[3]&4 != 0:
		return 0, 0, ErrShortVCC
	}

	// Internal temperature in millidegrees.
	intT := int64((int16(rBuf[2]) << 8) | int16(rBuf[3]&0xf0)) // sign-extension!
	intT = (intT * 1000) >> 8

	// Thermocouple temperature in millidegrees.
	thermT := int64((int16(rBuf[0]) << 8) | int16(rBuf[1]&0xfc))
	thermT = (thermT * 1000) >> 4

	return milliCelsius(thermT), milliCelsius(intT), nil
}

func milliCelsius(m int64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(m)*physic.MilliKelvin
}
