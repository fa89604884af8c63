// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// AHT20Addr is the fixed I2C address of the AHT20.
const AHT20Addr = 0x38

const (
	ahtCmdInit     = 0xBE
	ahtCmdMeasure  = 0xAC
	ahtCmdReset    = 0xBA
	ahtStatusBusy  = 0x80
	ahtStatusCalib = 0x08
)

var (
	ErrBusy = errors.New("aht20: measurement not ready")
	ErrCRC  = errors.New("aht20: crc mismatch")
)

// AHT20 is an Aosong AHT20 temperature and humidity sensor.
type AHT20 struct {
	c            conn.Conn
	MeasureDelay time.Duration // time between triggering and reading a measurement, default 80ms
}

// NewAHT20 resets and calibrates an AHT20 on an I2C bus.
func NewAHT20(b i2c.Bus) (*AHT20, error) {
	return NewAHT20Conn(&i2c.Dev{Bus: b, Addr: AHT20Addr})
}

// NewAHT20Conn resets and calibrates an AHT20 on an already addressed connection.
func NewAHT20Conn(c conn.Conn) (*AHT20, error) {
	d := &AHT20{c: c, MeasureDelay: 80 * time.Millisecond}
	if err := d.c.Tx([]byte{ahtCmdReset}, nil); err != nil {
		return nil, fmt.Errorf("aht20: reset: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	var status [1]byte
	if err := d.c.Tx(nil, status[:]); err != nil {
		return nil, fmt.Errorf("aht20: status: %w", err)
	}
	if status[0]&ahtStatusCalib == 0 {
		if err := d.c.Tx([]byte{ahtCmdInit, 0x08, 0x00}, nil); err != nil {
			return nil, fmt.Errorf("aht20: init: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return d, nil
}

func (d *AHT20) String() string { return "AHT20" }

// Sense performs a measurement and fills in temperature and humidity.
func (d *AHT20) Sense(e *physic.Env) error {
	if err := d.c.Tx([]byte{ahtCmdMeasure, 0x33, 0x00}, nil); err != nil {
		return fmt.Errorf("aht20: trigger: %w", err)
	}
	time.Sleep(d.MeasureDelay)
	var buf [7]byte
	if err := d.c.Tx(nil, buf[:]); err != nil {
		return fmt.Errorf("aht20: read: %w", err)
	}
	if buf[0]&ahtStatusBusy != 0 {
		return ErrBusy
	}
	if crc8(buf[:6]) != buf[6] {
		return ErrCRC
	}
	rawH := uint32(buf[1])<<12 | uint32(buf[2])<<4 | uint32(buf[3])>>4
	rawT := uint32(buf[3]&0x0F)<<16 | uint32(buf[4])<<8 | uint32(buf[5])
	// Both are 20-bit fractions of full scale: 0..100%RH and -50..150°C.
	e.Humidity = physic.RelativeHumidity(int64(rawH) * int64(100*physic.PercentRH) >> 20)
	e.Temperature = physic.ZeroCelsius - 50*physic.Kelvin +
		physic.Temperature(int64(rawT)*int64(200*physic.Kelvin)>>20)
	return nil
}

// crc8 is the Sensirion style crc: polynomial 0x31, initial value 0xFF.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
