// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Bandwidth is the LoRa signal bandwidth, its value is the RegModemConfig1 bandwidth field.
type Bandwidth uint8

const (
	BW7_8 Bandwidth = iota
	BW10_4
	BW15_6
	BW20_8
	BW31_25
	BW41_7
	BW62_5
	BW125
	BW250
	BW500
)

var bwHz = [...]physic.Frequency{
	7800 * physic.Hertz, 10400 * physic.Hertz, 15600 * physic.Hertz, 20800 * physic.Hertz,
	31250 * physic.Hertz, 41700 * physic.Hertz, 62500 * physic.Hertz, 125 * physic.KiloHertz,
	250 * physic.KiloHertz, 500 * physic.KiloHertz,
}

// Frequency returns the bandwidth as a frequency, 0 if b is out of range.
func (b Bandwidth) Frequency() physic.Frequency {
	if int(b) >= len(bwHz) {
		return 0
	}
	return bwHz[b]
}

func (b Bandwidth) String() string { return b.Frequency().String() }

// SpreadingFactor is the LoRa spreading factor, 6..12. SF6 requires implicit header mode.
type SpreadingFactor uint8

// CodingRate is the forward error correction rate, its value is the RegModemConfig1 field.
type CodingRate uint8

const (
	CR4_5 CodingRate = iota + 1
	CR4_6
	CR4_7
	CR4_8
)

func (c CodingRate) String() string { return fmt.Sprintf("4/%d", uint8(c)+4) }

// Config is the modem configuration written once by Init. Both ends of a link must use
// identical values.
type Config struct {
	Frequency       physic.Frequency // carrier frequency
	Bandwidth       Bandwidth        // signal bandwidth
	SpreadingFactor SpreadingFactor  // 6..12
	CodingRate      CodingRate       // 4/5..4/8
	ImplicitHeader  bool             // false: explicit header carrying length/CR/CRC
	CRC             bool             // payload CRC generation and check
	Preamble        uint16           // preamble length in symbols, 6 minimum
	Power           int8             // output power in dBm on PA_BOOST, 2..20
}

// DefaultConfig returns the link's canonical configuration: 915Mhz, 125Khz bandwidth, SF7,
// coding rate 4/5, explicit header, no payload CRC, 8 symbol preamble and 17dBm on PA_BOOST.
func DefaultConfig() Config {
	return Config{
		Frequency:       915 * physic.MegaHertz,
		Bandwidth:       BW125,
		SpreadingFactor: 7,
		CodingRate:      CR4_5,
		Preamble:        8,
		Power:           17,
	}
}

// Validate checks that all fields are in range for the chip.
func (c Config) Validate() error {
	switch {
	case c.Frequency < 137*physic.MegaHertz || c.Frequency > 1020*physic.MegaHertz:
		return fmt.Errorf("%w: frequency %s out of range", ErrBadConfig, c.Frequency)
	case c.Bandwidth > BW500:
		return fmt.Errorf("%w: bandwidth %d out of range", ErrBadConfig, c.Bandwidth)
	case c.SpreadingFactor < 6 || c.SpreadingFactor > 12:
		return fmt.Errorf("%w: spreading factor %d out of range", ErrBadConfig, c.SpreadingFactor)
	case c.SpreadingFactor == 6 && !c.ImplicitHeader:
		return fmt.Errorf("%w: SF6 requires implicit header mode", ErrBadConfig)
	case c.CodingRate < CR4_5 || c.CodingRate > CR4_8:
		return fmt.Errorf("%w: coding rate %d out of range", ErrBadConfig, c.CodingRate)
	case c.Preamble < 6:
		return fmt.Errorf("%w: preamble of %d symbols too short", ErrBadConfig, c.Preamble)
	case c.Power < 2 || c.Power > 20:
		return fmt.Errorf("%w: power %ddBm out of range", ErrBadConfig, c.Power)
	}
	return nil
}

// frf returns the three RegFrf bytes, most significant first. The frequency step is
// 32Mhz/2^19 = 61.03515625Hz, 915Mhz = 0xE4C000.
func (c Config) frf() [3]byte {
	hz := uint64(c.Frequency / physic.Hertz)
	frf := (hz<<19 + 16000000) / 32000000 // rounded
	return [3]byte{byte(frf >> 16), byte(frf >> 8), byte(frf)}
}

// lowFreq is true for the 169/433Mhz bands, which use the LF register bank.
func (c Config) lowFreq() bool { return c.Frequency < 525*physic.MegaHertz }

// modemConfig1: bandwidth, coding rate, implicit header.
func (c Config) modemConfig1() byte {
	v := byte(c.Bandwidth)<<4 | byte(c.CodingRate)<<1
	if c.ImplicitHeader {
		v |= 0x01
	}
	return v
}

// modemConfig2: spreading factor, single packet tx, payload crc.
func (c Config) modemConfig2() byte {
	v := byte(c.SpreadingFactor) << 4
	if c.CRC {
		v |= 0x04
	}
	return v
}

// modemConfig3: low data rate optimization when a symbol exceeds 16ms, LNA AGC on.
func (c Config) modemConfig3() byte {
	v := byte(0x04)
	bw := int64(c.Bandwidth.Frequency() / physic.Hertz)
	if bw > 0 && int64(1)<<c.SpreadingFactor*1000 > 16*bw {
		v |= 0x08
	}
	return v
}

// paConfig returns the RegPaConfig and RegPaDac values. Only PA_BOOST is used because RFM9x
// modules leave the RFO pins unconnected. Above 17dBm the PA DAC adds 3dB.
func (c Config) paConfig() (pa, dac byte) {
	if c.Power > 17 {
		return paBoost | byte(c.Power-5), paDac20
	}
	return paBoost | byte(c.Power-2), paDacOff
}
