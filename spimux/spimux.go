// Copyright 2017 by Thorsten von Eicken, see LICENSE file

// Package spimux shares one SPI bus between several devices using GPIO pins for device
// selection.
//
// Two arrangements are supported. With New, a demux on the bus's single chip select routes it
// to one of two devices depending on an extra GPIO pin. With NewCS, a device's chip select is
// wired to a plain GPIO pin which is driven low for the duration of each transaction, which is
// how the LoRa module is typically attached when the SPI controller's own chip select is used by
// something else.
//
// All Conns created from the same bus must share a Bus so their transactions are serialized.
package spimux

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Pin is the part of gpio.PinOut used for selection.
type Pin interface {
	Out(l gpio.Level) error
}

// Bus serializes access to an SPI bus shared by several Conns.
type Bus struct {
	mu  sync.Mutex
	spi spi.Conn
}

// NewBus wraps an SPI connection that is already configured for speed and mode.
func NewBus(c spi.Conn) *Bus { return &Bus{spi: c} }

// Conn represents a connection to one device on a shared SPI bus.
//
// A sample circuit for the demux arrangement is to use an 74LVC1G19 demux with the SPI CS
// connected to E, the gpio select pin connected to A, and the CS inputs of the two devices
// attached to Y0 and Y1 respectively. A pull-down resitor on the A input of the demux is
// recommended to ensure both CS remain inactive when the SPI CS is not driven.
//
// The speed setting and the configuration (SPI mode and number of bits) is shared between all
// devices on the bus.
type Conn struct {
	bus     *Bus
	pin     Pin
	sel     gpio.Level // pin value selecting this device
	release bool       // drive the pin to !sel after each transaction
	name    string
}

// New returns two connections for the provided SPI Conn, the first one using Low for the
// select pin, and the second using High.
func New(c spi.Conn, selPin Pin) (*Conn, *Conn) {
	b := NewBus(c)
	return &Conn{bus: b, pin: selPin, sel: gpio.Low, name: "mux0"},
		&Conn{bus: b, pin: selPin, sel: gpio.High, name: "mux1"}
}

// NewCS returns a connection whose active-low chip select is the GPIO pin cs. The pin is
// deasserted right away.
func NewCS(b *Bus, cs Pin) (*Conn, error) {
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("spimux: chip select: %w", err)
	}
	return &Conn{bus: b, pin: cs, sel: gpio.Low, release: true, name: "cs"}, nil
}

// String implements conn.Resource.
func (c *Conn) String() string { return fmt.Sprintf("spimux(%s)/%s", c.name, c.bus.spi) }

// Duplex returns the duplex mode of the underlying bus.
func (c *Conn) Duplex() conn.Duplex { return c.bus.spi.Duplex() }

// Tx selects the device and performs one transaction on the bus.
func (c *Conn) Tx(w, r []byte) error {
	return c.do(func() error { return c.bus.spi.Tx(w, r) })
}

// TxPackets selects the device and performs the packets as one transaction.
func (c *Conn) TxPackets(p []spi.Packet) error {
	return c.do(func() error { return c.bus.spi.TxPackets(p) })
}

func (c *Conn) do(fn func() error) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()

	if err := c.pin.Out(c.sel); err != nil {
		return fmt.Errorf("spimux: select: %w", err)
	}
	err := fn()
	if c.release {
		if err2 := c.pin.Out(!c.sel); err == nil && err2 != nil {
			err = fmt.Errorf("spimux: deselect: %w", err2)
		}
	}
	return err
}
