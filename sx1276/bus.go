// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import "fmt"

// Conn is the part of a periph spi.Conn used by the register bus. The chip select must be
// asserted for the duration of each Tx, which is what spi.Conn and spimux.Conn do.
type Conn interface {
	Tx(w, r []byte) error
}

// Bus performs single-register transactions with the radio. Each call is one complete
// two-byte SPI transaction: the address byte with bit 7 set for a write or clear for a read,
// followed by the data byte or a dummy byte whose response is the register value.
type Bus struct {
	conn Conn
}

// NewBus returns a register bus on top of an SPI connection.
func NewBus(c Conn) *Bus { return &Bus{conn: c} }

// Read reads one register.
func (b *Bus) Read(reg Register) (byte, error) {
	w := [2]byte{byte(reg) & 0x7f, 0}
	var r [2]byte
	if err := b.conn.Tx(w[:], r[:]); err != nil {
		return 0, fmt.Errorf("sx1276: read %s: %w", reg, err)
	}
	return r[1], nil
}

// Write writes one register.
func (b *Bus) Write(reg Register, v byte) error {
	w := [2]byte{byte(reg)&0x7f | 0x80, v}
	var r [2]byte
	if err := b.conn.Tx(w[:], r[:]); err != nil {
		return fmt.Errorf("sx1276: write %s: %w", reg, err)
	}
	return nil
}
