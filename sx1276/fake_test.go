// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// regWrite is one register write seen by the fake chip.
type regWrite struct {
	reg Register
	val byte
}

// fakeChip simulates the LoRa register file of an sx1276 behind the SPI Conn interface. It
// implements the FIFO pointer auto-increment, write-1-to-clear IRQ flags, and completes a
// transmission as soon as TX mode is entered unless stuckTx is set.
type fakeChip struct {
	mu      sync.Mutex
	regs    [0x80]byte
	fifo    [256]byte
	raw     [][]byte   // every transaction as sent on the wire
	writes  []regWrite // decoded register writes
	sent    [][]byte   // packets transmitted
	stuckTx bool       // never raise TxDone
	err     error      // error returned by every Tx
}

func newFakeChip() *fakeChip {
	c := &fakeChip{}
	c.regs[RegVersion] = chipVersion
	return c
}

func (c *fakeChip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if len(w) != 2 || len(r) != 2 {
		return errors.New("fake: transaction is not 2 bytes")
	}
	c.raw = append(c.raw, append([]byte(nil), w...))
	reg := Register(w[0] & 0x7f)
	if w[0]&0x80 != 0 {
		c.writes = append(c.writes, regWrite{reg, w[1]})
		c.write(reg, w[1])
		return nil
	}
	r[1] = c.read(reg)
	return nil
}

func (c *fakeChip) write(reg Register, v byte) {
	switch reg {
	case RegFifo:
		c.fifo[c.regs[RegFifoAddrPtr]] = v
		c.regs[RegFifoAddrPtr]++
	case RegIrqFlags:
		c.regs[RegIrqFlags] &^= v
	case RegOpMode:
		c.regs[RegOpMode] = v
		if Mode(v&opModeMask) == ModeTx && !c.stuckTx {
			base := int(c.regs[RegFifoTxBase])
			n := int(c.regs[RegPayloadLength])
			c.sent = append(c.sent, append([]byte(nil), c.fifo[base:base+n]...))
			c.regs[RegIrqFlags] |= IrqTxDone
			c.regs[RegOpMode] = v&^opModeMask | byte(ModeStandby)
		}
	default:
		c.regs[reg] = v
	}
}

func (c *fakeChip) read(reg Register) byte {
	if reg == RegFifo {
		v := c.fifo[c.regs[RegFifoAddrPtr]]
		c.regs[RegFifoAddrPtr]++
		return v
	}
	return c.regs[reg]
}

// receive stages a packet in the FIFO as the modem would.
func (c *fakeChip) receive(at byte, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.fifo[at:], payload)
	c.regs[RegFifoRxCurrent] = at
	c.regs[RegRxNbBytes] = byte(len(payload))
	c.regs[RegIrqFlags] |= IrqRxDone | IrqValidHeader
}

// writesTo returns the values written to one register, in order.
func (c *fakeChip) writesTo(reg Register) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var vals []byte
	for _, w := range c.writes {
		if w.reg == reg {
			vals = append(vals, w.val)
		}
	}
	return vals
}

func (c *fakeChip) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw = nil
	c.writes = nil
}

// fakePin records the levels driven on the reset line.
type fakePin struct {
	levels []gpio.Level
}

func (p *fakePin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return nil
}
