// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The SX1276 package interfaces with a HopeRF RFM95/96/97/98 LoRA radio connected to an SPI bus.
//
// The RFM9x modules use a Semtech SX1276 radio chip and it should work fine with other radio
// modules using the same chip. Note that the SX1276, SX1277, SX1278, and SX1279 all function
// identically and only differ in which RF bands they support.
//
// The driver is polled: it does not need the DIO0 interrupt pin. All register access goes
// through single-register two-byte SPI transactions (see Bus). Send loads the FIFO, starts
// the transmitter and waits, with a timeout, for the TxDone flag. TryReceive keeps the radio in
// continuous receive and returns the most recent packet if the RxDone flag is set. The chip has
// no receive queue: a packet that is not picked up before the next one arrives is lost.
//
// The operating mode is never cached, Mode reads it back from the chip. The modem configuration
// is written once by Init, which fails with ErrChipNotDetected if the chip does not identify
// itself as an sx1276.
//
// Errors on the SPI bus are treated as fatal: the first one is recorded in the Radio and is
// returned by all further operations as well as by Error. The client code will have to create and
// initialize a fresh object to recover.
//
// Send and TryReceive are serialized by a mutex, but the TX and RX FIFO regions overlap (both
// base addresses are 0) so a node should either transmit or receive, not interleave the two
// while a packet is pending.
//
// Limitations
//
// This driver uses the SX1276 in LoRA mode only and only with the PA_BOOST output.
package sx1276

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// MaxPayload is the largest packet the FIFO and the length register can hold.
const MaxPayload = 255

var (
	// ErrChipNotDetected is returned by Init when the version register does not hold the
	// sx1276 silicon revision. It is not worth retrying.
	ErrChipNotDetected = errors.New("sx1276: chip not detected")
	ErrBadConfig       = errors.New("sx1276: bad config")
	ErrTooLarge        = errors.New("sx1276: payload too large")
	ErrTxTimeout       = errors.New("sx1276: tx done timeout")
	ErrTruncated       = errors.New("sx1276: packet truncated")
	ErrCRC             = errors.New("sx1276: payload crc error")
	errNotInitialized  = errors.New("sx1276: not initialized")
)

// ResetPin drives the radio's active-low reset line. A periph gpio.PinOut satisfies it.
type ResetPin interface {
	Out(l gpio.Level) error
}

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// RadioOpts contains options used when creating a Radio.
type RadioOpts struct {
	ResetSettle  time.Duration // time reset is held low and then waited for, default 100ms
	TxTimeout    time.Duration // max wait for TxDone, default 2s
	PollInterval time.Duration // TxDone polling interval, default 1ms
	Logger       LogPrintf     // function to use for logging
}

// Radio represents a Semtech SX127x LoRA radio.
type Radio struct {
	bus   *Bus
	reset ResetPin
	opts  RadioOpts
	log   LogPrintf

	mu     sync.Mutex // serializes transactions that span several registers
	cfg    Config     // written by Init
	opMode byte       // high bits of RegOpMode: LoRa and LF
	err    error      // persistent error
}

// New creates a Radio on an SPI connection and a reset pin, the reset pin may be nil if it is not
// connected. No I/O is performed, the caller needs to call Init.
func New(conn Conn, reset ResetPin, opts RadioOpts) *Radio {
	if opts.ResetSettle <= 0 {
		opts.ResetSettle = 100 * time.Millisecond
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 2 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	r := &Radio{
		bus: NewBus(conn), reset: reset, opts: opts,
		opMode: opModeLongRange,
		err:    errNotInitialized,
		log:    func(format string, v ...interface{}) {},
	}
	if opts.Logger != nil {
		r.log = func(format string, v ...interface{}) {
			opts.Logger("sx1276: "+format, v...)
		}
	}
	return r
}

// Reset pulses the reset line low and then waits for the chip to come out of reset. There is no
// feedback, the settle time has to be long enough.
func (r *Radio) Reset() error {
	if r.reset == nil {
		r.log("no reset pin")
		return nil
	}
	if err := r.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("sx1276: reset: %w", err)
	}
	time.Sleep(r.opts.ResetSettle)
	if err := r.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("sx1276: reset: %w", err)
	}
	time.Sleep(r.opts.ResetSettle)
	return nil
}

// Init resets the radio, verifies its identity and writes the modem configuration. It leaves the
// radio in standby. ErrChipNotDetected means nothing sensible is connected, in which case no
// configuration register has been touched.
func (r *Radio) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Reset(); err != nil {
		return err
	}
	r.err = nil
	v := r.readReg(RegVersion)
	if r.err != nil {
		return r.err
	}
	if v != chipVersion {
		r.err = fmt.Errorf("%w: version %#x, expected %#x", ErrChipNotDetected, v, chipVersion)
		return r.err
	}
	r.log("version %#x", v)

	r.cfg = cfg
	r.opMode = opModeLongRange
	if cfg.lowFreq() {
		r.opMode |= opModeLowFreq
	}
	// The LoRa bit only latches in sleep, which is the power-on mode anyway.
	r.setMode(ModeSleep)
	r.setMode(ModeStandby)

	// The order is fixed: frequency, power, modem config, preamble, fifo bases.
	frf := cfg.frf()
	r.writeReg(RegFrfMsb, frf[0])
	r.writeReg(RegFrfMid, frf[1])
	r.writeReg(RegFrfLsb, frf[2])
	pa, dac := cfg.paConfig()
	r.writeReg(RegPaConfig, pa)
	r.writeReg(RegPaDac, dac)
	r.writeReg(RegModemConfig1, cfg.modemConfig1())
	r.writeReg(RegModemConfig2, cfg.modemConfig2())
	r.writeReg(RegModemConfig3, cfg.modemConfig3())
	r.writeReg(RegPreambleMsb, byte(cfg.Preamble>>8))
	r.writeReg(RegPreambleLsb, byte(cfg.Preamble))
	r.writeReg(RegFifoTxBase, 0)
	r.writeReg(RegFifoRxBase, 0)
	r.log("config %s bw=%s sf=%d cr=%s crc=%v preamble=%d power=%ddBm -> frf=%#x",
		cfg.Frequency, cfg.Bandwidth, cfg.SpreadingFactor, cfg.CodingRate, cfg.CRC,
		cfg.Preamble, cfg.Power, frf)
	return r.err
}

// SetMode requests a mode change. It does not wait for the chip to get there.
func (r *Radio) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: mode %d", ErrBadConfig, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setMode(m)
	return r.err
}

// Mode reads the current operating mode from the chip.
func (r *Radio) Mode() (Mode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.readReg(RegOpMode)
	if r.err != nil {
		return 0, r.err
	}
	if v&opModeLongRange == 0 {
		return Mode(v & opModeMask), fmt.Errorf("sx1276: not in LoRa mode (opmode %#x)", v)
	}
	return Mode(v & opModeMask), nil
}

// Config returns the configuration written by Init.
func (r *Radio) Config() Config { return r.cfg }

// Error returns any persistent error that may have been encountered.
func (r *Radio) Error() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// LogRegs is a debug helper function to print almost all the sx1276's registers.
func (r *Radio) LogRegs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var regs [0x50]byte
	for i := 1; i < len(regs); i++ {
		regs[i], _ = r.bus.Read(Register(i))
	}
	r.log("     0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F")
	for i := 0; i < len(regs); i += 16 {
		line := fmt.Sprintf("%02x:", i)
		for j := 0; j < 16 && i+j < len(regs); j++ {
			line += fmt.Sprintf(" %02x", regs[i+j])
		}
		r.log(line)
	}
}

// setMode writes the operating mode, keeping the LoRa and LF bits.
func (r *Radio) setMode(m Mode) {
	r.writeReg(RegOpMode, r.opMode|byte(m))
}

// readReg reads one register, after an error it returns 0 without touching the bus.
func (r *Radio) readReg(reg Register) byte {
	if r.err != nil {
		return 0
	}
	v, err := r.bus.Read(reg)
	if err != nil {
		r.err = err
	}
	return v
}

// writeReg writes one register, after an error it is a no-op.
func (r *Radio) writeReg(reg Register, v byte) {
	if r.err != nil {
		return
	}
	if err := r.bus.Write(reg, v); err != nil {
		r.err = err
	}
}
