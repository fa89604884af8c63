// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var fastOpts = RadioOpts{
	ResetSettle:  time.Microsecond,
	TxTimeout:    20 * time.Millisecond,
	PollInterval: time.Millisecond,
}

func newTestRadio(t *testing.T) (*Radio, *fakeChip) {
	chip := newFakeChip()
	r := New(chip, &fakePin{}, fastOpts)
	if err := r.Init(DefaultConfig()); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	chip.reset()
	return r, chip
}

func TestBusAddressEncoding(t *testing.T) {
	chip := newFakeChip()
	bus := NewBus(chip)
	for a := 0; a < 0x100; a++ {
		chip.reset()
		if err := bus.Write(Register(a), 0x5a); err != nil {
			t.Fatalf("Unexpected error %v", err)
		}
		if _, err := bus.Read(Register(a)); err != nil {
			t.Fatalf("Unexpected error %v", err)
		}
		w, r := chip.raw[0], chip.raw[1]
		if w[0] != byte(a)&0x7f|0x80 || w[1] != 0x5a {
			t.Fatalf("Write %#x got %#x expected %#x", a, w, []byte{byte(a)&0x7f | 0x80, 0x5a})
		}
		if r[0] != byte(a)&0x7f {
			t.Fatalf("Read %#x got address byte %#x expected %#x", a, r[0], byte(a)&0x7f)
		}
	}
}

func TestInit(t *testing.T) {
	chip := newFakeChip()
	pin := &fakePin{}
	r := New(chip, pin, fastOpts)
	if err := r.Init(DefaultConfig()); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if len(pin.levels) != 2 || pin.levels[0] != gpio.Low || pin.levels[1] != gpio.High {
		t.Errorf("Reset pin got %v expected [Low High]", pin.levels)
	}
	if len(chip.raw) == 0 || chip.raw[0][0] != byte(RegVersion) {
		t.Fatalf("First transaction should read the version, got %#x", chip.raw)
	}
	exp := []regWrite{
		{RegOpMode, 0x80}, {RegOpMode, 0x81},
		{RegFrfMsb, 0xE4}, {RegFrfMid, 0xC0}, {RegFrfLsb, 0x00},
		{RegPaConfig, 0x8F}, {RegPaDac, 0x84},
		{RegModemConfig1, 0x72}, {RegModemConfig2, 0x70}, {RegModemConfig3, 0x04},
		{RegPreambleMsb, 0}, {RegPreambleLsb, 8},
		{RegFifoTxBase, 0}, {RegFifoRxBase, 0},
	}
	if len(chip.writes) != len(exp) {
		t.Fatalf("Init wrote %+v expected %+v", chip.writes, exp)
	}
	for i := range exp {
		if chip.writes[i] != exp[i] {
			t.Errorf("Write %d got %s=%#x expected %s=%#x", i,
				chip.writes[i].reg, chip.writes[i].val, exp[i].reg, exp[i].val)
		}
	}
	if m, err := r.Mode(); err != nil || m != ModeStandby {
		t.Errorf("Mode got %s, %v expected standby", m, err)
	}
}

func TestInitNotDetected(t *testing.T) {
	for _, v := range []byte{0x00, 0x22, 0xff} {
		chip := newFakeChip()
		chip.regs[RegVersion] = v
		r := New(chip, nil, fastOpts)
		err := r.Init(DefaultConfig())
		if !errors.Is(err, ErrChipNotDetected) {
			t.Fatalf("Version %#x got %v expected ErrChipNotDetected", v, err)
		}
		if len(chip.writes) != 0 {
			t.Errorf("Version %#x: registers written after failed detection: %+v", v, chip.writes)
		}
		if err := r.Send(context.Background(), []byte("x")); !errors.Is(err, ErrChipNotDetected) {
			t.Errorf("Send after failed Init got %v", err)
		}
	}
}

func TestInitBadConfig(t *testing.T) {
	chip := newFakeChip()
	cfg := DefaultConfig()
	cfg.SpreadingFactor = 13
	if err := New(chip, nil, fastOpts).Init(cfg); !errors.Is(err, ErrBadConfig) {
		t.Fatalf("Got %v expected ErrBadConfig", err)
	}
	if len(chip.raw) != 0 {
		t.Errorf("Bad config touched the bus: %#x", chip.raw)
	}
}

func TestInitLowFrequency(t *testing.T) {
	chip := newFakeChip()
	cfg := DefaultConfig()
	cfg.Frequency = 434 * physic.MegaHertz
	if err := New(chip, nil, fastOpts).Init(cfg); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if got := chip.writesTo(RegOpMode); !bytes.Equal(got, []byte{0x88, 0x89}) {
		t.Errorf("OpMode writes got %#x expected 0x8889", got)
	}
	if got := chip.writesTo(RegFrfMsb); !bytes.Equal(got, []byte{0x6C}) {
		t.Errorf("FrfMsb got %#x expected 0x6c", got)
	}
}

func TestBusErrorSticky(t *testing.T) {
	chip := newFakeChip()
	chip.err = errors.New("spi gone")
	r := New(chip, nil, fastOpts)
	err := r.Init(DefaultConfig())
	if err == nil || !errors.Is(err, chip.err) {
		t.Fatalf("Init got %v expected bus error", err)
	}
	if !errors.Is(r.Error(), chip.err) {
		t.Errorf("Error() got %v", r.Error())
	}
	if _, err := r.TryReceive(make([]byte, 8)); !errors.Is(err, chip.err) {
		t.Errorf("TryReceive got %v", err)
	}
}

func TestModeIsReadBack(t *testing.T) {
	r, chip := newTestRadio(t)
	if err := r.SetMode(ModeRxCont); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if got := chip.writesTo(RegOpMode); !bytes.Equal(got, []byte{0x85}) {
		t.Errorf("OpMode writes got %#x expected 0x85", got)
	}
	// The chip changes mode on its own, the driver must not trust what it wrote last.
	chip.regs[RegOpMode] = 0x81
	if m, err := r.Mode(); err != nil || m != ModeStandby {
		t.Errorf("Mode got %s, %v expected standby", m, err)
	}
	if err := r.SetMode(Mode(2)); !errors.Is(err, ErrBadConfig) {
		t.Errorf("SetMode(2) got %v expected ErrBadConfig", err)
	}
}
