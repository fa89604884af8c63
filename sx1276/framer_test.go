// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestSend(t *testing.T) {
	r, chip := newTestRadio(t)
	msg := []byte("TS,25.31,61.20,100.84,123")
	if err := r.Send(context.Background(), msg); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if len(chip.sent) != 1 || !bytes.Equal(chip.sent[0], msg) {
		t.Fatalf("Sent got %q expected %q", chip.sent, msg)
	}
	if got := chip.writesTo(RegFifo); len(got) != len(msg) {
		t.Errorf("Got %d FIFO writes expected one per byte (%d)", len(got), len(msg))
	}
	if got := chip.writesTo(RegPayloadLength); !bytes.Equal(got, []byte{byte(len(msg))}) {
		t.Errorf("PayloadLength writes got %v", got)
	}
	if got := chip.writesTo(RegOpMode); !bytes.Equal(got, []byte{0x81, 0x83}) {
		t.Errorf("OpMode writes got %#x expected standby then tx", got)
	}
	if got := chip.writesTo(RegIrqFlags); !bytes.Equal(got, []byte{IrqTxDone, IrqTxDone}) {
		t.Errorf("IrqFlags writes got %#x expected TxDone cleared before and after", got)
	}
	if chip.regs[RegIrqFlags]&IrqTxDone != 0 {
		t.Errorf("TxDone still set after Send")
	}
}

func TestSendSizes(t *testing.T) {
	tests := map[string]struct {
		n   int
		err error
	}{
		"empty": {0, nil},
		"max":   {MaxPayload, nil},
		"256":   {256, ErrTooLarge},
		"1k":    {1024, ErrTooLarge},
	}
	for n, tc := range tests {
		r, chip := newTestRadio(t)
		err := r.Send(context.Background(), make([]byte, tc.n))
		if !errors.Is(err, tc.err) {
			t.Fatalf("Send %s got %v expected %v", n, err, tc.err)
		}
		if tc.err != nil && len(chip.raw) != 0 {
			t.Errorf("Send %s touched the bus: %d transactions", n, len(chip.raw))
		}
	}
}

func TestSendTimeout(t *testing.T) {
	r, chip := newTestRadio(t)
	chip.stuckTx = true
	t0 := time.Now()
	err := r.Send(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrTxTimeout) {
		t.Fatalf("Got %v expected ErrTxTimeout", err)
	}
	if d := time.Since(t0); d > time.Second {
		t.Errorf("Timeout took %s", d)
	}
	if m, _ := r.Mode(); m != ModeStandby {
		t.Errorf("Mode after timeout got %s expected standby", m)
	}
	// A timeout is not a persistent error.
	if r.Error() != nil {
		t.Errorf("Error() got %v", r.Error())
	}
	// TxDone showing up after the driver gave up must not complete the next send.
	chip.mu.Lock()
	chip.regs[RegIrqFlags] |= IrqTxDone
	chip.mu.Unlock()
	if err := r.Send(context.Background(), []byte("late")); !errors.Is(err, ErrTxTimeout) {
		t.Errorf("Send with stale TxDone got %v expected ErrTxTimeout", err)
	}
	if len(chip.sent) != 0 {
		t.Errorf("Stuck chip sent %q", chip.sent)
	}
	chip.stuckTx = false
	if err := r.Send(context.Background(), []byte("again")); err != nil {
		t.Errorf("Send after timeout got %v", err)
	}
}

func TestSendCanceled(t *testing.T) {
	r, chip := newTestRadio(t)
	chip.stuckTx = true
	r.opts.TxTimeout = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Send(ctx, []byte("hello")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Got %v expected context deadline", err)
	}
}

func TestTryReceiveNothing(t *testing.T) {
	r, chip := newTestRadio(t)
	pkt, err := r.TryReceive(make([]byte, 96))
	if pkt != nil || err != nil {
		t.Fatalf("Got %+v, %v expected nothing", pkt, err)
	}
	if got := chip.writesTo(RegOpMode); !bytes.Equal(got, []byte{0x85}) {
		t.Errorf("OpMode writes got %#x expected rx continuous", got)
	}
	if got := chip.writesTo(RegIrqFlags); len(got) != 0 {
		t.Errorf("IrqFlags written without a packet: %#x", got)
	}
}

func TestTryReceive(t *testing.T) {
	tests := map[string]struct {
		payload string
		bufLen  int
		want    string
		err     error
	}{
		"fits":      {"TS,1.00,2.00,3.00,4", 96, "TS,1.00,2.00,3.00,4", nil},
		"exact":     {"abcd", 5, "abcd", nil},
		"truncated": {"abcdefghij", 5, "abcd", ErrTruncated},
		"empty":     {"", 8, "", nil},
		"tiny-buf":  {"abc", 1, "", ErrTruncated},
	}
	for n, tc := range tests {
		r, chip := newTestRadio(t)
		chip.receive(0x40, []byte(tc.payload))
		buf := bytes.Repeat([]byte{0xee}, tc.bufLen)
		pkt, err := r.TryReceive(buf)
		if !errors.Is(err, tc.err) {
			t.Fatalf("Receive %s got error %v expected %v", n, err, tc.err)
		}
		if pkt == nil {
			t.Fatalf("Receive %s got no packet", n)
		}
		if string(pkt.Payload) != tc.want {
			t.Errorf("Receive %s got %q expected %q", n, pkt.Payload, tc.want)
		}
		if buf[len(tc.want)] != 0 {
			t.Errorf("Receive %s: payload not followed by a terminator", n)
		}
		clears := 0
		for _, v := range chip.writesTo(RegIrqFlags) {
			if v&IrqRxDone != 0 {
				clears++
			}
		}
		if clears != 1 {
			t.Errorf("Receive %s cleared RxDone %d times", n, clears)
		}
		if chip.regs[RegIrqFlags]&IrqRxDone != 0 {
			t.Errorf("Receive %s left RxDone set", n)
		}
		// Nothing new arrived.
		if pkt, err := r.TryReceive(buf); pkt != nil || err != nil {
			t.Errorf("Receive %s second poll got %+v, %v", n, pkt, err)
		}
	}
}

func TestTryReceiveCRC(t *testing.T) {
	chip := newFakeChip()
	r := New(chip, nil, fastOpts)
	cfg := DefaultConfig()
	cfg.CRC = true
	if err := r.Init(cfg); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	chip.receive(0, []byte("junk"))
	chip.regs[RegIrqFlags] |= IrqPayloadCrcErr
	if _, err := r.TryReceive(make([]byte, 16)); !errors.Is(err, ErrCRC) {
		t.Fatalf("Got %v expected ErrCRC", err)
	}
	if chip.regs[RegIrqFlags]&IrqPayloadCrcErr != 0 {
		t.Errorf("CRC error flag not cleared")
	}
}
