// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RxPacket is a received packet with stats.
type RxPacket struct {
	Payload []byte // payload, a slice of the buffer passed to TryReceive
	Snr     int    // signal-to-noise in dB for packet
	Rssi    int    // rssi in dBm for packet
}

// Send transmits one packet and waits for the radio to report that it is done. It returns
// ErrTooLarge without touching the radio if the payload exceeds MaxPayload, and ErrTxTimeout if
// TxDone does not show up within the configured timeout, in which case the radio is put back
// into standby.
func (r *Radio) Send(ctx context.Context, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}

	r.setMode(ModeStandby)

	// Push the message into the FIFO, the chip increments the pointer on each write.
	r.writeReg(RegFifoAddrPtr, 0)
	for _, b := range payload {
		r.writeReg(RegFifo, b)
	}
	r.writeReg(RegPayloadLength, byte(len(payload)))
	// A TxDone left over from an earlier timed out send must not end this one.
	r.writeReg(RegIrqFlags, IrqTxDone)

	r.setMode(ModeTx)
	if r.err != nil {
		return r.err
	}
	t0 := time.Now()
	if err := r.waitFlag(ctx, IrqTxDone, r.opts.TxTimeout); err != nil {
		r.setMode(ModeStandby)
		r.writeReg(RegIrqFlags, IrqTxDone)
		return err
	}
	r.writeReg(RegIrqFlags, IrqTxDone)
	r.log("sent %d bytes in %.1fms", len(payload), time.Since(t0).Seconds()*1000)
	return r.err
}

// waitFlag polls RegIrqFlags until one of the mask bits is set, the timeout expires, or the
// context is done. It sleeps between polls.
func (r *Radio) waitFlag(ctx context.Context, mask byte, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(r.opts.PollInterval)
	defer tick.Stop()
	for {
		if r.readReg(RegIrqFlags)&mask != 0 {
			return nil
		}
		if r.err != nil {
			return r.err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrTxTimeout, timeout)
		case <-tick.C:
		}
	}
}

// TryReceive puts the radio into continuous receive and checks whether a packet has arrived. It
// does not wait: if there is no packet it returns nil, nil.
//
// The packet is copied into buf, which is treated as a fixed receive buffer: at most len(buf)-1
// payload bytes are read and the byte following the payload is zeroed. If the packet was longer
// the clipped packet is returned together with ErrTruncated. If the payload CRC is enabled and
// failed the packet is returned with ErrCRC.
func (r *Radio) TryReceive(buf []byte) (*RxPacket, error) {
	if len(buf) == 0 {
		return nil, errors.New("sx1276: empty receive buffer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	r.setMode(ModeRxCont)
	irq := r.readReg(RegIrqFlags)
	if r.err != nil {
		return nil, r.err
	}
	if irq&IrqRxDone == 0 {
		return nil, nil
	}
	r.writeReg(RegIrqFlags, irq&(IrqRxDone|IrqPayloadCrcErr|IrqValidHeader))

	// Grab the payload.
	n := int(r.readReg(RegRxNbBytes))
	r.writeReg(RegFifoAddrPtr, r.readReg(RegFifoRxCurrent))
	m := min(n, len(buf)-1)
	for i := 0; i < m; i++ {
		buf[i] = r.readReg(RegFifo)
	}
	buf[m] = 0

	// Grab SNR and RSSI.
	snr := int(int8(r.readReg(RegPktSnr))) / 4
	raw := int(r.readReg(RegPktRssi))
	rssi := -157 + raw + raw>>4
	if r.opMode&opModeLowFreq != 0 {
		rssi = -164 + raw + raw>>4
	}
	if snr < 0 {
		rssi += snr
	}
	if r.err != nil {
		return nil, r.err
	}

	pkt := &RxPacket{Payload: buf[:m], Snr: snr, Rssi: rssi}
	switch {
	case r.cfg.CRC && irq&IrqPayloadCrcErr != 0:
		return pkt, ErrCRC
	case n > m:
		r.log("rx truncated %d->%d bytes", n, m)
		return pkt, fmt.Errorf("%w: kept %d of %d bytes", ErrTruncated, m, n)
	}
	r.log("rx %d bytes snr=%ddB rssi=%ddBm", m, snr, rssi)
	return pkt, nil
}
