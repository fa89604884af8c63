// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package link

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tve/loralink/sx1276"
	"github.com/tve/loralink/telemetry"
)

// Poller checks the radio for a received packet without waiting, an sx1276.Radio is a Poller.
type Poller interface {
	TryReceive(buf []byte) (*sx1276.RxPacket, error)
}

// Publisher accepts decoded records, a telemetry.Store is a Publisher.
type Publisher interface {
	Publish(rec telemetry.Record) telemetry.Snapshot
}

// RxOpts contains options for a Receiver.
type RxOpts struct {
	// Interval between polls, default 100ms. It has to be well below the sender's period
	// because the radio only holds the most recent packet.
	Interval time.Duration
	BufLen   int                // receive buffer size, default telemetry.DefaultMaxLen+1
	Logger   logrus.FieldLogger // default logrus.StandardLogger()
}

// RxStats counts what the receiver has seen.
type RxStats struct {
	Received  uint64 // frames decoded and published
	Rejected  uint64 // frames that failed to decode
	Truncated uint64 // frames longer than the buffer
	CRCErrors uint64 // frames with a payload crc error
}

// Receiver is the receiving end of the link.
type Receiver struct {
	radio Poller
	pub   Publisher
	opts  RxOpts
	log   logrus.FieldLogger
	buf   []byte

	received, rejected, truncated, crcErrors atomic.Uint64
}

// NewReceiver creates a Receiver, zero options take their default value.
func NewReceiver(radio Poller, pub Publisher, opts RxOpts) *Receiver {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.BufLen <= 0 {
		opts.BufLen = telemetry.DefaultMaxLen + 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Receiver{radio: radio, pub: pub, opts: opts, log: opts.Logger,
		buf: make([]byte, opts.BufLen)}
}

// Run polls the radio every interval until the context is done or the radio fails.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.WithField("interval", r.opts.Interval).Info("receiver started")
	tick := time.NewTicker(r.opts.Interval)
	defer tick.Stop()
	for {
		if _, err := r.Poll(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Poll checks for one frame and publishes it if it decodes. Bad frames are logged, counted and
// dropped, leaving the published state untouched. Only radio failures are returned.
func (r *Receiver) Poll() (published bool, err error) {
	pkt, err := r.radio.TryReceive(r.buf)
	switch {
	case errors.Is(err, sx1276.ErrTruncated):
		r.truncated.Add(1)
		log := r.log.WithError(err)
		if pkt != nil {
			log = log.WithField("frame", string(pkt.Payload))
		}
		log.Warn("frame dropped")
		return false, nil
	case errors.Is(err, sx1276.ErrCRC):
		r.crcErrors.Add(1)
		r.log.WithError(err).Warn("frame dropped")
		return false, nil
	case err != nil:
		return false, err
	case pkt == nil:
		return false, nil
	}

	log := r.log.WithFields(logrus.Fields{"rssi": pkt.Rssi, "snr": pkt.Snr})
	rec, err := telemetry.Decode(pkt.Payload)
	if err != nil {
		r.rejected.Add(1)
		log.WithError(err).WithField("frame", string(pkt.Payload)).Warn("frame rejected")
		return false, nil
	}
	r.received.Add(1)
	r.pub.Publish(rec)
	log.WithField("seq", rec.Sequence).Infof("received %.2f°C %.2f%% %.2fkPa",
		rec.Temperature, rec.Humidity, rec.Pressure)
	return true, nil
}

// Stats returns the receive counters.
func (r *Receiver) Stats() RxStats {
	return RxStats{
		Received:  r.received.Load(),
		Rejected:  r.rejected.Load(),
		Truncated: r.truncated.Load(),
		CRCErrors: r.crcErrors.Load(),
	}
}
