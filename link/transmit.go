// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package link runs the two ends of the telemetry link: a Transmitter that periodically sends
// the latest local reading and a Receiver that polls the radio and publishes what arrives.
//
// Delivery is best effort. A frame that cannot be sent after the configured retries is dropped
// and the next period sends a fresh reading; there are no acknowledgements.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tve/loralink/telemetry"
)

var (
	// ErrInvalidSnapshot means there is no usable reading, the cycle is skipped.
	ErrInvalidSnapshot = errors.New("link: invalid snapshot")
	// ErrSendFailed means all attempts to send a frame failed, the frame is dropped.
	ErrSendFailed = errors.New("link: send failed")
)

// Sender transmits one frame, an sx1276.Radio is a Sender.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Source provides the latest reading, a telemetry.Store is a Source.
type Source interface {
	Load() (telemetry.Snapshot, bool)
}

// TxOpts contains options for a Transmitter.
type TxOpts struct {
	Period     time.Duration      // time between transmissions, default 3s
	Retries    int                // extra attempts after a failed send
	RetryDelay time.Duration      // pause before each retry, default 300ms
	SkipDelay  time.Duration      // pause after a skipped cycle, default 500ms
	MaxLen     int                // max frame length, default telemetry.DefaultMaxLen
	Logger     logrus.FieldLogger // default logrus.StandardLogger()
}

// DefaultTxOpts returns the default options with one retry.
func DefaultTxOpts() TxOpts {
	return TxOpts{
		Period:     3 * time.Second,
		Retries:    1,
		RetryDelay: 300 * time.Millisecond,
		SkipDelay:  500 * time.Millisecond,
		MaxLen:     telemetry.DefaultMaxLen,
	}
}

// Transmitter is the sending end of the link. It owns the sequence counter.
type Transmitter struct {
	radio Sender
	src   Source
	opts  TxOpts
	log   logrus.FieldLogger
	seq   uint32
}

// NewTransmitter creates a Transmitter, zero options take their default value.
func NewTransmitter(radio Sender, src Source, opts TxOpts) *Transmitter {
	def := DefaultTxOpts()
	if opts.Period <= 0 {
		opts.Period = def.Period
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.SkipDelay <= 0 {
		opts.SkipDelay = def.SkipDelay
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = def.MaxLen
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Transmitter{radio: radio, src: src, opts: opts, log: opts.Logger}
}

// Run transmits a frame every period until the context is done.
func (t *Transmitter) Run(ctx context.Context) error {
	t.log.WithFields(logrus.Fields{
		"period": t.opts.Period, "retries": t.opts.Retries,
	}).Info("transmitter started")
	for {
		delay := t.opts.Period
		err := t.Cycle(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrInvalidSnapshot), errors.Is(err, telemetry.ErrTooLong):
			delay = t.opts.SkipDelay
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Cycle performs one period's work: snapshot, validate, encode, and send with retries. The
// sequence number advances once per frame, not per attempt.
func (t *Transmitter) Cycle(ctx context.Context) error {
	snap, ok := t.src.Load()
	switch {
	case !ok:
		t.log.Debug("no reading yet, skipping")
		return fmt.Errorf("%w: no reading yet", ErrInvalidSnapshot)
	case !snap.Finite():
		t.log.WithField("reading", snap.Reading).Warn("invalid reading, skipping")
		return fmt.Errorf("%w: %+v", ErrInvalidSnapshot, snap.Reading)
	}

	rec := telemetry.Record{Reading: snap.Reading, Sequence: t.seq}
	frame, err := telemetry.Encode(rec, t.opts.MaxLen)
	if err != nil {
		t.log.WithError(err).Error("cannot encode frame")
		return err
	}
	t.seq++

	log := t.log.WithField("seq", rec.Sequence)
	attempts := 1 + t.opts.Retries
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			if err := sleep(ctx, t.opts.RetryDelay); err != nil {
				return err
			}
		}
		err = t.radio.Send(ctx, frame)
		if err == nil {
			log.WithField("frame", string(frame)).Info("sent")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).WithField("attempt", i).Warn("send failed")
	}
	log.Errorf("frame dropped after %d attempts", attempts)
	return fmt.Errorf("%w after %d attempts: %v", ErrSendFailed, attempts, err)
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
