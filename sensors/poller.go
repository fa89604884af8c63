// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sensors

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tve/loralink/telemetry"
)

// Reader produces one combined reading, a *Station is a Reader.
type Reader interface {
	Read() (telemetry.Reading, error)
}

// Publisher accepts new readings, a telemetry.Store is a Publisher.
type Publisher interface {
	Publish(rec telemetry.Record) telemetry.Snapshot
}

// Poller reads the sensors periodically and publishes each reading.
type Poller struct {
	r      Reader
	pub    Publisher
	period time.Duration
	log    logrus.FieldLogger
}

// NewPoller creates a poller, a zero period means once a second.
func NewPoller(r Reader, pub Publisher, period time.Duration, log logrus.FieldLogger) *Poller {
	if period <= 0 {
		period = time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{r: r, pub: pub, period: period, log: log}
}

// Run polls until the context is done. Failed readings are logged and skipped so the last
// good reading stays published.
func (p *Poller) Run(ctx context.Context) error {
	tick := time.NewTicker(p.period)
	defer tick.Stop()
	for {
		p.Once()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Once takes and publishes one reading.
func (p *Poller) Once() error {
	r, err := p.r.Read()
	if err != nil {
		p.log.WithError(err).Warn("sensor read failed")
		return err
	}
	p.pub.Publish(telemetry.Record{Reading: r})
	p.log.WithFields(logrus.Fields{
		"temp": r.Temperature, "hum": r.Humidity, "press": r.Pressure,
	}).Debug("sensors")
	return nil
}
