// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Station runs one end of the LoRa telemetry link.
//
// In tx mode it polls the local sensors and transmits the latest reading every period. In rx mode
// it polls the radio for frames from the transmitter. Either way every reading is shown on the
// console and, if a broker is given, published to MQTT as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tve/loralink/link"
	"github.com/tve/loralink/max31855"
	"github.com/tve/loralink/sensors"
	"github.com/tve/loralink/spimux"
	"github.com/tve/loralink/sx1276"
	"github.com/tve/loralink/telemetry"
	"github.com/tve/loralink/thread"
)

type options struct {
	mode      string
	spiPort   string
	csPin     string
	resetPin  string
	resetChip string
	resetLine int
	radio     sx1276.Config
	period    time.Duration
	retries   int
	i2cBus    string
	baroAddr  uint
	aht20     bool
	thermo    string
	mqttHost  string
	topic     string
	realtime  bool
	debug     bool
}

func main() {
	o := options{radio: sx1276.DefaultConfig()}
	flag.StringVar(&o.mode, "mode", "tx", "tx to send local sensor readings, rx to receive them")
	flag.StringVar(&o.spiPort, "spi", "", "SPI port of the radio, default is the first one")
	flag.StringVar(&o.csPin, "cs", "", "GPIO pin used as radio chip select, default is the port's CS")
	flag.StringVar(&o.resetPin, "reset", "", "GPIO pin name of the radio reset line")
	flag.StringVar(&o.resetChip, "reset-chip", "", "GPIO chip of the reset line, e.g. gpiochip0, instead of -reset")
	flag.IntVar(&o.resetLine, "reset-line", 0, "line offset of the reset line on -reset-chip")
	flag.Var(&o.radio.Frequency, "freq", "carrier frequency")
	power := flag.Int("power", int(o.radio.Power), "output power in dBm (2..20)")
	flag.DurationVar(&o.period, "period", 3*time.Second, "time between transmissions")
	flag.IntVar(&o.retries, "retries", 1, "extra attempts when a transmission fails")
	flag.StringVar(&o.i2cBus, "i2c", "", "I2C bus of the sensors, default is the first one")
	flag.UintVar(&o.baroAddr, "baro", 0x76, "I2C address of the BMP280/BME280")
	flag.BoolVar(&o.aht20, "aht20", true, "read temperature and humidity from an AHT20")
	flag.StringVar(&o.thermo, "thermo", "", "SPI port of a MAX31855 thermocouple overriding the temperature")
	flag.StringVar(&o.mqttHost, "mqtt", "", "host:port of MQTT broker, none if empty")
	flag.StringVar(&o.topic, "topic", "loralink", "MQTT topic prefix")
	flag.BoolVar(&o.realtime, "rt", false, "poll the radio from a realtime thread (rx mode)")
	flag.BoolVar(&o.debug, "debug", false, "enable debug output")
	flag.Parse()
	o.radio.Power = int8(*power)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if o.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, log); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("exiting")
	}
}

func run(ctx context.Context, o options, log *logrus.Logger) error {
	if o.mode != "tx" && o.mode != "rx" {
		return fmt.Errorf("-mode must be tx or rx, not %q", o.mode)
	}
	if err := o.radio.Validate(); err != nil {
		return err
	}
	if _, err := host.Init(); err != nil {
		return err
	}

	var station *sensors.Station
	if o.mode == "tx" {
		var closeSensors func()
		var err error
		if station, closeSensors, err = openSensors(o); err != nil {
			return err
		}
		defer closeSensors()
	}
	radio, closeRadio, err := openRadio(o, log)
	if err != nil {
		return err
	}
	defer closeRadio()
	log.WithFields(logrus.Fields{
		"freq": o.radio.Frequency, "bw": o.radio.Bandwidth, "sf": o.radio.SpreadingFactor,
		"cr": o.radio.CodingRate, "power": o.radio.Power,
	}).Info("radio ready")

	store := telemetry.NewStore()
	defer store.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { display(ctx, store.Subscribe(4), log); return nil })
	if o.mqttHost != "" {
		mq, err := newMQ(o.mqttHost, o.topic, log)
		if err != nil {
			return fmt.Errorf("cannot connect to MQTT broker: %w", err)
		}
		defer mq.Close()
		g.Go(func() error { mq.publishAll(ctx, store.Subscribe(16)); return nil })
	}

	switch o.mode {
	case "tx":
		poller := sensors.NewPoller(station, store, time.Second, log.WithField("task", "sensors"))
		g.Go(func() error { return poller.Run(ctx) })

		opts := link.DefaultTxOpts()
		opts.Period = o.period
		opts.Retries = o.retries
		opts.Logger = log.WithField("task", "tx")
		tx := link.NewTransmitter(radio, store, opts)
		g.Go(func() error { return tx.Run(ctx) })
	case "rx":
		rx := link.NewReceiver(radio, store, link.RxOpts{Logger: log.WithField("task", "rx")})
		g.Go(func() error {
			if o.realtime {
				if err := thread.Realtime(thread.DefaultPriority); err != nil {
					log.WithError(err).Warn("cannot switch to realtime")
				}
			}
			return rx.Run(ctx)
		})
	}
	return g.Wait()
}

// openRadio opens the SPI port and the reset line, then resets and initializes the radio. A radio
// that does not answer is fatal, there is nothing useful to do without it.
func openRadio(o options, log *logrus.Logger) (*sx1276.Radio, func(), error) {
	port, err := spireg.Open(o.spiPort)
	if err != nil {
		return nil, nil, err
	}
	c, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	var conn sx1276.Conn = c
	if o.csPin != "" {
		pin := gpioreg.ByName(o.csPin)
		if pin == nil {
			port.Close()
			return nil, nil, fmt.Errorf("cannot open pin %s", o.csPin)
		}
		if conn, err = spimux.NewCS(spimux.NewBus(c), pin); err != nil {
			port.Close()
			return nil, nil, err
		}
	}

	reset, closeReset, err := openReset(o)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	cleanup := func() {
		closeReset()
		port.Close()
	}

	var logger sx1276.LogPrintf
	if o.debug {
		logger = log.WithField("dev", "sx1276").Debugf
	}
	radio := sx1276.New(conn, reset, sx1276.RadioOpts{Logger: logger})
	if err := radio.Init(o.radio); err != nil {
		cleanup()
		return nil, nil, err
	}
	return radio, cleanup, nil
}

// openReset returns the reset line from either a periph pin name or a gpiod chip and line.
func openReset(o options) (sx1276.ResetPin, func(), error) {
	switch {
	case o.resetChip != "":
		return openGpiodLine(o.resetChip, o.resetLine)
	case o.resetPin != "":
		pin := gpioreg.ByName(o.resetPin)
		if pin == nil {
			return nil, nil, fmt.Errorf("cannot open pin %s", o.resetPin)
		}
		return pin, func() {}, nil
	}
	return nil, func() {}, nil
}

// openSensors opens the sensors on the I2C bus and the optional thermocouple. The returned
// function closes the buses.
func openSensors(o options) (*sensors.Station, func(), error) {
	var cl closers
	fail := func(err error) (*sensors.Station, func(), error) {
		cl.Close()
		return nil, nil, err
	}

	bus, err := i2creg.Open(o.i2cBus)
	if err != nil {
		return fail(err)
	}
	cl = append(cl, bus)
	st := &sensors.Station{}
	if st.Barometer, err = sensors.NewBarometer(bus, uint16(o.baroAddr)); err != nil {
		return fail(err)
	}
	if o.aht20 {
		if st.Hygrometer, err = sensors.NewAHT20(bus); err != nil {
			return fail(err)
		}
	}
	if o.thermo != "" {
		port, err := spireg.Open(o.thermo)
		if err != nil {
			return fail(err)
		}
		cl = append(cl, port)
		dev, err := max31855.New(port)
		if err != nil {
			return fail(err)
		}
		st.Thermometer = sensors.NewThermocouple(dev)
	}
	return st, cl.Close, nil
}

// closers closes buses in the reverse order they were opened.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Close()
	}
}
