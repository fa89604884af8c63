// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Lora-check verifies that an sx1276 answers on the SPI bus and optionally dumps its registers
// after initializing it with the link's modem configuration.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tve/loralink/spimux"
	"github.com/tve/loralink/sx1276"
)

func mainImpl() error {
	spiPort := flag.String("spi", "", "SPI port of the radio")
	csPin := flag.String("cs", "", "GPIO pin used as radio chip select")
	resetPin := flag.String("reset", "", "GPIO pin name of the radio reset line")
	regs := flag.Bool("regs", false, "initialize the radio and dump its registers")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		return err
	}
	port, err := spireg.Open(*spiPort)
	if err != nil {
		return err
	}
	defer port.Close()
	c, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return err
	}
	var conn sx1276.Conn = c
	if *csPin != "" {
		pin := gpioreg.ByName(*csPin)
		if pin == nil {
			return fmt.Errorf("cannot open pin %s", *csPin)
		}
		if conn, err = spimux.NewCS(spimux.NewBus(c), pin); err != nil {
			return err
		}
	}

	log.Printf("Checking sx1276 (LoRA)...")
	bus := sx1276.NewBus(conn)
	mode, err := bus.Read(sx1276.RegOpMode)
	if err != nil {
		return err
	}
	log.Printf("  op-mode is %#x", mode)
	version, err := bus.Read(sx1276.RegVersion)
	if err != nil {
		return err
	}
	if version != 0x12 {
		return fmt.Errorf("oops, got %#x instead of 0x12", version)
	}
	log.Printf("  found sx1276: OK!")

	if !*regs {
		return nil
	}
	var reset sx1276.ResetPin
	if *resetPin != "" {
		pin := gpioreg.ByName(*resetPin)
		if pin == nil {
			return fmt.Errorf("cannot open pin %s", *resetPin)
		}
		reset = pin
	}
	radio := sx1276.New(conn, reset, sx1276.RadioOpts{Logger: log.Printf})
	if err := radio.Init(sx1276.DefaultConfig()); err != nil {
		return err
	}
	radio.LogRegs()
	return radio.Error()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "lora-check: %s.\n", err)
		os.Exit(1)
	}
}
