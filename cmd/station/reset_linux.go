// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/gpio"

	"github.com/tve/loralink/sx1276"
)

// gpiodPin drives a line requested through the GPIO character device.
type gpiodPin struct {
	l *gpiod.Line
}

func (p gpiodPin) Out(l gpio.Level) error {
	v := 0
	if l {
		v = 1
	}
	return p.l.SetValue(v)
}

// openGpiodLine requests a reset line as an output, initially high so the radio is not held in
// reset.
func openGpiodLine(chip string, offset int) (sx1276.ResetPin, func(), error) {
	l, err := gpiod.RequestLine(chip, offset, gpiod.AsOutput(1))
	if err != nil {
		return nil, nil, err
	}
	return gpiodPin{l}, func() { l.Close() }, nil
}
