// Copyright 2016 by Thorsten von Eicken, see LICENSE file

//go:build !linux

package main

import (
	"errors"

	"github.com/tve/loralink/sx1276"
)

func openGpiodLine(chip string, offset int) (sx1276.ResetPin, func(), error) {
	return nil, nil, errors.New("-reset-chip needs the linux GPIO character device")
}
