// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package telemetry holds the environmental readings exchanged over the link, their ASCII
// frame encoding, and the process-wide store that sensors, radio loops, and displays share.
//
// A frame looks like "TS,25.31,61.20,100.84,123": a fixed tag, temperature in °C, relative
// humidity in %, pressure in kPa, each with two decimals rounded half away from zero, and
// a sequence number.
package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Tag is the first field of every frame.
const Tag = "TS"

// DefaultMaxLen is the default largest encoded frame, it leaves room for a terminator in a
// 96-byte buffer.
const DefaultMaxLen = 95

// hardMaxLen is what the radio's length register can carry.
const hardMaxLen = 255

var (
	ErrBadTag     = errors.New("telemetry: bad tag")
	ErrFieldCount = errors.New("telemetry: wrong number of fields")
	ErrBadField   = errors.New("telemetry: bad field")
	ErrTooLong    = errors.New("telemetry: frame too long")
	ErrNotFinite  = errors.New("telemetry: value is not finite")
)

// Reading is one environmental sample.
type Reading struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH
	Pressure    float64 `json:"pressure"`    // kPa
}

// Finite reports whether all fields are regular numbers. Sensors report faults as NaN.
func (r Reading) Finite() bool {
	for _, v := range [...]float64{r.Temperature, r.Humidity, r.Pressure} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Record is a reading as carried in one frame.
type Record struct {
	Reading
	Sequence uint32 `json:"seq"`
}

// Encode renders a record as a frame. It fails with ErrNotFinite for NaN or infinite values and
// with ErrTooLong if the frame would exceed maxLen bytes. A maxLen of 0 means DefaultMaxLen.
func Encode(rec Record, maxLen int) ([]byte, error) {
	if !rec.Finite() {
		return nil, fmt.Errorf("%w: %+v", ErrNotFinite, rec.Reading)
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	maxLen = min(maxLen, hardMaxLen)

	frame := make([]byte, 0, 32)
	frame = append(frame, Tag...)
	for _, v := range [...]float64{rec.Temperature, rec.Humidity, rec.Pressure} {
		frame = append(frame, ',')
		frame = append(frame, decimal.NewFromFloat(v).StringFixed(2)...)
	}
	frame = append(frame, ',')
	frame = strconv.AppendUint(frame, uint64(rec.Sequence), 10)

	if len(frame) > maxLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrTooLong, len(frame), maxLen)
	}
	return frame, nil
}

// Decode parses a frame. The whole frame is rejected if the tag does not match, the field
// count is wrong, or any field fails to parse; there is no partial result. The sequence field
// is optional, it is 0 when missing. Numbers must be plain decimals, exponents are rejected.
func Decode(frame []byte) (Record, error) {
	fields := bytes.Split(frame, []byte{','})
	if string(fields[0]) != Tag {
		return Record{}, fmt.Errorf("%w: %q", ErrBadTag, truncate(fields[0]))
	}
	if len(fields) < 4 || len(fields) > 5 {
		return Record{}, fmt.Errorf("%w: %d", ErrFieldCount, len(fields))
	}

	var vals [3]float64
	for i := range vals {
		f := fields[i+1]
		d, err := decimal.NewFromString(string(f))
		if err == nil && bytes.ContainsAny(f, "eE") {
			err = errors.New("exponent")
		}
		if err == nil {
			vals[i] = d.InexactFloat64()
			if math.IsInf(vals[i], 0) || math.IsNaN(vals[i]) {
				err = errors.New("out of range")
			}
		}
		if err != nil {
			return Record{}, fmt.Errorf("%w %d: %q", ErrBadField, i+1, truncate(f))
		}
	}
	rec := Record{Reading: Reading{Temperature: vals[0], Humidity: vals[1], Pressure: vals[2]}}
	if len(fields) == 5 {
		seq, err := strconv.ParseUint(string(fields[4]), 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("%w 4: %q", ErrBadField, truncate(fields[4]))
		}
		rec.Sequence = uint32(seq)
	}
	return rec, nil
}

// truncate limits what gets quoted into error messages.
func truncate(b []byte) []byte {
	if len(b) > 16 {
		return b[:16]
	}
	return b
}
