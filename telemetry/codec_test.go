// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package telemetry

import (
	"errors"
	"math"
	"strings"
	"testing"
)

var encodings = map[string]struct {
	rec   Record
	frame string
}{
	"example": {Record{Reading{25.305, 61.2, 100.84}, 123}, "TS,25.31,61.20,100.84,123"},
	"zero":    {Record{}, "TS,0.00,0.00,0.00,0"},
	"negative": {Record{Reading{-12.345, 0.005, 99.994}, 7},
		"TS,-12.35,0.01,99.99,7"},
	"max-seq": {Record{Reading{1, 2, 3}, math.MaxUint32}, "TS,1.00,2.00,3.00,4294967295"},
}

func TestEncode(t *testing.T) {
	for n, tc := range encodings {
		got, err := Encode(tc.rec, 0)
		if err != nil {
			t.Fatalf("Encoding %s: unexpected error %v", n, err)
		}
		if string(got) != tc.frame {
			t.Errorf("Encoding %s got %q expected %q", n, got, tc.frame)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for n, tc := range encodings {
		frame, err := Encode(tc.rec, 0)
		if err != nil {
			t.Fatalf("Encoding %s: unexpected error %v", n, err)
		}
		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decoding %s: unexpected error %v", n, err)
		}
		want := []float64{tc.rec.Temperature, tc.rec.Humidity, tc.rec.Pressure}
		for i, v := range []float64{got.Temperature, got.Humidity, got.Pressure} {
			if math.Abs(v-want[i]) > 0.005+1e-9 {
				t.Errorf("Decoding %s field %d got %v expected %v", n, i, v, want[i])
			}
		}
		if got.Sequence != tc.rec.Sequence {
			t.Errorf("Decoding %s seq got %d expected %d", n, got.Sequence, tc.rec.Sequence)
		}
	}
}

func TestEncodeLimits(t *testing.T) {
	rec := Record{Reading{25.305, 61.2, 100.84}, 123} // 25 bytes
	if _, err := Encode(rec, 25); err != nil {
		t.Errorf("Max 25: unexpected error %v", err)
	}
	if _, err := Encode(rec, 24); !errors.Is(err, ErrTooLong) {
		t.Errorf("Max 24 got %v expected ErrTooLong", err)
	}
	huge := Record{Reading{1e90, 1e90, 1e90}, 1}
	if _, err := Encode(huge, 0); !errors.Is(err, ErrTooLong) {
		t.Errorf("Huge default got %v expected ErrTooLong", err)
	}
	if _, err := Encode(huge, 1000); !errors.Is(err, ErrTooLong) {
		t.Errorf("Huge above radio limit got %v expected ErrTooLong", err)
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		rec := Record{Reading{21, v, 100}, 1}
		if _, err := Encode(rec, 0); !errors.Is(err, ErrNotFinite) {
			t.Errorf("Value %v got %v expected ErrNotFinite", v, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := map[string]struct {
		frame string
		rec   Record
		err   error
	}{
		"full":      {"TS,25.31,61.20,100.84,123", Record{Reading{25.31, 61.2, 100.84}, 123}, nil},
		"no-seq":    {"TS,1.5,2,3", Record{Reading{1.5, 2, 3}, 0}, nil},
		"bad-tag":   {"XX,25.31,61.20,100.84,123", Record{}, ErrBadTag},
		"lower-tag": {"ts,25.31,61.20,100.84,123", Record{}, ErrBadTag},
		"empty":     {"", Record{}, ErrBadTag},
		"few":       {"TS,1,2", Record{}, ErrFieldCount},
		"many":      {"TS,1,2,3,4,5", Record{}, ErrFieldCount},
		"nan":       {"TS,abc,2,3,4", Record{}, ErrBadField},
		"blank":     {"TS,1,,3,4", Record{}, ErrBadField},
		"neg-seq":   {"TS,1,2,3,-4", Record{}, ErrBadField},
		"big-seq":   {"TS,1,2,3,4294967296", Record{}, ErrBadField},
		"newline":   {"TS,1,2,3,4\n", Record{}, ErrBadField},
		"huge":      {"TS,1e400,2,3,4", Record{}, ErrBadField},
		"neg-huge":  {"TS,1,-1e999,3,4", Record{}, ErrBadField},
		"exponent":  {"TS,1,2,1E2,4", Record{}, ErrBadField},
	}
	for n, tc := range tests {
		got, err := Decode([]byte(tc.frame))
		if !errors.Is(err, tc.err) {
			t.Fatalf("Decoding %s got error %v expected %v", n, err, tc.err)
		}
		if got != tc.rec {
			t.Errorf("Decoding %s got %+v expected %+v", n, got, tc.rec)
		}
	}
}

func TestDecodeErrorQuote(t *testing.T) {
	_, err := Decode([]byte(strings.Repeat("Z", 200)))
	if err == nil || len(err.Error()) > 64 {
		t.Errorf("Error message should be short, got %q", err)
	}
}

func TestFinite(t *testing.T) {
	if !(Reading{1, 2, 3}).Finite() {
		t.Errorf("1,2,3 should be finite")
	}
	if (Reading{1, math.NaN(), 3}).Finite() {
		t.Errorf("NaN should not be finite")
	}
}
