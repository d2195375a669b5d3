package transform

import (
	"math"
	"testing"
	"time"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want float64
	}{
		{"j2000 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"vallado example", time.Date(1996, 10, 26, 14, 20, 0, 0, time.UTC), 2450383.09722222},
		{"unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.t)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("JulianDate() = %.8f, want %.8f", got, tt.want)
			}
		})
	}
}

func TestGMSTKnownValue(t *testing.T) {
	// Vallado example 3-5: 1992 Aug 20 12:14:00 UT1 gives
	// GMST = 152.578787810 degrees.
	at := time.Date(1992, 8, 20, 12, 14, 0, 0, time.UTC)
	want := 152.578787810 * math.Pi / 180.0
	got := GMST(at)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("GMST() = %.9f rad, want %.9f", got, want)
	}
}

func TestGMSTRange(t *testing.T) {
	for _, at := range []time.Time{
		time.Date(1980, 10, 1, 23, 41, 24, 0, time.UTC),
		time.Date(2020, 4, 9, 12, 0, 0, 0, time.UTC),
		time.Date(2056, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		got := GMST(at)
		if got < 0 || got >= 2*math.Pi {
			t.Errorf("GMST(%v) = %v, outside [0, 2pi)", at, got)
		}
	}
}
