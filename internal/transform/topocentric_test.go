package transform

import (
	"math"
	"testing"
)

func TestObserverGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		name                 string
		latDeg, lonDeg, altKm float64
	}{
		{"mid latitude", 45.0, 30.0, 0.1},
		{"equator", 0.0, -75.0, 0.0},
		{"high latitude", 69.66, 18.94, 0.05},
		{"southern", -33.86, 151.21, 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewObserver(tt.latDeg, tt.lonDeg, tt.altKm)
			got := ECEFToGeodetic(obs.ECEFx, obs.ECEFy, obs.ECEFz)
			if math.Abs(got.LatDeg-tt.latDeg) > 1e-6 {
				t.Errorf("latitude = %.8f, want %.8f", got.LatDeg, tt.latDeg)
			}
			if math.Abs(got.LonDeg-tt.lonDeg) > 1e-6 {
				t.Errorf("longitude = %.8f, want %.8f", got.LonDeg, tt.lonDeg)
			}
			if math.Abs(got.AltKm-tt.altKm) > 1e-4 {
				t.Errorf("altitude = %.6f km, want %.6f", got.AltKm, tt.altKm)
			}
		})
	}
}

func TestLookAnglesOverhead(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	// Satellite 400 km straight up from the equatorial observer.
	sat := StateECEF{X: obs.ECEFx + 400, Y: 0, Z: 0}

	la := obs.LookAnglesTo(sat)
	if math.Abs(la.ElevationDeg-90.0) > 0.01 {
		t.Errorf("elevation = %.4f, want 90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 0.001 {
		t.Errorf("range = %.4f km, want 400", la.RangeKm)
	}
}

func TestLookAnglesCardinalDirections(t *testing.T) {
	obs := NewObserver(0, 0, 0)

	tests := []struct {
		name   string
		sat    StateECEF
		wantAz float64
	}{
		{"north", StateECEF{X: obs.ECEFx, Y: 0, Z: 500}, 0},
		{"east", StateECEF{X: obs.ECEFx, Y: 500, Z: 0}, 90},
		{"west", StateECEF{X: obs.ECEFx, Y: -500, Z: 0}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := obs.LookAnglesTo(tt.sat)
			if math.Abs(la.AzimuthDeg-tt.wantAz) > 0.01 {
				t.Errorf("azimuth = %.4f, want %v", la.AzimuthDeg, tt.wantAz)
			}
		})
	}
}

func TestLookAnglesRangeRate(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	// Satellite moving straight away along the line of sight.
	sat := StateECEF{X: obs.ECEFx + 400, VX: 3.0}
	la := obs.LookAnglesTo(sat)
	if math.Abs(la.RangeRateKms-3.0) > 1e-9 {
		t.Errorf("range rate = %v, want 3.0 receding", la.RangeRateKms)
	}

	sat.VX = -3.0
	la = obs.LookAnglesTo(sat)
	if math.Abs(la.RangeRateKms+3.0) > 1e-9 {
		t.Errorf("range rate = %v, want -3.0 approaching", la.RangeRateKms)
	}
}
