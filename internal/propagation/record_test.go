package propagation

import (
	"errors"
	"testing"

	"github.com/sat/sattrack/internal/elements"
)

// testElements returns the element fields of the standard near-Earth
// verification case (catalog 88888, epoch 1980 day 275.98708465).
func testElements() elements.OrbitalElements {
	return elements.OrbitalElements{
		NORADID:      88888,
		EpochYear:    1980,
		EpochDay:     275.98708465,
		Bstar:        0.66816e-4,
		Inclination:  72.8435,
		RAAN:         115.9689,
		Eccentricity: 0.0086731,
		ArgPerigee:   52.6988,
		MeanAnomaly:  110.5714,
		MeanMotion:   16.05824518,
	}
}

// geoElements is a near-geostationary set that lands in the one-day
// resonance band.
func geoElements() elements.OrbitalElements {
	return elements.OrbitalElements{
		NORADID:      11964,
		EpochYear:    2020,
		EpochDay:     100.5,
		Inclination:  1.4,
		RAAN:         90.0,
		Eccentricity: 0.0003,
		ArgPerigee:   120.0,
		MeanAnomaly:  30.0,
		MeanMotion:   1.00270,
	}
}

// molniyaElements is a highly eccentric 12-hour set that lands in the
// half-day resonance band.
func molniyaElements() elements.OrbitalElements {
	return elements.OrbitalElements{
		NORADID:      8195,
		EpochYear:    2020,
		EpochDay:     100.5,
		Inclination:  63.4,
		RAAN:         40.0,
		Eccentricity: 0.7,
		ArgPerigee:   270.0,
		MeanAnomaly:  10.0,
		MeanMotion:   2.00565,
	}
}

func TestInitializeRejectsInvalidElements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*elements.OrbitalElements)
	}{
		{"zero mean motion", func(e *elements.OrbitalElements) { e.MeanMotion = 0 }},
		{"negative mean motion", func(e *elements.OrbitalElements) { e.MeanMotion = -1 }},
		{"negative eccentricity", func(e *elements.OrbitalElements) { e.Eccentricity = -0.1 }},
		{"parabolic eccentricity", func(e *elements.OrbitalElements) { e.Eccentricity = 1.0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := testElements()
			tt.mutate(&el)
			_, err := Initialize(el, WGS72())
			var invErr *InvalidElementsError
			if !errors.As(err, &invErr) {
				t.Fatalf("Initialize() error = %v, want InvalidElementsError", err)
			}
		})
	}
}

func TestInitializeRecoversOrbitGeometry(t *testing.T) {
	rec, err := Initialize(testElements(), WGS72())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if got := rec.PeriodMinutes(); got < 89.0 || got > 90.5 {
		t.Errorf("PeriodMinutes() = %.3f, want roughly 1440/16.058", got)
	}
	if got := rec.PerigeeKm(); got < 180.0 || got > 220.0 {
		t.Errorf("PerigeeKm() = %.1f, want roughly 200", got)
	}
	if got := rec.ApogeeKm(); got < 290.0 || got > 340.0 {
		t.Errorf("ApogeeKm() = %.1f, want roughly 315", got)
	}
	if rec.Regime() != RegimeNearEarth {
		t.Errorf("Regime() = %v, want near-earth", rec.Regime())
	}
	// Perigee under 220 km selects the truncated drag model.
	if !rec.simple {
		t.Error("expected truncated drag model for sub-220 km perigee")
	}
}

func TestRegimeClassification(t *testing.T) {
	tests := []struct {
		name       string
		el         elements.OrbitalElements
		wantRegime Regime
		wantRes    Resonance
	}{
		{"low earth orbit", testElements(), RegimeNearEarth, ResonanceNone},
		{"geostationary", geoElements(), RegimeDeepSpace, ResonanceOneDay},
		{"molniya", molniyaElements(), RegimeDeepSpace, ResonanceHalfDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Initialize(tt.el, WGS72())
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
			if rec.Regime() != tt.wantRegime {
				t.Errorf("Regime() = %v, want %v", rec.Regime(), tt.wantRegime)
			}
			if rec.Resonance() != tt.wantRes {
				t.Errorf("Resonance() = %v, want %v", rec.Resonance(), tt.wantRes)
			}
		})
	}
}

func TestHalfDayBandRequiresHighEccentricity(t *testing.T) {
	el := molniyaElements()
	el.Eccentricity = 0.3 // below the 0.5 band threshold
	rec, err := Initialize(el, WGS72())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if rec.Regime() != RegimeDeepSpace {
		t.Fatalf("Regime() = %v, want deep-space", rec.Regime())
	}
	if rec.Resonance() != ResonanceNone {
		t.Errorf("Resonance() = %v, want none for e below 0.5", rec.Resonance())
	}
}

func TestWGS72Constants(t *testing.T) {
	g := WGS72()
	if g.RadiusKm != 6378.135 {
		t.Errorf("RadiusKm = %v", g.RadiusKm)
	}
	// xke = 60/sqrt(R³/mu), the canonical WGS-72 value.
	if g.XKE < 0.07436691 || g.XKE > 0.07436692 {
		t.Errorf("XKE = %.10f, want about 0.0743669161", g.XKE)
	}
	if g.CK2 != 0.5*g.J2 {
		t.Errorf("CK2 = %v, want J2/2", g.CK2)
	}
}
