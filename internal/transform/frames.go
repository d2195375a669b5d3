// Package transform provides coordinate frame conversions for propagated
// satellite states.
//
// The analytic propagator outputs position and velocity in TEME (true
// equator, mean equinox of date). Ground-relative products need ECEF, so
// the package carries the simplified Vallado rotation through GMST only
// (TEME to pseudo-Earth-fixed, treated as ECEF). Skipping polar motion
// and the equation of the equinoxes costs tens of meters, well inside
// the accuracy of the mean-element theory itself.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications",
// chapter 3.
package transform

import (
	"math"
	"time"
)

// StateTEME is a satellite state in the TEME inertial frame, km and km/s.
type StateTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// StateECEF is a satellite state in the rotating Earth-fixed frame,
// km and km/s.
type StateECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF rotates a TEME state into the Earth-fixed frame at the
// given UTC time.
func TEMEToECEF(teme StateTEME, t time.Time) StateECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME state using a precomputed GMST
// angle. Batch callers propagating many satellites to one instant
// compute the angle once.
//
// Position is a plain z-axis rotation; velocity additionally picks up
// the frame rotation term:
//
//	v_ecef = R3(gmst)*v_teme - omega x r_ecef
func TEMEToECEFWithGMST(teme StateTEME, gmst float64) StateECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return StateECEF{X: x, Y: y, Z: z, VX: vx, VY: vy, VZ: vz}
}

// Valid reports whether an Earth-fixed state is physically plausible for
// an Earth-orbiting satellite: finite components and a radius between
// the surface and well beyond geostationary altitude.
func (s StateECEF) Valid() bool {
	for _, c := range [...]float64{s.X, s.Y, s.Z, s.VX, s.VY, s.VZ} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	return mag >= 6200.0 && mag <= 60000.0
}
