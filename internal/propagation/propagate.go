package propagation

import (
	"math"
	"time"
)

// Vector3 is a cartesian triple in the true-equator mean-equinox frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// StateVector is a propagated position and velocity in the TEME frame.
type StateVector struct {
	Position Vector3 `json:"position"` // km
	Velocity Vector3 `json:"velocity"` // km/s
	Tsince   float64 `json:"tsince"`   // minutes from epoch
}

// PropagateAt propagates the record to an absolute time.
func (s *SatelliteRecord) PropagateAt(t time.Time) (StateVector, error) {
	return s.Propagate(t.Sub(s.Epoch()).Minutes())
}

// Propagate advances the mean elements tsince minutes from epoch and
// returns the osculating TEME state. The record is not modified, so
// concurrent calls are safe and repeated calls are bit-identical.
func (s *SatelliteRecord) Propagate(tsince float64) (StateVector, error) {
	if s.regime == RegimeDeepSpace {
		return s.propagateDeepSpace(tsince)
	}
	return s.propagateNearEarth(tsince)
}

func (s *SatelliteRecord) propagateNearEarth(tsince float64) (StateVector, error) {
	// Secular gravity and drag.
	xmdf := s.meanAnom + s.xmdot*tsince
	omgadf := s.argp + s.omgdot*tsince
	xnoddf := s.raan + s.xnodot*tsince

	omega := omgadf
	xmp := xmdf

	tsq := tsince * tsince
	xnode := xnoddf + s.xnodcf*tsq
	tempa := 1.0 - s.c1*tsince
	tempe := s.bstar * s.c4 * tsince
	templ := s.t2cof * tsq

	if !s.simple {
		delomg := s.omgcof * tsince
		delm := 0.0
		if s.xmcof != 0.0 {
			delm = s.xmcof * (math.Pow(1.0+s.eta*math.Cos(xmdf), 3.0) - s.delmo)
		}
		temp := delomg + delm
		xmp += temp
		omega -= temp

		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - s.d2*tsq - s.d3*tcube - s.d4*tfour
		tempe += s.bstar * s.c5 * (math.Sin(xmp) - s.sinmo)
		templ += s.t3cof*tcube + tfour*(s.t4cof+tsince*s.t5cof)
	}

	a := s.aodp * tempa * tempa
	e := s.ecc - tempe

	if e <= -0.001 {
		return StateVector{}, &DecayedError{Minutes: tsince, Reason: "drag drove eccentricity below zero"}
	}
	e = clampEcc(e)

	if rp := a * (1.0 - e); rp < 1.0 {
		return StateVector{}, &DecayedError{Minutes: tsince, Radius: rp}
	}

	xl := xmp + omega + xnode + s.xnodp*templ
	return s.finishState(tsince, a, e, xl, omega, xnode, s.incl)
}

// clampEcc keeps the drag-updated eccentricity inside the range the
// short-period and Kepler stages are defined on.
func clampEcc(e float64) float64 {
	if e < 1.0e-6 {
		return 1.0e-6
	}
	if e > 1.0-1.0e-6 {
		return 1.0 - 1.0e-6
	}
	return e
}

// finishState applies the long-period periodics, solves Kepler's
// equation, applies the short-period periodics, and assembles the TEME
// state vector. It is shared by both regimes; the deep-space path passes
// its lunar-solar corrected inclination while the near-Earth path uses
// the epoch value.
func (s *SatelliteRecord) finishState(tsince, a, e, xl, omega, xnode, xinc float64) (StateVector, error) {
	beta2 := 1.0 - e*e
	xn := s.grav.XKE / math.Pow(a, 1.5)

	// Long period periodics.
	axn := e * math.Cos(omega)
	temp := 1.0 / (a * beta2)
	xll := temp * s.xlcof * axn
	aynl := temp * s.aycof
	xlt := xl + xll
	ayn := e*math.Sin(omega) + aynl

	elsq := axn*axn + ayn*ayn
	if elsq >= 1.0 {
		return StateVector{}, &DecayedError{Minutes: tsince, Reason: "perturbed eccentricity reached parabolic"}
	}

	capu := math.Mod(xlt-xnode, twoPi)
	sinepw, cosepw, ecose, esine, ok, residual := solveKepler(capu, axn, ayn)
	if !ok {
		return StateVector{}, &KeplerConvergenceError{Minutes: tsince, Residual: residual}
	}

	// Short period preliminary quantities.
	temp21 := 1.0 - elsq
	pl := a * temp21
	if pl < 0.0 {
		return StateVector{}, &DecayedError{Minutes: tsince, Reason: "negative semi-latus rectum"}
	}

	r := a * (1.0 - ecose)
	invR := 1.0 / r
	rdot := s.grav.XKE * math.Sqrt(a) * esine * invR
	rfdot := s.grav.XKE * math.Sqrt(pl) * invR

	temp32 := a * invR
	betal := math.Sqrt(temp21)
	temp33 := 1.0 / (1.0 + betal)
	cosu := temp32 * (cosepw - axn + ayn*esine*temp33)
	sinu := temp32 * (sinepw - ayn - axn*esine*temp33)
	u := math.Atan2(sinu, cosu)
	sin2u := 2.0 * sinu * cosu
	cos2u := 2.0*cosu*cosu - 1.0

	temp41 := 1.0 / pl
	temp42 := s.grav.CK2 * temp41
	temp43 := temp42 * temp41

	// Short period periodics.
	rk := r*(1.0-1.5*temp43*betal*s.x3thm1) + 0.5*temp42*s.x1mth2*cos2u
	uk := u - 0.25*temp43*s.x7thm1*sin2u
	xnodek := xnode + 1.5*temp43*s.cosio*sin2u
	xinck := xinc + 1.5*temp43*s.cosio*s.sinio*cos2u
	rdotk := rdot - xn*temp42*s.x1mth2*sin2u
	rfdotk := rfdot + xn*temp42*(s.x1mth2*cos2u+1.5*s.x3thm1)

	if rk < 1.0 {
		return StateVector{}, &DecayedError{Minutes: tsince, Radius: rk}
	}

	// Orientation vectors.
	sinuk := math.Sin(uk)
	cosuk := math.Cos(uk)
	sinik := math.Sin(xinck)
	cosik := math.Cos(xinck)
	sinnok := math.Sin(xnodek)
	cosnok := math.Cos(xnodek)

	xmx := -sinnok * cosik
	xmy := cosnok * cosik

	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	vf := s.grav.VelocityScale()
	return StateVector{
		Position: Vector3{
			X: rk * ux * s.grav.RadiusKm,
			Y: rk * uy * s.grav.RadiusKm,
			Z: rk * uz * s.grav.RadiusKm,
		},
		Velocity: Vector3{
			X: (rdotk*ux + rfdotk*vx) * vf,
			Y: (rdotk*uy + rfdotk*vy) * vf,
			Z: (rdotk*uz + rfdotk*vz) * vf,
		},
		Tsince: tsince,
	}, nil
}
