package propagation

import (
	"math"
	"time"

	"github.com/sat/sattrack/internal/elements"
)

// Regime selects which analytic model propagates a satellite record.
type Regime int

const (
	// RegimeNearEarth covers orbits with periods under 225 minutes.
	RegimeNearEarth Regime = iota
	// RegimeDeepSpace covers longer periods, which need lunar-solar and
	// resonance terms on top of the near-Earth model.
	RegimeDeepSpace
)

func (r Regime) String() string {
	if r == RegimeDeepSpace {
		return "deep-space"
	}
	return "near-earth"
}

// SatelliteRecord holds the initialized constants for one element set.
// It is immutable after Initialize, so a single record may be shared by
// any number of concurrent Propagate calls.
type SatelliteRecord struct {
	elems elements.OrbitalElements
	grav  GravityModel

	// Epoch mean elements in radians and radians per minute.
	ecc      float64
	incl     float64
	argp     float64
	raan     float64
	meanAnom float64
	bstar    float64

	// Mean motion and semi-major axis with the J2 kozai term removed.
	xnodp float64 // rad/min
	aodp  float64 // earth radii

	perigeeKm float64
	apogeeKm  float64
	periodMin float64
	regime    Regime

	// Inclination functions, fixed at epoch.
	sinio  float64
	cosio  float64
	theta2 float64
	x3thm1 float64
	x1mth2 float64
	x7thm1 float64
	xlcof  float64
	aycof  float64

	// Secular drag coefficients.
	eta    float64
	c1     float64
	c4     float64
	c5     float64
	d2     float64
	d3     float64
	d4     float64
	xmdot  float64
	omgdot float64
	xnodot float64
	xnodcf float64
	t2cof  float64
	t3cof  float64
	t4cof  float64
	t5cof  float64
	omgcof float64
	xmcof  float64
	delmo  float64
	sinmo  float64
	simple bool

	deep *deepSpace // nil in the near-Earth regime
}

// Initialize converts a parsed element set into a satellite record,
// recovering the un-averaged mean motion and semi-major axis and
// precomputing every constant the propagation stages need. The gravity
// model must match the one the elements were generated against.
func Initialize(el elements.OrbitalElements, grav GravityModel) (*SatelliteRecord, error) {
	if el.MeanMotion <= 0 {
		return nil, &InvalidElementsError{Field: "mean motion", Value: el.MeanMotion}
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, &InvalidElementsError{Field: "eccentricity", Value: el.Eccentricity}
	}

	s := &SatelliteRecord{
		elems:    el,
		grav:     grav,
		ecc:      el.Eccentricity,
		incl:     el.Inclination * deg2rad,
		argp:     el.ArgPerigee * deg2rad,
		raan:     el.RAAN * deg2rad,
		meanAnom: el.MeanAnomaly * deg2rad,
		bstar:    el.Bstar,
	}

	// Recover the original mean motion (xnodp) and semi-major axis
	// (aodp) from the kozai-averaged input elements.
	n0 := el.MeanMotion * twoPi / minutesPerDay
	a1 := math.Pow(grav.XKE/n0, 2.0/3.0)
	s.cosio = math.Cos(s.incl)
	s.sinio = math.Sin(s.incl)
	s.theta2 = s.cosio * s.cosio
	s.x3thm1 = 3.0*s.theta2 - 1.0
	s.x1mth2 = 1.0 - s.theta2
	s.x7thm1 = 7.0*s.theta2 - 1.0

	eosq := s.ecc * s.ecc
	betao2 := 1.0 - eosq
	betao := math.Sqrt(betao2)

	tval := 1.5 * grav.CK2 * s.x3thm1 / (betao * betao2)
	del1 := tval / (a1 * a1)
	a0 := a1 * (1.0 - del1*(1.0/3.0+del1*(1.0+del1*134.0/81.0)))
	del0 := tval / (a0 * a0)
	s.xnodp = n0 / (1.0 + del0)
	s.aodp = a0 / (1.0 - del0)

	s.perigeeKm = (s.aodp*(1.0-s.ecc) - 1.0) * grav.RadiusKm
	s.apogeeKm = (s.aodp*(1.0+s.ecc) - 1.0) * grav.RadiusKm
	s.periodMin = twoPi / s.xnodp
	if s.periodMin >= 225.0 {
		s.regime = RegimeDeepSpace
	}

	// Below 156 km perigee the drag density parameters are adjusted,
	// and below 98 km the fitting constant saturates.
	s4 := grav.S
	qoms24 := grav.QOMS2T
	if s.perigeeKm < 156.0 {
		s4val := s.perigeeKm - 78.0
		if s.perigeeKm < 98.0 {
			s4val = 20.0
		}
		qoms24 = math.Pow((120.0-s4val)/grav.RadiusKm, 4.0)
		s4 = s4val/grav.RadiusKm + 1.0
	}

	pinvsq := 1.0 / (s.aodp * s.aodp * betao2 * betao2)
	tsi := 1.0 / (s.aodp - s4)
	s.eta = s.aodp * s.ecc * tsi
	etasq := s.eta * s.eta
	eeta := s.ecc * s.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qoms24 * math.Pow(tsi, 4.0)
	coef1 := coef / math.Pow(psisq, 3.5)

	c2 := coef1 * s.xnodp * (s.aodp*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.75*grav.CK2*tsi/psisq*s.x3thm1*(8.0+3.0*etasq*(8.0+etasq)))
	s.c1 = s.bstar * c2

	s.c4 = 2.0 * s.xnodp * coef1 * s.aodp * betao2 *
		(s.eta*(2.0+0.5*etasq) + s.ecc*(0.5+2.0*etasq) -
			2.0*grav.CK2*tsi/(s.aodp*psisq)*
				(-3.0*s.x3thm1*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
					0.75*s.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*s.argp)))

	theta4 := s.theta2 * s.theta2
	temp1 := 3.0 * grav.CK2 * pinvsq * s.xnodp
	temp2 := temp1 * grav.CK2 * pinvsq
	temp3 := 1.25 * grav.CK4 * pinvsq * pinvsq * s.xnodp

	s.xmdot = s.xnodp + 0.5*temp1*betao*s.x3thm1 +
		0.0625*temp2*betao*(13.0-78.0*s.theta2+137.0*theta4)

	x1m5th := 1.0 - 5.0*s.theta2
	s.omgdot = -0.5*temp1*x1m5th +
		0.0625*temp2*(7.0-114.0*s.theta2+395.0*theta4) +
		temp3*(3.0-36.0*s.theta2+49.0*theta4)

	xhdot1 := -temp1 * s.cosio
	s.xnodot = xhdot1 + (0.5*temp2*(4.0-19.0*s.theta2)+
		2.0*temp3*(3.0-7.0*s.theta2))*s.cosio

	s.xnodcf = 3.5 * betao2 * xhdot1 * s.c1
	s.t2cof = 1.5 * s.c1

	// Long-period coefficients. The xlcof expression is singular at
	// inclination 180 degrees, so the divisor is floored there.
	if math.Abs(s.cosio+1.0) > 1.5e-12 {
		s.xlcof = 0.125 * grav.A3OVK2 * s.sinio * (3.0 + 5.0*s.cosio) / (1.0 + s.cosio)
	} else {
		s.xlcof = 0.125 * grav.A3OVK2 * s.sinio * (3.0 + 5.0*s.cosio) / 1.5e-12
	}
	s.aycof = 0.25 * grav.A3OVK2 * s.sinio

	if s.regime == RegimeDeepSpace {
		// The deep-space secular model supersedes the power-series
		// drag terms, so only the lunar-solar and resonance constants
		// remain to be set up.
		s.simple = true
		s.deep = newDeepSpace(s, eosq, betao, betao2)
		return s, nil
	}

	var c3 float64
	if s.ecc > 1.0e-4 {
		c3 = coef * tsi * grav.A3OVK2 * s.xnodp * s.sinio / s.ecc
	}
	s.c5 = 2.0 * coef1 * s.aodp * betao2 * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)
	s.omgcof = s.bstar * c3 * math.Cos(s.argp)
	if s.ecc > 1.0e-4 {
		s.xmcof = -2.0 / 3.0 * coef * s.bstar / eeta
	}
	s.delmo = math.Pow(1.0+s.eta*math.Cos(s.meanAnom), 3.0)
	s.sinmo = math.Sin(s.meanAnom)

	// Below 220 km perigee the higher-order drag terms degrade the
	// fit, so the truncated model is used instead.
	s.simple = s.perigeeKm < 220.0
	if !s.simple {
		c1sq := s.c1 * s.c1
		s.d2 = 4.0 * s.aodp * tsi * c1sq
		dtemp := s.d2 * tsi * s.c1 / 3.0
		s.d3 = (17.0*s.aodp + s4) * dtemp
		s.d4 = 0.5 * dtemp * s.aodp * tsi * (221.0*s.aodp + 31.0*s4) * s.c1
		s.t3cof = s.d2 + 2.0*c1sq
		s.t4cof = 0.25 * (3.0*s.d3 + s.c1*(12.0*s.d2+10.0*c1sq))
		s.t5cof = 0.2 * (3.0*s.d4 + 12.0*s.c1*s.d3 + 6.0*s.d2*s.d2 +
			15.0*c1sq*(2.0*s.d2+c1sq))
	}

	return s, nil
}

// Elements returns the element set the record was initialized from.
func (s *SatelliteRecord) Elements() elements.OrbitalElements { return s.elems }

// Epoch returns the element set epoch.
func (s *SatelliteRecord) Epoch() time.Time { return s.elems.Epoch() }

// Regime reports which analytic model propagates this record.
func (s *SatelliteRecord) Regime() Regime { return s.regime }

// Resonance reports the deep-space resonance classification.
func (s *SatelliteRecord) Resonance() Resonance {
	if s.deep == nil {
		return ResonanceNone
	}
	return s.deep.resonance
}

// PerigeeKm returns the perigee altitude above the equatorial radius.
func (s *SatelliteRecord) PerigeeKm() float64 { return s.perigeeKm }

// ApogeeKm returns the apogee altitude above the equatorial radius.
func (s *SatelliteRecord) ApogeeKm() float64 { return s.apogeeKm }

// PeriodMinutes returns the recovered orbital period.
func (s *SatelliteRecord) PeriodMinutes() float64 { return s.periodMin }
