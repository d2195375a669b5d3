package propagation

import "math"

const (
	keplerTolerance = 1.0e-12
	keplerMaxIter   = 10
)

// keplerStarter picks the initial eccentric anomaly guess for a reduced
// mean anomaly m in (-pi, pi]. Below e = 0.8 plain Newton from m is
// fine. At high eccentricity the derivative 1 - e*cos(E) collapses near
// E = 0, so for small |m| the cube-root solution of the local expansion
// m = E^3/6 lands next to the root; elsewhere Danby's 0.85e offset
// keeps the first step out of the flat region.
func keplerStarter(m, e float64) float64 {
	if e < 0.8 {
		return m
	}
	if math.Abs(m) < 1.0 {
		return math.Cbrt(6.0 * m)
	}
	return m + math.Copysign(0.85*e, m)
}

// reduceAngle maps an angle into (-pi, pi].
func reduceAngle(a float64) float64 {
	r := math.Mod(a, twoPi)
	if r > math.Pi {
		r -= twoPi
	} else if r <= -math.Pi {
		r += twoPi
	}
	return r
}

// solveKepler iterates the generalized Kepler equation
//
//	capu = epw - axn*sin(epw) + ayn*cos(epw)
//
// for the eccentric longitude epw, where axn and ayn are the components
// of the eccentricity vector. Substituting u = epw - atan2(ayn, axn)
// reduces it to the classical equation, which fixes the starting guess;
// the first step is plain Newton and later steps use a second-order
// correction. Returns the trig values of the converged epw along with
// the ecosE and esinE combinations the short-period stage needs.
func solveKepler(capu, axn, ayn float64) (sinepw, cosepw, ecose, esine float64, ok bool, residual float64) {
	ecc := math.Sqrt(axn*axn + ayn*ayn)
	theta := math.Atan2(ayn, axn)
	m := reduceAngle(capu - theta)
	// Shifting by full turns leaves the equation unchanged.
	epw := capu - m + keplerStarter(m, ecc)

	var delta float64
	for i := 0; i < keplerMaxIter; i++ {
		sinepw = math.Sin(epw)
		cosepw = math.Cos(epw)
		ecose = axn*cosepw + ayn*sinepw
		esine = axn*sinepw - ayn*cosepw

		f := capu - epw + esine
		if math.Abs(f) < keplerTolerance {
			return sinepw, cosepw, ecose, esine, true, f
		}

		fdot := 1.0 - ecose
		if i == 0 {
			delta = f / fdot
		} else {
			delta = f / (fdot + 0.5*esine*delta)
		}
		epw += delta
	}

	sinepw = math.Sin(epw)
	cosepw = math.Cos(epw)
	ecose = axn*cosepw + ayn*sinepw
	esine = axn*sinepw - ayn*cosepw
	return sinepw, cosepw, ecose, esine, false, capu - epw + esine
}

// SolveKepler solves the classical Kepler equation M = E - e*sin(E) for
// the eccentric anomaly E. The mean anomaly is in radians and the
// eccentricity must be below 1.
func SolveKepler(meanAnomaly, ecc float64) (float64, error) {
	capu := math.Mod(meanAnomaly, twoPi)
	if capu < 0 {
		capu += twoPi
	}

	m := reduceAngle(capu)
	epw := capu - m + keplerStarter(m, ecc)

	var delta float64
	for i := 0; i < keplerMaxIter; i++ {
		esine := ecc * math.Sin(epw)
		f := capu - epw + esine
		if math.Abs(f) < keplerTolerance {
			return epw, nil
		}
		fdot := 1.0 - ecc*math.Cos(epw)
		if i == 0 {
			delta = f / fdot
		} else {
			delta = f / (fdot + 0.5*esine*delta)
		}
		epw += delta
	}
	return epw, &KeplerConvergenceError{Residual: capu - epw + ecc*math.Sin(epw)}
}
