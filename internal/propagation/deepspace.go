package propagation

import "math"

// Resonance classifies a deep-space orbit's commensurability with the
// Earth's rotation.
type Resonance int

const (
	ResonanceNone Resonance = iota
	ResonanceOneDay
	ResonanceHalfDay
)

func (r Resonance) String() string {
	switch r {
	case ResonanceOneDay:
		return "one-day"
	case ResonanceHalfDay:
		return "half-day"
	default:
		return "none"
	}
}

// Lunar-solar and resonance model constants.
const (
	zns    = 1.19459e-5
	c1ss   = 2.9864797e-6
	zes    = 1.675e-2
	znl    = 1.5835218e-4
	c1l    = 4.7968065e-7
	zel    = 5.490e-2
	zsinis = 3.9785416e-1
	zsings = -9.8088458e-1
	zcosis = 9.1744867e-1
	zcosgs = 1.945905e-1
	root22 = 1.7891679e-6
	root32 = 3.7393792e-7
	root44 = 7.3636953e-9
	root52 = 1.1428639e-7
	root54 = 2.1765803e-9
	thdt   = 4.3752691e-3
	q22    = 1.7891679e-6
	q31    = 2.1460748e-6
	q33    = 2.2123015e-7
	g22    = 5.7686396
	g32    = 9.5240898e-1
	g44    = 1.8014998
	g52    = 1.0508330
	g54    = 4.4108898

	// Resonance integrator step (minutes) and half its square.
	integratorStep  = 720.0
	integratorStep2 = 259200.0

	// One-day band bounds on the recovered mean motion (rad/min).
	oneDayBandLow  = 0.0034906585
	oneDayBandHigh = 0.0052359877
	// Half-day band bounds; the band additionally requires e >= 0.5.
	halfDayBandLow  = 0.00826
	halfDayBandHigh = 0.00924
)

// deepSpace holds the lunar-solar and resonance constants for one
// record. Like the record it is immutable after initialization; the
// resonance integrator keeps its state in locals so concurrent
// propagation stays race-free and repeatable.
type deepSpace struct {
	resonance Resonance

	thgr float64 // GMST at epoch (rad)
	ds50 float64 // days since 1950 Jan 0.0 UTC

	// Combined lunar and solar secular rates.
	sse, ssi, ssl, ssg, ssh float64

	// Solar periodic coefficients.
	se2, se3   float64
	si2, si3   float64
	sl2, sl3   float64
	sl4        float64
	sgh2, sgh3 float64
	sgh4       float64
	sh2, sh3   float64

	// Lunar periodic coefficients.
	ee2, e3    float64
	xi2, xi3   float64
	xl2, xl3   float64
	xl4        float64
	xgh2, xgh3 float64
	xgh4       float64
	xh2, xh3   float64

	zmol, zmos float64 // mean lunar and solar anomalies at epoch

	// Resonance coefficients. The one-day band uses del1..del3 against
	// fixed phase angles; the half-day band uses the d-term series.
	del1, del2, del3                         float64
	d2201, d2211, d3210, d3222, d4410, d4422 float64
	d5220, d5232, d5421, d5433               float64
	fasx2, fasx4, fasx6                      float64
	xlamo, xfact                             float64
}

// lunarSolarTerms is one perturbing body's contribution, produced by the
// shared third-body expansion evaluated with either solar or lunar
// orientation inputs.
type lunarSolarTerms struct {
	se, si, sl, sgh, sh float64 // secular rates

	e2, e3          float64 // periodic coefficients
	i2, i3          float64
	l2, l3, l4      float64
	gh2, gh3, gh4   float64
	h2, h3          float64
}

// thirdBodyInputs carries the orientation and strength of one perturbing
// body plus the shared epoch element functions.
type thirdBodyInputs struct {
	zcosg, zsing float64
	zcosi, zsini float64
	zcosh, zsinh float64
	cc, zn, ze   float64
}

func newDeepSpace(s *SatelliteRecord, eosq, betao, betao2 float64) *deepSpace {
	d := &deepSpace{}
	d.thgr, d.ds50 = epochSiderealTime(s.elems.EpochYear, s.elems.EpochDay)

	eq := s.ecc
	xnq := s.xnodp
	aqnv := 1.0 / s.aodp
	sinq := math.Sin(s.raan)
	cosq := math.Cos(s.raan)

	// Lunar orientation at epoch, from the mean lunar node and
	// longitude referenced to 1900 Jan 0.5.
	day := d.ds50 + 18261.5
	xnodce := 4.5236020 - 9.2422029e-4*day
	stem := math.Sin(xnodce)
	ctem := math.Cos(xnodce)
	zcosil := 0.91375164 - 0.03568096*ctem
	zsinil := math.Sqrt(1.0 - zcosil*zcosil)
	zsinhl := 0.089683511 * stem / zsinil
	zcoshl := math.Sqrt(1.0 - zsinhl*zsinhl)
	c := 4.7199672 + 0.22997150*day
	gam := 5.8351514 + 0.0019443680*day
	d.zmol = mod2pi(c - gam)
	zx := 0.39785416 * stem / zsinil
	zy := zcoshl*ctem + 0.91744867*zsinhl*stem
	zx = math.Atan2(zx, zy)
	zx = gam + zx - xnodce
	zcosgl := math.Cos(zx)
	zsingl := math.Sin(zx)
	d.zmos = mod2pi(6.2565837 + 0.017201977*day)

	solar := s.thirdBodyExpansion(thirdBodyInputs{
		zcosg: zcosgs, zsing: zsings,
		zcosi: zcosis, zsini: zsinis,
		zcosh: cosq, zsinh: sinq,
		cc: c1ss, zn: zns, ze: zes,
	}, eq, eosq, betao, betao2, xnq)

	lunar := s.thirdBodyExpansion(thirdBodyInputs{
		zcosg: zcosgl, zsing: zsingl,
		zcosi: zcosil, zsini: zsinil,
		zcosh: zcoshl*cosq + zsinhl*sinq,
		zsinh: sinq*zcoshl - cosq*zsinhl,
		cc: c1l, zn: znl, ze: zel,
	}, eq, eosq, betao, betao2, xnq)

	d.sse = solar.se + lunar.se
	d.ssi = solar.si + lunar.si
	d.ssl = solar.sl + lunar.sl
	d.ssh = (solar.sh + lunar.sh) / s.sinio
	d.ssg = solar.sgh + lunar.sgh - s.cosio*d.ssh

	d.se2, d.se3 = solar.e2, solar.e3
	d.si2, d.si3 = solar.i2, solar.i3
	d.sl2, d.sl3, d.sl4 = solar.l2, solar.l3, solar.l4
	d.sgh2, d.sgh3, d.sgh4 = solar.gh2, solar.gh3, solar.gh4
	d.sh2, d.sh3 = solar.h2, solar.h3

	d.ee2, d.e3 = lunar.e2, lunar.e3
	d.xi2, d.xi3 = lunar.i2, lunar.i3
	d.xl2, d.xl3, d.xl4 = lunar.l2, lunar.l3, lunar.l4
	d.xgh2, d.xgh3, d.xgh4 = lunar.gh2, lunar.gh3, lunar.gh4
	d.xh2, d.xh3 = lunar.h2, lunar.h3

	// Geopotential resonance classification and coefficients.
	xpidot := s.omgdot + s.xnodot
	var bfact float64
	switch {
	case xnq > oneDayBandLow && xnq < oneDayBandHigh:
		d.resonance = ResonanceOneDay

		g200 := 1.0 + eosq*(-2.5+0.8125*eosq)
		g310 := 1.0 + 2.0*eosq
		g300 := 1.0 + eosq*(-6.0+6.60937*eosq)
		f220 := 0.75 * (1.0 + s.cosio) * (1.0 + s.cosio)
		f311 := 0.9375*s.sinio*s.sinio*(1.0+3.0*s.cosio) - 0.75*(1.0+s.cosio)
		f330 := 1.0 + s.cosio
		f330 = 1.875 * f330 * f330 * f330
		d.del1 = 3.0 * xnq * xnq * aqnv * aqnv
		d.del2 = 2.0 * d.del1 * f220 * g200 * q22
		d.del3 = 3.0 * d.del1 * f330 * g300 * q33 * aqnv
		d.del1 = d.del1 * f311 * g310 * q31 * aqnv
		d.fasx2 = 0.13130908
		d.fasx4 = 2.8843198
		d.fasx6 = 0.37448087
		d.xlamo = s.meanAnom + s.raan + s.argp - d.thgr
		bfact = s.xmdot + xpidot - thdt + d.ssl + d.ssg + d.ssh

	case xnq >= halfDayBandLow && xnq <= halfDayBandHigh && eq >= 0.5:
		d.resonance = ResonanceHalfDay

		eoc := eq * eosq
		g201 := -0.306 - (eq-0.64)*0.440
		var g211, g310, g322, g410, g422, g520 float64
		if eq <= 0.65 {
			g211 = 3.616 - 13.247*eq + 16.290*eosq
			g310 = -19.302 + 117.390*eq - 228.419*eosq + 156.591*eoc
			g322 = -18.9068 + 109.7927*eq - 214.6334*eosq + 146.5816*eoc
			g410 = -41.122 + 242.694*eq - 471.094*eosq + 313.953*eoc
			g422 = -146.407 + 841.880*eq - 1629.014*eosq + 1083.435*eoc
			g520 = -532.114 + 3017.977*eq - 5740.0*eosq + 3708.276*eoc
		} else {
			g211 = -72.099 + 331.819*eq - 508.738*eosq + 266.724*eoc
			g310 = -346.844 + 1582.851*eq - 2415.925*eosq + 1246.113*eoc
			g322 = -342.585 + 1554.908*eq - 2366.899*eosq + 1215.972*eoc
			g410 = -1052.797 + 4758.686*eq - 7193.992*eosq + 3651.957*eoc
			g422 = -3581.69 + 16178.11*eq - 24462.77*eosq + 12422.52*eoc
			if eq <= 0.715 {
				g520 = 1464.74 - 4664.75*eq + 3763.64*eosq
			} else {
				g520 = -5149.66 + 29936.92*eq - 54087.36*eosq + 31324.56*eoc
			}
		}
		var g533, g521, g532 float64
		if eq < 0.7 {
			g533 = -919.2277 + 4988.61*eq - 9064.77*eosq + 5542.21*eoc
			g521 = -822.71072 + 4568.6173*eq - 8491.4146*eosq + 5337.524*eoc
			g532 = -853.666 + 4690.25*eq - 8624.77*eosq + 5341.4*eoc
		} else {
			g533 = -37995.78 + 161616.52*eq - 229838.2*eosq + 109377.94*eoc
			g521 = -51752.104 + 218913.95*eq - 309468.16*eosq + 146349.42*eoc
			g532 = -40023.88 + 170470.89*eq - 242699.48*eosq + 115605.82*eoc
		}

		sini2 := s.sinio * s.sinio
		f220 := 0.75 * (1.0 + 2.0*s.cosio + s.theta2)
		f221 := 1.5 * sini2
		f321 := 1.875 * s.sinio * (1.0 - 2.0*s.cosio - 3.0*s.theta2)
		f322 := -1.875 * s.sinio * (1.0 + 2.0*s.cosio - 3.0*s.theta2)
		f441 := 35.0 * sini2 * f220
		f442 := 39.3750 * sini2 * sini2
		f522 := 9.84375 * s.sinio * (sini2*(1.0-2.0*s.cosio-5.0*s.theta2) +
			0.33333333*(-2.0+4.0*s.cosio+6.0*s.theta2))
		f523 := s.sinio * (4.92187512*sini2*(-2.0-4.0*s.cosio+10.0*s.theta2) +
			6.56250012*(1.0+2.0*s.cosio-3.0*s.theta2))
		f542 := 29.53125 * s.sinio * (2.0 - 8.0*s.cosio +
			s.theta2*(-12.0+8.0*s.cosio+10.0*s.theta2))
		f543 := 29.53125 * s.sinio * (-2.0 - 8.0*s.cosio +
			s.theta2*(12.0+8.0*s.cosio-10.0*s.theta2))

		xno2 := xnq * xnq
		ainv2 := aqnv * aqnv
		temp1 := 3.0 * xno2 * ainv2
		temp := temp1 * root22
		d.d2201 = temp * f220 * g201
		d.d2211 = temp * f221 * g211
		temp1 *= aqnv
		temp = temp1 * root32
		d.d3210 = temp * f321 * g310
		d.d3222 = temp * f322 * g322
		temp1 *= aqnv
		temp = 2.0 * temp1 * root44
		d.d4410 = temp * f441 * g410
		d.d4422 = temp * f442 * g422
		temp1 *= aqnv
		temp = temp1 * root52
		d.d5220 = temp * f522 * g520
		d.d5232 = temp * f523 * g532
		temp = 2.0 * temp1 * root54
		d.d5421 = temp * f542 * g521
		d.d5433 = temp * f543 * g533
		d.xlamo = s.meanAnom + 2.0*s.raan - 2.0*d.thgr
		bfact = s.xmdot + 2.0*s.xnodot - 2.0*thdt + d.ssl + 2.0*d.ssh

	default:
		return d
	}

	d.xfact = bfact - xnq
	return d
}

// thirdBodyExpansion evaluates the shared lunar-solar perturbation
// series for one body against the epoch elements. The same expansion
// serves both bodies; only the orientation and strength inputs differ.
func (s *SatelliteRecord) thirdBodyExpansion(in thirdBodyInputs, eq, eosq, betao, betao2, xnq float64) lunarSolarTerms {
	sing := math.Sin(s.argp)
	cosg := math.Cos(s.argp)

	a1 := in.zcosg*in.zcosh + in.zsing*in.zcosi*in.zsinh
	a3 := -in.zsing*in.zcosh + in.zcosg*in.zcosi*in.zsinh
	a7 := -in.zcosg*in.zsinh + in.zsing*in.zcosi*in.zcosh
	a8 := in.zsing * in.zsini
	a9 := in.zsing*in.zsinh + in.zcosg*in.zcosi*in.zcosh
	a10 := in.zcosg * in.zsini
	a2 := s.cosio*a7 + s.sinio*a8
	a4 := s.cosio*a9 + s.sinio*a10
	a5 := -s.sinio*a7 + s.cosio*a8
	a6 := -s.sinio*a9 + s.cosio*a10

	x1 := a1*cosg + a2*sing
	x2 := a3*cosg + a4*sing
	x3 := -a1*sing + a2*cosg
	x4 := -a3*sing + a4*cosg
	x5 := a5 * sing
	x6 := a6 * sing
	x7 := a5 * cosg
	x8 := a6 * cosg

	z31 := 12.0*x1*x1 - 3.0*x3*x3
	z32 := 24.0*x1*x2 - 6.0*x3*x4
	z33 := 12.0*x2*x2 - 3.0*x4*x4
	z1 := 3.0*(a1*a1+a2*a2) + z31*eosq
	z2 := 6.0*(a1*a3+a2*a4) + z32*eosq
	z3 := 3.0*(a3*a3+a4*a4) + z33*eosq
	z11 := -6.0*a1*a5 + eosq*(-24.0*x1*x7-6.0*x3*x5)
	z12 := -6.0*(a1*a6+a3*a5) + eosq*(-24.0*(x2*x7+x1*x8)-6.0*(x3*x6+x4*x5))
	z13 := -6.0*a3*a6 + eosq*(-24.0*x2*x8-6.0*x4*x6)
	z21 := 6.0*a2*a5 + eosq*(24.0*x1*x5-6.0*x3*x7)
	z22 := 6.0*(a4*a5+a2*a6) + eosq*(24.0*(x2*x5+x1*x6)-6.0*(x4*x7+x3*x8))
	z23 := 6.0*a4*a6 + eosq*(24.0*x2*x6-6.0*x4*x8)
	z1 = z1 + z1 + betao2*z31
	z2 = z2 + z2 + betao2*z32
	z3 = z3 + z3 + betao2*z33

	s3 := in.cc / xnq
	s2 := -0.5 * s3 / betao
	s4 := s3 * betao
	s1 := -15.0 * eq * s4
	s5 := x1*x3 + x2*x4
	s6 := x2*x3 + x1*x4
	s7 := x2*x4 - x1*x3

	out := lunarSolarTerms{
		se:  s1 * in.zn * s5,
		si:  s2 * in.zn * (z11 + z13),
		sl:  -in.zn * s3 * (z1 + z3 - 14.0 - 6.0*eosq),
		sgh: s4 * in.zn * (z31 + z33 - 6.0),
		sh:  -in.zn * s2 * (z21 + z23),

		e2:  2.0 * s1 * s6,
		e3:  2.0 * s1 * s7,
		i2:  2.0 * s2 * z12,
		i3:  2.0 * s2 * (z13 - z11),
		l2:  -2.0 * s3 * z2,
		l3:  -2.0 * s3 * (z3 - z1),
		l4:  -2.0 * s3 * (-21.0 - 9.0*eosq) * in.ze,
		gh2: 2.0 * s4 * z32,
		gh3: 2.0 * s4 * (z33 - z31),
		gh4: -18.0 * s4 * in.ze,
		h2:  -2.0 * s2 * z22,
		h3:  -2.0 * s2 * (z23 - z21),
	}

	// The node rate term is undefined for near-equatorial orbits.
	if s.incl < 5.2359877e-2 {
		out.sh = 0
	}
	return out
}

// resonanceDots evaluates the resonance acceleration series at the given
// integrator state.
func (s *SatelliteRecord) resonanceDots(xli, xni, atime float64) (xndot, xnddt, xldot float64) {
	d := s.deep
	if d.resonance == ResonanceOneDay {
		xndot = d.del1*math.Sin(xli-d.fasx2) +
			d.del2*math.Sin(2.0*(xli-d.fasx4)) +
			d.del3*math.Sin(3.0*(xli-d.fasx6))
		xnddt = d.del1*math.Cos(xli-d.fasx2) +
			2.0*d.del2*math.Cos(2.0*(xli-d.fasx4)) +
			3.0*d.del3*math.Cos(3.0*(xli-d.fasx6))
	} else {
		xomi := s.argp + s.omgdot*atime
		x2omi := xomi + xomi
		x2li := xli + xli
		xndot = d.d2201*math.Sin(x2omi+xli-g22) + d.d2211*math.Sin(xli-g22) +
			d.d3210*math.Sin(xomi+xli-g32) + d.d3222*math.Sin(-xomi+xli-g32) +
			d.d4410*math.Sin(x2omi+x2li-g44) + d.d4422*math.Sin(x2li-g44) +
			d.d5220*math.Sin(xomi+xli-g52) + d.d5232*math.Sin(-xomi+xli-g52) +
			d.d5421*math.Sin(xomi+x2li-g54) + d.d5433*math.Sin(-xomi+x2li-g54)
		xnddt = d.d2201*math.Cos(x2omi+xli-g22) + d.d2211*math.Cos(xli-g22) +
			d.d3210*math.Cos(xomi+xli-g32) + d.d3222*math.Cos(-xomi+xli-g32) +
			d.d5220*math.Cos(xomi+xli-g52) + d.d5232*math.Cos(-xomi+xli-g52) +
			2.0*(d.d4410*math.Cos(x2omi+x2li-g44)+d.d4422*math.Cos(x2li-g44)+
				d.d5421*math.Cos(xomi+x2li-g54)+d.d5433*math.Cos(-xomi+x2li-g54))
	}
	xldot = xni + d.xfact
	xnddt *= xldot
	return xndot, xnddt, xldot
}

// deepSecular applies the lunar-solar secular rates and, for resonant
// orbits, integrates the resonance effects from epoch to tsince. The
// integrator always restarts from epoch so the record stays immutable
// and results are independent of call order.
func (s *SatelliteRecord) deepSecular(tsince, xll, omgadf, xnode float64) (xllOut, omgadfOut, xnodeOut, em, xinc, xn float64) {
	d := s.deep

	xll += d.ssl * tsince
	omgadf += d.ssg * tsince
	xnode += d.ssh * tsince
	em = s.ecc + d.sse*tsince
	xinc = s.incl + d.ssi*tsince

	if xinc < 0 {
		xinc = -xinc
		xnode += math.Pi
		omgadf -= math.Pi
	}

	xn = s.xnodp
	if d.resonance == ResonanceNone {
		return xll, omgadf, xnode, em, xinc, xn
	}

	// Euler-Maclaurin integration in fixed steps from epoch, then a
	// Taylor extrapolation over the final partial step.
	xni := s.xnodp
	xli := d.xlamo
	atime := 0.0
	delt := integratorStep
	if tsince < 0 {
		delt = -integratorStep
	}
	for math.Abs(tsince-atime) >= integratorStep {
		xndot, xnddt, xldot := s.resonanceDots(xli, xni, atime)
		xli += xldot*delt + xndot*integratorStep2
		xni += xndot*delt + xnddt*integratorStep2
		atime += delt
	}
	ft := tsince - atime
	xndot, xnddt, xldot := s.resonanceDots(xli, xni, atime)
	xn = xni + xndot*ft + xnddt*ft*ft*0.5
	xl := xli + xldot*ft + xndot*ft*ft*0.5

	temp := -xnode + d.thgr + tsince*thdt
	if d.resonance == ResonanceOneDay {
		xll = xl - omgadf + temp
	} else {
		xll = xl + temp + temp
	}
	return xll, omgadf, xnode, em, xinc, xn
}

// deepPeriodics applies the lunar-solar periodic corrections at tsince.
// Below 0.2 rad inclination the node and argument of perigee are
// entangled, so the Lyddane variables are corrected instead and the
// angles recovered from them.
func (s *SatelliteRecord) deepPeriodics(tsince, em, xinc, omgadf, xnode, xll float64) (emOut, xincOut, omgadfOut, xnodeOut, xllOut float64) {
	d := s.deep

	sinis := math.Sin(xinc)
	cosis := math.Cos(xinc)

	// Solar periodics.
	zm := d.zmos + zns*tsince
	zf := zm + 2.0*zes*math.Sin(zm)
	sinzf := math.Sin(zf)
	f2 := 0.5*sinzf*sinzf - 0.25
	f3 := -0.5 * sinzf * math.Cos(zf)
	ses := d.se2*f2 + d.se3*f3
	sis := d.si2*f2 + d.si3*f3
	sls := d.sl2*f2 + d.sl3*f3 + d.sl4*sinzf
	sghs := d.sgh2*f2 + d.sgh3*f3 + d.sgh4*sinzf
	shs := d.sh2*f2 + d.sh3*f3

	// Lunar periodics.
	zm = d.zmol + znl*tsince
	zf = zm + 2.0*zel*math.Sin(zm)
	sinzf = math.Sin(zf)
	f2 = 0.5*sinzf*sinzf - 0.25
	f3 = -0.5 * sinzf * math.Cos(zf)
	sel := d.ee2*f2 + d.e3*f3
	sil := d.xi2*f2 + d.xi3*f3
	sll := d.xl2*f2 + d.xl3*f3 + d.xl4*sinzf
	sghl := d.xgh2*f2 + d.xgh3*f3 + d.xgh4*sinzf
	shl := d.xh2*f2 + d.xh3*f3

	pe := ses + sel
	pinc := sis + sil
	pl := sls + sll
	pgh := sghs + sghl
	ph := shs + shl

	xinc += pinc
	em += pe

	if s.incl >= 0.2 {
		ph /= s.sinio
		pgh -= s.cosio * ph
		omgadf += pgh
		xnode += ph
		xll += pl
		return em, xinc, omgadf, xnode, xll
	}

	// Lyddane modification.
	sinok := math.Sin(xnode)
	cosok := math.Cos(xnode)
	alfdp := sinis * sinok
	betdp := sinis * cosok
	dalf := ph*cosok + pinc*cosis*sinok
	dbet := -ph*sinok + pinc*cosis*cosok
	alfdp += dalf
	betdp += dbet
	xnode = mod2pi(xnode)
	xls := xll + omgadf + cosis*xnode
	xls += pl + pgh - pinc*xnode*sinis
	xnoh := xnode
	xnode = math.Atan2(alfdp, betdp)

	// Keep the recovered node on the same branch as before.
	if math.Abs(xnoh-xnode) > math.Pi {
		if xnode < xnoh {
			xnode += twoPi
		} else {
			xnode -= twoPi
		}
	}

	xll += pl
	omgadf = xls - xll - math.Cos(xinc)*xnode
	return em, xinc, omgadf, xnode, xll
}

func (s *SatelliteRecord) propagateDeepSpace(tsince float64) (StateVector, error) {
	xmdf := s.meanAnom + s.xmdot*tsince
	tsq := tsince * tsince
	templ := s.t2cof * tsq

	omgadf := s.argp + s.omgdot*tsince
	xnoddf := s.raan + s.xnodot*tsince
	xnode := xnoddf + s.xnodcf*tsq
	tempa := 1.0 - s.c1*tsince
	tempe := s.bstar * s.c4 * tsince

	xll, omgadf, xnode, em, xinc, xn := s.deepSecular(tsince, xmdf, omgadf, xnode)
	// The resonant branches rebuild the mean longitude from the
	// integrator state, so the t-squared drag advance must go on after
	// the secular update or it is lost.
	xll += s.xnodp * templ

	a := math.Pow(s.grav.XKE/xn, 2.0/3.0) * tempa * tempa
	em -= tempe
	if em <= -0.001 {
		return StateVector{}, &DecayedError{Minutes: tsince, Reason: "drag drove eccentricity below zero"}
	}
	em = clampEcc(em)

	em, xinc, omgadf, xnode, xll = s.deepPeriodics(tsince, em, xinc, omgadf, xnode, xll)
	if em <= -0.001 {
		return StateVector{}, &DecayedError{Minutes: tsince, Reason: "lunar-solar periodics drove eccentricity below zero"}
	}
	em = clampEcc(em)

	if rp := a * (1.0 - em); rp < 1.0 {
		return StateVector{}, &DecayedError{Minutes: tsince, Radius: rp}
	}

	xl := xll + omgadf + xnode
	return s.finishState(tsince, a, em, xl, omgadf, xnode, xinc)
}

// epochSiderealTime returns the Greenwich mean sidereal time at the
// element epoch and the epoch's offset in days from 1950 Jan 0.0 UTC.
func epochSiderealTime(year int, day float64) (thgr, ds50 float64) {
	dayFloor := math.Floor(day)
	jd := julianDateOfYear(float64(year)) + dayFloor
	ds50 = jd - 2433281.5 + (day - dayFloor)
	thgr = mod2pi(6.3003880987*ds50 + 1.72944494)
	return thgr, ds50
}

// julianDateOfYear returns the Julian date of Jan 0.0 of the given year.
func julianDateOfYear(year float64) float64 {
	year--
	a := math.Floor(year / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*year) + math.Floor(30.6001*14) + 1720994.5 + b
}

func mod2pi(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	return x
}
