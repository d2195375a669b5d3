package propagation

import "math"

// Mathematical constants shared across the propagation pipeline.
const (
	twoPi         = 2 * math.Pi
	deg2rad       = math.Pi / 180.0
	minutesPerDay = 1440.0
)

// GravityModel holds the geopotential and Earth-shape constants the
// propagator is tuned for. The catalog's mean elements are generated
// against WGS-72, so that is the default; the value is immutable and
// shared by every stage rather than living in package globals.
type GravityModel struct {
	RadiusKm float64 // equatorial radius (km)
	Mu       float64 // gravitational parameter (km³/s²)
	XKE      float64 // sqrt(mu) in (earth radii)^1.5 per minute
	J2       float64 // second zonal harmonic
	J3       float64 // third zonal harmonic
	J4       float64 // fourth zonal harmonic

	// Derived values, precomputed once.
	CK2    float64 // 0.5 * J2
	CK4    float64 // -0.375 * J4
	A3OVK2 float64 // -J3 / CK2
	S      float64 // drag shape parameter for perigee above 156 km (earth radii)
	QOMS2T float64 // (q0 - s0)^4 in (earth radii)^4
}

// WGS72 returns the WGS-72 gravity model used to generate the NORAD
// catalog. Propagating catalog elements against any other model degrades
// agreement with the published test vectors.
func WGS72() GravityModel {
	g := GravityModel{
		RadiusKm: 6378.135,
		Mu:       398600.8,
		J2:       0.001082616,
		J3:       -0.00000253881,
		J4:       -0.00000165597,
	}
	g.XKE = 60.0 / math.Sqrt(g.RadiusKm*g.RadiusKm*g.RadiusKm/g.Mu)
	g.CK2 = 0.5 * g.J2
	g.CK4 = -0.375 * g.J4
	g.A3OVK2 = -g.J3 / g.CK2
	g.S = 1.0 + 78.0/g.RadiusKm
	g.QOMS2T = math.Pow((120.0-78.0)/g.RadiusKm, 4.0)
	return g
}

// VelocityScale returns the factor converting earth-radii/minute to km/s.
func (g GravityModel) VelocityScale() float64 {
	return g.RadiusKm / 60.0
}
