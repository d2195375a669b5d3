package transform

import "math"

// WGS-84 ellipsoid parameters, used for ground geometry. The propagation
// theory's WGS-72 constants stay internal to it; observer positions and
// subsatellite points follow the modern ellipsoid.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer is a ground station location in both geodetic and ECEF form.
// The ECEF coordinates are precomputed once and reused across lookups.
type Observer struct {
	LatRad, LonRad, AltKm float64
	ECEFx, ECEFy, ECEFz   float64 // km
}

// LookAngles is the pointing solution from an observer to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
	RangeRateKms float64 // positive receding
}

// NewObserver creates an Observer from geodetic coordinates in degrees
// and kilometers above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltKm:  altKm,
		ECEFx:  (n + altKm) * cosLat * math.Cos(lon),
		ECEFy:  (n + altKm) * cosLat * math.Sin(lon),
		ECEFz:  (n*(1-wgs84E2) + altKm) * sinLat,
	}
}

// Geodetic is a geodetic position: degrees latitude and longitude,
// kilometers above the ellipsoid.
type Geodetic struct {
	LatDeg, LonDeg, AltKm float64
}

// ECEFToGeodetic converts Earth-fixed coordinates in km to geodetic
// coordinates by fixed-point iteration on the latitude. A handful of
// rounds suffices for any Earth orbit.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}

// LookAnglesTo computes azimuth, elevation, range, and range rate from
// the observer to a satellite state in the Earth-fixed frame, using the
// south-east-zenith topocentric rotation (Vallado section 4.4).
func (obs Observer) LookAnglesTo(sat StateECEF) LookAngles {
	rx := sat.X - obs.ECEFx
	ry := sat.Y - obs.ECEFy
	rz := sat.Z - obs.ECEFz

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	el := math.Asin(zenith / rangeMag)

	// North is the negative of the south axis, so azimuth is measured
	// clockwise from -south.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	// Range rate is the projection of the relative velocity onto the
	// line of sight; observer velocity is zero in the rotating frame.
	rangeRate := (rx*sat.VX + ry*sat.VY + rz*sat.VZ) / rangeMag

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rangeMag,
		RangeRateKms: rangeRate,
	}
}
