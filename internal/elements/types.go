package elements

import "time"

// OrbitalElements is a fully decoded two-line element set. Angles are in
// degrees and mean motion in revolutions per day, exactly as published;
// the propagator converts to radians and radians per minute when it
// initializes a satellite record.
type OrbitalElements struct {
	Name           string
	NORADID        int
	Classification byte
	IntlDesignator string

	EpochYear int     // four-digit year
	EpochDay  float64 // day of year, 1.0 = Jan 1 00:00 UTC

	MeanMotionDot  float64 // rev/day², first derivative over two
	MeanMotionDDot float64 // rev/day³, second derivative over six
	Bstar          float64 // drag term, 1/earth radii
	ElementSetNum  int

	Inclination  float64 // degrees
	RAAN         float64 // degrees
	Eccentricity float64
	ArgPerigee   float64 // degrees
	MeanAnomaly  float64 // degrees
	MeanMotion   float64 // rev/day
	RevNumber    int

	Line1 string
	Line2 string
}

// Epoch returns the element set epoch as UTC time.
// Two-digit years 57-99 map to the 1900s, 00-56 to the 2000s.
func (e OrbitalElements) Epoch() time.Time {
	t := time.Date(e.EpochYear, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((e.EpochDay - 1) * float64(24*time.Hour)))
}

// EpochRange is the minimum and maximum element epoch in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete catalog snapshot from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []OrbitalElements
}

// ByID returns the element set for the given catalog number, or false
// if the dataset does not contain it.
func (d *Dataset) ByID(noradID int) (OrbitalElements, bool) {
	for _, s := range d.Satellites {
		if s.NORADID == noradID {
			return s, true
		}
	}
	return OrbitalElements{}, false
}
