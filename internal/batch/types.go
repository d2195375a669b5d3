package batch

import "time"

// Keyframe holds the positions of all satellites at a single point in time.
type Keyframe struct {
	Timestamp  time.Time           `json:"timestamp"`
	Satellites []SatellitePosition `json:"satellites"`
}

// SatellitePosition holds a single satellite's Earth-fixed state at a
// keyframe time, km and km/s.
type SatellitePosition struct {
	NORADID      int        `json:"norad_id"`
	Name         string     `json:"name,omitempty"`
	PositionECEF [3]float64 `json:"position_ecef"`
	VelocityECEF [3]float64 `json:"velocity_ecef"`
}

// Config holds batch propagation configuration loaded from environment
// variables.
type Config struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Keyframe interval (default: 5s)
	Horizon time.Duration // Propagation horizon (default: 600s)
}
