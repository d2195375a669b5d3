package propagation

import "fmt"

// InvalidElementsError reports an element set that cannot be initialized,
// such as a non-positive mean motion or an eccentricity outside [0, 1).
type InvalidElementsError struct {
	Field string
	Value float64
}

func (e *InvalidElementsError) Error() string {
	return fmt.Sprintf("propagation: invalid element %s = %g", e.Field, e.Value)
}

// DecayedError reports that the propagated orbit has dropped below the
// Earth's surface, or that drag has driven the mean elements outside the
// model's physical range.
type DecayedError struct {
	Minutes float64 // propagation offset from epoch
	Radius  float64 // orbital radius in earth radii at failure, 0 if not applicable
	Reason  string
}

func (e *DecayedError) Error() string {
	if e.Radius > 0 {
		return fmt.Sprintf("propagation: satellite decayed at tsince=%.3f min (radius %.4f earth radii)", e.Minutes, e.Radius)
	}
	return fmt.Sprintf("propagation: satellite decayed at tsince=%.3f min (%s)", e.Minutes, e.Reason)
}

// KeplerConvergenceError reports that the Kepler solver exhausted its
// iteration budget without the residual falling below tolerance.
type KeplerConvergenceError struct {
	Minutes  float64
	Residual float64
}

func (e *KeplerConvergenceError) Error() string {
	return fmt.Sprintf("propagation: kepler solver failed to converge at tsince=%.3f min (residual %g)", e.Minutes, e.Residual)
}
