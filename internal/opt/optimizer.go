package opt

import "errors"

// Optimizer minimises a bounded objective.
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: per-dimension bounds, len(lower) == len(upper) == dim
	// Returns: best parameters (within bounds) and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error)
}

// ErrBounds is returned when the bound slices do not describe dim dimensions.
var ErrBounds = errors.New("bounds do not match dimension")

func checkBounds(lower, upper []float64, dim int) error {
	if dim <= 0 || len(lower) != dim || len(upper) != dim {
		return ErrBounds
	}
	for i := range lower {
		if upper[i] < lower[i] {
			return ErrBounds
		}
	}
	return nil
}
