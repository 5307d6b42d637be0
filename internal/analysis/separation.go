package analysis

import (
	"fmt"

	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Separation returns |r_i - r_j| at every sample of a trajectory laid out as
// n positions of dim components followed by n velocities.
func Separation(states [][]float64, n, dim, i, j int) ([]float64, error) {
	if i < 0 || j < 0 || i >= n || j >= n {
		return nil, fmt.Errorf("%w: particle index out of range [0, %d)", dynamo.ErrParameterBounds, n)
	}
	out := make([]float64, len(states))
	for k, s := range states {
		if len(s) != 2*n*dim {
			return nil, fmt.Errorf("%w: sample %d has %d values, want %d", dynamo.ErrDimensionMismatch, k, len(s), 2*n*dim)
		}
		out[k] = floats.Distance(s[i*dim:(i+1)*dim], s[j*dim:(j+1)*dim], 2)
	}
	return out, nil
}

// Component returns state component idx of every sample.
func Component(states [][]float64, idx int) ([]float64, error) {
	out := make([]float64, len(states))
	for k, s := range states {
		if idx < 0 || idx >= len(s) {
			return nil, fmt.Errorf("%w: index %d out of range for sample %d", dynamo.ErrDimensionMismatch, idx, k)
		}
		out[k] = s[idx]
	}
	return out, nil
}
