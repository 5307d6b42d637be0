package sim

import (
	"fmt"

	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Result is the trajectory of one run: States[k] is the state at Times[k].
// It is not modified after Integrate returns.
type Result struct {
	Times       []float64
	States      []dynamo.State
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Rejected    int
	Evaluations int
}

// Frames reshapes every sample into a (len(state)/dim × dim) matrix. For a
// particle system with positions followed by velocities this gives 2n rows.
func (r *Result) Frames(dim int) ([]*mat.Dense, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: dim must be positive", dynamo.ErrParameterBounds)
	}
	frames := make([]*mat.Dense, len(r.States))
	for k, s := range r.States {
		if len(s) == 0 || len(s)%dim != 0 {
			return nil, fmt.Errorf("%w: state of length %d cannot be split into rows of %d", dynamo.ErrDimensionMismatch, len(s), dim)
		}
		frames[k] = mat.NewDense(len(s)/dim, dim, s.Clone())
	}
	return frames, nil
}

// Series returns component idx of every sample.
func (r *Result) Series(idx int) ([]float64, error) {
	out := make([]float64, len(r.States))
	for k, s := range r.States {
		if idx < 0 || idx >= len(s) {
			return nil, fmt.Errorf("%w: index %d out of range for state of length %d", dynamo.ErrDimensionMismatch, idx, len(s))
		}
		out[k] = s[idx]
	}
	return out, nil
}

// IsValid reports whether every sample is finite.
func (r *Result) IsValid() bool {
	for _, s := range r.States {
		if !s.IsValid() {
			return false
		}
	}
	return true
}

// Linspace returns n evenly spaced sample times from start to end inclusive.
func Linspace(start, end float64, n int) ([]float64, error) {
	switch {
	case n < 1:
		return nil, fmt.Errorf("%w: need at least one sample, got %d", dynamo.ErrParameterBounds, n)
	case n == 1:
		return []float64{start}, nil
	case !(end > start):
		return nil, fmt.Errorf("%w: end time %g must exceed start %g", dynamo.ErrParameterBounds, end, start)
	}
	return floats.Span(make([]float64, n), start, end), nil
}
