package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is a first-order ODE dx/dt = f(x, t). Derive must return a new
// slice and leave x untouched.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Hamiltonian interface {
	Energy(x State) float64
}

// Checker is implemented by systems that can reject a state before any
// derivative is taken, e.g. two particles sharing a position.
type Checker interface {
	Check(x State) error
}

type Integrator interface {
	Step(sys System, x State, t float64, dt float64) State
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt float64, tol Tolerance) (State, float64, error)
}

// Tolerance is the mixed absolute/relative error bound used by adaptive
// steppers: |err_i| <= Abs + Rel*max(|x_i|, |x_new_i|).
type Tolerance struct {
	Abs float64
	Rel float64
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(x State, t float64)
}

type Config struct {
	Dt        float64
	Tolerance Tolerance
	MaxDt     float64
	MinDt     float64
	MaxSteps  int
}

func DefaultConfig() Config {
	return Config{
		Dt:        0.01,
		Tolerance: Tolerance{Abs: 1e-9, Rel: 1e-7},
		MaxDt:     1.0,
		MinDt:     1e-12,
		MaxSteps:  5_000_000,
	}
}
