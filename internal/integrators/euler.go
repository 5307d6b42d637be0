package integrators

import (
	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Euler is the explicit first-order method. It is mainly useful as a
// baseline when comparing the other steppers.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	next := make(dynamo.State, len(x))
	floats.AddScaledTo(next, x, dt, sys.Derive(x, t))
	return next
}
