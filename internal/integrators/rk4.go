package integrators

import (
	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// RK4 is the classic fourth-order Runge-Kutta stepper. Stage buffers are
// reused between steps, so an RK4 value must not be shared across goroutines.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

// Step returns early once a stage is non-finite; the returned state then
// holds that stage's values so the caller sees an invalid result.
func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)
	half := 0.5 * dt

	copy(r.k1, sys.Derive(x, t))
	if !r.k1.IsValid() {
		return r.k1.Clone()
	}

	floats.AddScaledTo(r.scratch, x, half, r.k1)
	copy(r.k2, sys.Derive(r.scratch, t+half))
	if !r.k2.IsValid() {
		return r.k2.Clone()
	}

	floats.AddScaledTo(r.scratch, x, half, r.k2)
	copy(r.k3, sys.Derive(r.scratch, t+half))
	if !r.k3.IsValid() {
		return r.k3.Clone()
	}

	floats.AddScaledTo(r.scratch, x, dt, r.k3)
	copy(r.k4, sys.Derive(r.scratch, t+dt))
	if !r.k4.IsValid() {
		return r.k4.Clone()
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	return result
}
