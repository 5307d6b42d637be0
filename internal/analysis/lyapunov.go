package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/chargesim/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Run a reference trajectory and one displaced by d0 along every axis
// 2. After each step accumulate ln(|δx|/d0)
// 3. Rescale the displacement back to d0
// 4. λ ≈ Σ ln(|δx|/d0) / duration
func LyapunovExponent(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	d0 float64,
) (float64, error) {
	if len(x0) == 0 || !(dt > 0) || !(duration > 0) || !(d0 > 0) {
		return 0, fmt.Errorf("%w: need a non-empty state and positive dt, duration and perturbation", dynamo.ErrParameterBounds)
	}

	x := x0.Clone()
	xp := x0.Clone()
	shift := d0 / math.Sqrt(float64(len(x0)))
	for i := range xp {
		xp[i] += shift
	}

	t := 0.0
	sumLog := 0.0
	for step := 0; t < duration; step++ {
		x = integ.Step(sys, x, t, dt)
		xp = integ.Step(sys, xp, t, dt)
		t += dt

		if !x.IsValid() || !xp.IsValid() {
			return 0, &dynamo.SimulationError{Step: step, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}

		sep := xp.Sub(x).Norm()
		if sep == 0 {
			continue
		}
		sumLog += math.Log(sep / d0)

		scale := d0 / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}

	return sumLog / t, nil
}
