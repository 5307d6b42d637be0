// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types for numerical
// integration of ordinary differential equations (ODEs):
//
//   - [State]: flat vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator], [AdaptiveIntegrator]: numerical steppers
//   - [Metric], [Observer]: hooks fed once per trajectory sample
//
// # Errors
//
// Failures are reported with the sentinel errors in this package. A run
// that diverges mid-integration returns a [*SimulationError] that unwraps
// to the cause, so callers can use errors.Is:
//
//	res, err := s.Integrate(ctx, x0, times, cfg)
//	if errors.Is(err, dynamo.ErrInvalidState) {
//	    // restart with different initial conditions
//	}
package dynamo
