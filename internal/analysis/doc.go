// Package analysis provides post-processing tools for sampled trajectories.
//
//   - [PowerSpectrum], [DominantFrequency]: spectral content of one state
//     component sampled at a fixed interval
//   - [Separation]: distance between two particles over a trajectory
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates sensitive dependence on
// initial conditions, which is typical of three or more interacting charges:
//
//	lambda, err := analysis.LyapunovExponent(sys, integ, x0, dt, duration, 1e-8)
//	if err == nil && lambda > 0 {
//	    // System is chaotic
//	}
package analysis
