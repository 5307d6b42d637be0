// Package physics provides dynamical system models for simulation.
//
// [Coulomb] implements [dynamo.System] for n point charges in d dimensions
// interacting through the inverse-square electrostatic force:
//
//	F_ij = k q_i q_j (r_i - r_j) / |r_i - r_j|³
//
// Like charges repel, opposite charges attract, and each acceleration is
// the net force divided by the particle's mass.
//
// The model also implements [dynamo.Hamiltonian] for energy calculation and
// [dynamo.Checker] so a driver can reject coincident particles before
// integrating:
//
//	sys, err := physics.NewCoulomb(q, m, 2, 1.0)
//	if err != nil {
//	    return err
//	}
//	if err := sys.Check(x0); errors.Is(err, dynamo.ErrSingular) {
//	    // two particles share a position
//	}
package physics
