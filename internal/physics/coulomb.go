package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Coulomb is a system of n point charges in Dim dimensions interacting
// through the inverse-square electrostatic force.
//
// State layout: [r_0 .. r_{n-1}, v_0 .. v_{n-1}], each r_i and v_i being
// Dim consecutive values.
type Coulomb struct {
	Charges   []float64
	Masses    []float64
	Dim       int
	K         float64
	Softening float64
}

type Option func(*Coulomb)

// WithSoftening adds eps² to every squared separation. Zero (the default)
// leaves coincident particles singular.
func WithSoftening(eps float64) Option {
	return func(c *Coulomb) { c.Softening = eps }
}

// NewCoulomb validates the parameter set and returns the system. Charges and
// masses are copied.
func NewCoulomb(charges, masses []float64, dim int, k float64, opts ...Option) (*Coulomb, error) {
	if len(charges) == 0 {
		return nil, fmt.Errorf("%w: at least one particle is required", dynamo.ErrParameterBounds)
	}
	if len(charges) != len(masses) {
		return nil, fmt.Errorf("%w: %d charges but %d masses", dynamo.ErrDimensionMismatch, len(charges), len(masses))
	}
	if dim < 1 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", dynamo.ErrParameterBounds, dim)
	}
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("%w: coulomb constant must be finite", dynamo.ErrParameterBounds)
	}
	for i, q := range charges {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, fmt.Errorf("%w: charge %d is not finite", dynamo.ErrParameterBounds, i)
		}
	}
	for i, m := range masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: mass %d must be positive and finite, got %g", dynamo.ErrParameterBounds, i, m)
		}
	}

	c := &Coulomb{
		Charges: append([]float64(nil), charges...),
		Masses:  append([]float64(nil), masses...),
		Dim:     dim,
		K:       k,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Softening < 0 || math.IsNaN(c.Softening) {
		return nil, fmt.Errorf("%w: softening must be non-negative", dynamo.ErrParameterBounds)
	}
	return c, nil
}

func (c *Coulomb) NumParticles() int { return len(c.Charges) }
func (c *Coulomb) StateDim() int     { return 2 * len(c.Charges) * c.Dim }

func (c *Coulomb) position(x dynamo.State, i int) []float64 {
	return x[i*c.Dim : (i+1)*c.Dim]
}

func (c *Coulomb) velocity(x dynamo.State, i int) []float64 {
	off := len(c.Charges) * c.Dim
	return x[off+i*c.Dim : off+(i+1)*c.Dim]
}

// Derivative is the time derivative of a state split into its two halves.
// Position holds dr/dt (the velocities), Velocity holds dv/dt.
type Derivative struct {
	Position []float64
	Velocity []float64
}

// Flatten packs the derivative into the state layout.
func (d Derivative) Flatten() dynamo.State {
	out := make(dynamo.State, 0, len(d.Position)+len(d.Velocity))
	out = append(out, d.Position...)
	return append(out, d.Velocity...)
}

// Derive implements dynamo.System. Coincident particles produce non-finite
// accelerations unless softening is set.
func (c *Coulomb) Derive(x dynamo.State, _ float64) dynamo.State {
	return c.derivative(x).Flatten()
}

// Evaluate returns the derivative of x together with a *SingularityError
// when two particles share a position. The derivative is returned either
// way so callers can inspect the non-finite entries.
func (c *Coulomb) Evaluate(x dynamo.State, _ float64) (Derivative, error) {
	if len(x) != c.StateDim() {
		return Derivative{}, fmt.Errorf("%w: state has %d values, want %d", dynamo.ErrDimensionMismatch, len(x), c.StateDim())
	}
	d := c.derivative(x)
	if !dynamo.State(d.Position).IsValid() || !dynamo.State(d.Velocity).IsValid() {
		if err := c.Check(x); err != nil {
			return d, err
		}
		return d, dynamo.ErrInvalidState
	}
	return d, nil
}

func (c *Coulomb) derivative(x dynamo.State) Derivative {
	n := len(c.Charges)
	nd := n * c.Dim

	d := Derivative{
		Position: make([]float64, nd),
		Velocity: make([]float64, nd),
	}
	copy(d.Position, x[nd:2*nd])

	eps2 := c.Softening * c.Softening
	rij := make([]float64, c.Dim)

	for i := 0; i < n; i++ {
		ri := c.position(x, i)
		ai := d.Velocity[i*c.Dim : (i+1)*c.Dim]

		for j := i + 1; j < n; j++ {
			floats.SubTo(rij, ri, c.position(x, j))
			r2 := floats.Dot(rij, rij) + eps2
			r3 := r2 * math.Sqrt(r2)

			// force on i from j along r_i - r_j; positive product repels
			f := c.K * c.Charges[i] * c.Charges[j] / r3

			floats.AddScaled(ai, f/c.Masses[i], rij)
			floats.AddScaled(d.Velocity[j*c.Dim:(j+1)*c.Dim], -f/c.Masses[j], rij)
		}
	}

	return d
}

// SingularityError reports a pair of particles at zero separation.
type SingularityError struct {
	I, J int
}

func (e *SingularityError) Error() string {
	return fmt.Sprintf("%v: particles %d and %d coincide", dynamo.ErrSingular, e.I, e.J)
}

func (e *SingularityError) Is(target error) bool {
	return target == dynamo.ErrSingular
}

// Check implements dynamo.Checker.
func (c *Coulomb) Check(x dynamo.State) error {
	if len(x) != c.StateDim() {
		return fmt.Errorf("%w: state has %d values, want %d", dynamo.ErrDimensionMismatch, len(x), c.StateDim())
	}
	if !x.IsValid() {
		return dynamo.ErrInvalidState
	}
	if c.Softening > 0 {
		return nil
	}
	n := len(c.Charges)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if floats.Equal(c.position(x, i), c.position(x, j)) {
				return &SingularityError{I: i, J: j}
			}
		}
	}
	return nil
}

// Pairwise is an owned n×n table of displacement vectors r_i - r_j. The
// diagonal is zero.
type Pairwise struct {
	N, Dim int
	data   []float64
}

func (p *Pairwise) At(i, j int) []float64 {
	off := (i*p.N + j) * p.Dim
	return p.data[off : off+p.Dim]
}

// Displacements fills every off-diagonal entry, then clears the diagonal in
// a second pass.
func (c *Coulomb) Displacements(x dynamo.State) *Pairwise {
	n := len(c.Charges)
	p := &Pairwise{N: n, Dim: c.Dim, data: make([]float64, n*n*c.Dim)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				floats.SubTo(p.At(i, j), c.position(x, i), c.position(x, j))
			}
		}
	}
	for i := 0; i < n; i++ {
		floats.Scale(0, p.At(i, i))
	}
	return p
}

// Energy is the kinetic energy plus the pairwise potential k q_i q_j / r.
func (c *Coulomb) Energy(x dynamo.State) float64 {
	n := len(c.Charges)
	eps2 := c.Softening * c.Softening
	rij := make([]float64, c.Dim)
	ke, pe := 0.0, 0.0

	for i := 0; i < n; i++ {
		vi := c.velocity(x, i)
		ke += 0.5 * c.Masses[i] * floats.Dot(vi, vi)

		for j := i + 1; j < n; j++ {
			floats.SubTo(rij, c.position(x, i), c.position(x, j))
			pe += c.K * c.Charges[i] * c.Charges[j] / math.Sqrt(floats.Dot(rij, rij)+eps2)
		}
	}

	return ke + pe
}

func (c *Coulomb) Momentum(x dynamo.State) []float64 {
	p := make([]float64, c.Dim)
	for i := range c.Charges {
		floats.AddScaled(p, c.Masses[i], c.velocity(x, i))
	}
	return p
}

func (c *Coulomb) CenterOfMass(x dynamo.State) []float64 {
	com := make([]float64, c.Dim)
	for i := range c.Charges {
		floats.AddScaled(com, c.Masses[i], c.position(x, i))
	}
	floats.Scale(1/c.TotalMass(), com)
	return com
}

func (c *Coulomb) TotalMass() float64 { return floats.Sum(c.Masses) }

// MinSeparation returns the closest pair in x. With a single particle it
// returns +Inf and (-1, -1).
func (c *Coulomb) MinSeparation(x dynamo.State) (dist float64, i, j int) {
	dist, i, j = math.Inf(1), -1, -1
	n := len(c.Charges)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			d := floats.Distance(c.position(x, a), c.position(x, b), 2)
			if d < dist {
				dist, i, j = d, a, b
			}
		}
	}
	return dist, i, j
}

// Frame reshapes a state into a (2n × Dim) matrix: rows 0..n-1 are
// positions, rows n..2n-1 velocities. The data is copied.
func (c *Coulomb) Frame(x dynamo.State) (*mat.Dense, error) {
	if len(x) != c.StateDim() {
		return nil, fmt.Errorf("%w: state has %d values, want %d", dynamo.ErrDimensionMismatch, len(x), c.StateDim())
	}
	return mat.NewDense(2*len(c.Charges), c.Dim, x.Clone()), nil
}
