package metrics

import (
	"math"

	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
	sys           dynamo.Hamiltonian
}

func NewEnergyDrift(sys dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		sys:  sys,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State, t float64) {
	energy := e.sys.Energy(x)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

// Value is the largest relative deviation from the first observed energy.
func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// vectorDrift tracks the largest Euclidean distance of a vector quantity
// from its first observed value.
type vectorDrift struct {
	name     string
	quantity func(dynamo.State) []float64
	initial  []float64
	maxDrift float64
}

func (v *vectorDrift) Name() string { return v.name }

func (v *vectorDrift) Observe(x dynamo.State, t float64) {
	q := v.quantity(x)
	if v.initial == nil {
		v.initial = q
		return
	}
	v.maxDrift = math.Max(v.maxDrift, floats.Distance(q, v.initial, 2))
}

func (v *vectorDrift) Value() float64 { return v.maxDrift }

func (v *vectorDrift) Reset() {
	v.initial = nil
	v.maxDrift = 0
}

type MomentumSystem interface {
	Momentum(x dynamo.State) []float64
}

type CenterOfMassSystem interface {
	MomentumSystem
	CenterOfMass(x dynamo.State) []float64
	TotalMass() float64
}

func NewMomentumDrift(sys MomentumSystem) dynamo.Metric {
	return &vectorDrift{name: "momentum_drift", quantity: sys.Momentum}
}

// NewCenterOfMassDrift measures how far the centre of mass strays from the
// straight line fixed by its first observed position and the total momentum.
func NewCenterOfMassDrift(sys CenterOfMassSystem) dynamo.Metric {
	return &comDrift{sys: sys}
}

type comDrift struct {
	sys      CenterOfMassSystem
	origin   []float64
	velocity []float64
	t0       float64
	expected []float64
	maxDrift float64
}

func (c *comDrift) Name() string { return "com_drift" }

func (c *comDrift) Observe(x dynamo.State, t float64) {
	com := c.sys.CenterOfMass(x)
	if c.origin == nil {
		c.origin = com
		c.velocity = c.sys.Momentum(x)
		floats.Scale(1/c.sys.TotalMass(), c.velocity)
		c.t0 = t
		c.expected = make([]float64, len(com))
		return
	}
	floats.AddScaledTo(c.expected, c.origin, t-c.t0, c.velocity)
	c.maxDrift = math.Max(c.maxDrift, floats.Distance(com, c.expected, 2))
}

func (c *comDrift) Value() float64 { return c.maxDrift }

func (c *comDrift) Reset() {
	c.origin = nil
	c.velocity = nil
	c.expected = nil
	c.maxDrift = 0
}
