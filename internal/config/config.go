package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/chargesim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDim        = 2
	DefaultCoulomb    = 1.0
	DefaultIntegrator = "rk45"
	DefaultDt         = 0.01
	DefaultEnd        = 20.0
	DefaultSamples    = 10
	DefaultRelTol     = 1e-7
	DefaultAbsTol     = 1e-9
	DefaultMinDt      = 1e-12
	DefaultMaxDt      = 1.0
	DefaultMaxSteps   = 5_000_000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid scenario")

type Config struct {
	Name           string           `yaml:"name"`
	Dim            int              `yaml:"dim"`
	Coulomb        float64          `yaml:"coulomb"`
	Softening      float64          `yaml:"softening,omitempty"`
	Particles      []ParticleConfig `yaml:"particles"`
	Time           TimeConfig       `yaml:"time"`
	Integrator     string           `yaml:"integrator"`
	Solver         SolverConfig     `yaml:"solver"`
	WarnSeparation float64          `yaml:"warn_separation,omitempty"`
}

type ParticleConfig struct {
	Charge   float64   `yaml:"charge"`
	Mass     float64   `yaml:"mass"`
	Position []float64 `yaml:"position,flow"`
	Velocity []float64 `yaml:"velocity,flow"`
}

type TimeConfig struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	Samples int     `yaml:"samples"`
}

type SolverConfig struct {
	Dt       float64 `yaml:"dt"`
	RelTol   float64 `yaml:"rtol"`
	AbsTol   float64 `yaml:"atol"`
	MinDt    float64 `yaml:"min_dt"`
	MaxDt    float64 `yaml:"max_dt"`
	MaxSteps int     `yaml:"max_steps"`
}

// DefaultConfig has no particles; callers add them or start from a preset.
func DefaultConfig() *Config {
	return &Config{
		Name:       "scenario",
		Dim:        DefaultDim,
		Coulomb:    DefaultCoulomb,
		Integrator: DefaultIntegrator,
		Time: TimeConfig{
			End:     DefaultEnd,
			Samples: DefaultSamples,
		},
		Solver: SolverConfig{
			Dt:       DefaultDt,
			RelTol:   DefaultRelTol,
			AbsTol:   DefaultAbsTol,
			MinDt:    DefaultMinDt,
			MaxDt:    DefaultMaxDt,
			MaxSteps: DefaultMaxSteps,
		},
	}
}

// Load reads a YAML scenario on top of DefaultConfig and validates it.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteAll(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}

// Validate checks the scenario before any integration starts.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Dim < 1 {
		return invalid("dim must be positive, got %d", c.Dim)
	}
	if !finite(c.Coulomb) {
		return invalid("coulomb constant must be finite")
	}
	if c.Softening < 0 || !finite(c.Softening) {
		return invalid("softening must be a non-negative number")
	}
	if len(c.Particles) == 0 {
		return invalid("no particles")
	}
	for i, p := range c.Particles {
		if len(p.Position) != c.Dim {
			return invalid("particle %d: position has %d components, dim is %d", i, len(p.Position), c.Dim)
		}
		if len(p.Velocity) != c.Dim {
			return invalid("particle %d: velocity has %d components, dim is %d", i, len(p.Velocity), c.Dim)
		}
		if !(p.Mass > 0) || !finite(p.Mass) {
			return invalid("particle %d: mass must be positive, got %g", i, p.Mass)
		}
		if !finite(p.Charge) || !finiteAll(p.Position) || !finiteAll(p.Velocity) {
			return invalid("particle %d: non-finite value", i)
		}
	}
	if c.Time.Samples < 1 {
		return invalid("time.samples must be at least 1")
	}
	if !finite(c.Time.Start) || !finite(c.Time.End) {
		return invalid("time span must be finite")
	}
	if c.Time.Samples > 1 && !(c.Time.End > c.Time.Start) {
		return invalid("time.end (%g) must exceed time.start (%g)", c.Time.End, c.Time.Start)
	}
	if !(c.Solver.Dt > 0) {
		return invalid("solver.dt must be positive")
	}
	if !(c.Solver.MinDt > 0) || c.Solver.MaxDt < c.Solver.MinDt {
		return invalid("solver needs 0 < min_dt <= max_dt")
	}
	if c.Solver.RelTol < 0 || c.Solver.AbsTol < 0 || c.Solver.RelTol+c.Solver.AbsTol == 0 {
		return invalid("solver tolerances must be non-negative and not both zero")
	}
	if c.Solver.MaxSteps < 1 {
		return invalid("solver.max_steps must be positive")
	}
	if c.WarnSeparation < 0 {
		return invalid("warn_separation must be non-negative")
	}
	return nil
}

func (c *Config) Charges() []float64 {
	q := make([]float64, len(c.Particles))
	for i, p := range c.Particles {
		q[i] = p.Charge
	}
	return q
}

func (c *Config) Masses() []float64 {
	m := make([]float64, len(c.Particles))
	for i, p := range c.Particles {
		m[i] = p.Mass
	}
	return m
}

// InitialState lays out all positions followed by all velocities.
func (c *Config) InitialState() dynamo.State {
	n := len(c.Particles)
	x := make(dynamo.State, 2*n*c.Dim)
	for i, p := range c.Particles {
		copy(x[i*c.Dim:], p.Position)
		copy(x[(n+i)*c.Dim:], p.Velocity)
	}
	return x
}

func (c *Config) SolverConfig() dynamo.Config {
	return dynamo.Config{
		Dt:        c.Solver.Dt,
		Tolerance: dynamo.Tolerance{Abs: c.Solver.AbsTol, Rel: c.Solver.RelTol},
		MinDt:     c.Solver.MinDt,
		MaxDt:     c.Solver.MaxDt,
		MaxSteps:  c.Solver.MaxSteps,
	}
}

// Clone returns a deep copy so presets can be modified safely.
func (c *Config) Clone() *Config {
	out := *c
	out.Particles = make([]ParticleConfig, len(c.Particles))
	for i, p := range c.Particles {
		out.Particles[i] = ParticleConfig{
			Charge:   p.Charge,
			Mass:     p.Mass,
			Position: append([]float64(nil), p.Position...),
			Velocity: append([]float64(nil), p.Velocity...),
		}
	}
	return &out
}
