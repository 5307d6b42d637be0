package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/chargesim/internal/config"
	"github.com/san-kum/chargesim/internal/dynamo"
	"github.com/san-kum/chargesim/internal/metrics"
	"github.com/san-kum/chargesim/internal/physics"
	"github.com/san-kum/chargesim/internal/sim"
)

// Experiment is one validated scenario ready to run.
type Experiment struct {
	cfg       *config.Config
	system    *physics.Coulomb
	simulator *sim.Simulator
	x0        dynamo.State
	times     []float64
	logger    *slog.Logger
}

// New validates cfg, builds the Coulomb system and integrator, and attaches
// the default conservation metrics. Nothing is integrated yet.
func New(cfg *config.Config, registry *Registry, logger *slog.Logger) (*Experiment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sys, err := physics.NewCoulomb(cfg.Charges(), cfg.Masses(), cfg.Dim, cfg.Coulomb,
		physics.WithSoftening(cfg.Softening))
	if err != nil {
		return nil, err
	}

	integ, err := registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	times, err := sim.Linspace(cfg.Time.Start, cfg.Time.End, cfg.Time.Samples)
	if err != nil {
		return nil, err
	}

	x0 := cfg.InitialState()
	if err := sys.Check(x0); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", cfg.Name, err)
	}

	s := sim.New(sys, integ, sim.WithLogger(logger))
	for _, m := range DefaultMetrics(sys, cfg.WarnSeparation, logger) {
		s.AddMetric(m)
	}

	return &Experiment{
		cfg:       cfg,
		system:    sys,
		simulator: s,
		x0:        x0,
		times:     times,
		logger:    logger,
	}, nil
}

func DefaultMetrics(sys *physics.Coulomb, warnSeparation float64, logger *slog.Logger) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergyDrift(sys),
		metrics.NewMomentumDrift(sys),
		metrics.NewCenterOfMassDrift(sys),
		metrics.NewMinSeparation(sys, warnSeparation, logger),
	}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	e.logger.Info("running scenario",
		"name", e.cfg.Name,
		"particles", e.system.NumParticles(),
		"dim", e.system.Dim,
		"integrator", e.cfg.Integrator,
		"samples", len(e.times))

	res, err := e.simulator.Integrate(ctx, e.x0, e.times, e.cfg.SolverConfig())
	if err != nil {
		return res, fmt.Errorf("scenario %q: %w", e.cfg.Name, err)
	}
	return res, nil
}

func (e *Experiment) System() *physics.Coulomb { return e.system }
func (e *Experiment) Config() *config.Config    { return e.cfg }

// GetSimulator returns the underlying simulator for adding observers.
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
