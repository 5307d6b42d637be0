package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/chargesim/internal/dynamo"
)

// Simulator drives an integrator over a system and samples the state at
// requested times. A Simulator is not safe for concurrent use.
type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *slog.Logger
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func New(sys dynamo.System, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// counter wraps a system and counts derivative evaluations.
type counter struct {
	dynamo.System
	calls int
}

func (c *counter) Derive(x dynamo.State, t float64) dynamo.State {
	c.calls++
	return c.System.Derive(x, t)
}

// Integrate advances x0 from times[0] through every later entry of times
// and returns one state per entry. Between samples the integrator may take
// any number of internal steps; adaptive integrators get step-size control
// and every sample is hit exactly.
//
// Invalid input is rejected before the first derivative is taken. A
// non-finite state mid-run is fatal: the partial result is returned with a
// *dynamo.SimulationError wrapping dynamo.ErrInvalidState.
func (s *Simulator) Integrate(ctx context.Context, x0 dynamo.State, times []float64, cfg dynamo.Config) (*Result, error) {
	if err := s.validate(x0, times, cfg); err != nil {
		return nil, err
	}

	sys := &counter{System: s.sys}
	result := &Result{
		Times:   append([]float64(nil), times...),
		States:  make([]dynamo.State, 0, len(times)),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := times[0]
	dt := math.Min(cfg.Dt, cfg.MaxDt)
	adaptive, isAdaptive := s.integrator.(dynamo.AdaptiveIntegrator)

	fail := func(err error) (*Result, error) {
		s.finish(result, x0, x, sys.calls)
		s.logger.Debug("integration aborted", "t", t, "steps", result.StepsTaken, "error", err)
		return result, &dynamo.SimulationError{Step: result.StepsTaken, Time: t, State: x.Clone(), Wrapped: err}
	}

	s.record(result, x, t)

	for k := 1; k < len(times); k++ {
		target := times[k]

		for t < target {
			select {
			case <-ctx.Done():
				return fail(fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()))
			default:
			}

			if result.StepsTaken+result.Rejected >= cfg.MaxSteps {
				return fail(dynamo.ErrTooManySteps)
			}

			h := dt
			landing := false
			if t+h >= target {
				h = target - t
				landing = true
			}

			var next dynamo.State
			if isAdaptive {
				var dtNext float64
				var err error
				next, dtNext, err = adaptive.StepAdaptive(sys, x, t, h, cfg.Tolerance)
				switch {
				case errors.Is(err, dynamo.ErrStepRejected):
					result.Rejected++
					if dtNext < cfg.MinDt {
						return fail(fmt.Errorf("%w: dt=%g", dynamo.ErrStepTooSmall, dtNext))
					}
					dt = dtNext
					continue
				case err != nil:
					return fail(err)
				}
				// a step shortened to land on a sample says little about
				// the step size the dynamics allow
				if !landing {
					dt = math.Min(dtNext, cfg.MaxDt)
				}
			} else {
				next = s.integrator.Step(sys, x, t, h)
			}

			if !next.IsValid() {
				return fail(dynamo.ErrInvalidState)
			}

			x = next
			if landing {
				t = target
			} else {
				t += h
			}
			result.StepsTaken++
		}

		s.record(result, x, t)
	}

	s.finish(result, x0, x, sys.calls)

	s.logger.Debug("integration finished",
		"samples", len(result.States),
		"steps", result.StepsTaken,
		"rejected", result.Rejected,
		"evaluations", result.Evaluations)

	return result, nil
}

// finish fills the run summary from the last good state x. It also runs on
// failure so a partial result keeps what the metrics saw.
func (s *Simulator) finish(result *Result, x0, x dynamo.State, calls int) {
	result.Evaluations = calls
	if h, ok := s.sys.(dynamo.Hamiltonian); ok {
		e0, e1 := h.Energy(x0), h.Energy(x)
		if e0 != 0 {
			result.EnergyDrift = math.Abs(e1-e0) / math.Abs(e0)
		}
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) record(result *Result, x dynamo.State, t float64) {
	result.States = append(result.States, x.Clone())
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnSample(x, t)
	}
}

func (s *Simulator) validate(x0 dynamo.State, times []float64, cfg dynamo.Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if len(times) == 0 {
		return fmt.Errorf("%w: no sample times", dynamo.ErrParameterBounds)
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: sample time %d is not finite", dynamo.ErrParameterBounds, i)
		}
		if i > 0 && !(t > times[i-1]) {
			return fmt.Errorf("%w: sample times must be strictly ascending (t[%d]=%g, t[%d]=%g)",
				dynamo.ErrParameterBounds, i-1, times[i-1], i, t)
		}
	}
	if len(x0) != s.sys.StateDim() {
		return fmt.Errorf("%w: initial state has %d values, system expects %d",
			dynamo.ErrDimensionMismatch, len(x0), s.sys.StateDim())
	}
	if !x0.IsValid() {
		return fmt.Errorf("initial state: %w", dynamo.ErrInvalidState)
	}
	if c, ok := s.sys.(dynamo.Checker); ok {
		if err := c.Check(x0); err != nil {
			return fmt.Errorf("initial state: %w", err)
		}
	}
	return nil
}

func validateConfig(cfg dynamo.Config) error {
	if !(cfg.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrParameterBounds, cfg.Dt)
	}
	if !(cfg.MinDt > 0) || cfg.MaxDt < cfg.MinDt {
		return fmt.Errorf("%w: need 0 < min dt <= max dt, got %g and %g", dynamo.ErrParameterBounds, cfg.MinDt, cfg.MaxDt)
	}
	if cfg.Tolerance.Abs < 0 || cfg.Tolerance.Rel < 0 || cfg.Tolerance.Abs+cfg.Tolerance.Rel == 0 {
		return fmt.Errorf("%w: tolerances must be non-negative and not both zero", dynamo.ErrParameterBounds)
	}
	if cfg.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive", dynamo.ErrParameterBounds)
	}
	return nil
}
