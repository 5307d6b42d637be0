package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/san-kum/chargesim/internal/config"
	"github.com/san-kum/chargesim/internal/dynamo"
	"github.com/san-kum/chargesim/internal/experiment"
	"github.com/san-kum/chargesim/internal/sim"
)

// Sweep runs a base scenario once per value of a single parameter.
//
// Param is one of "coulomb", "softening", "charge[i]" or "mass[i]".
type Sweep struct {
	Base  *config.Config
	Param string
	Min   float64
	Max   float64
	Steps int
}

// SweepResult holds the outcome for one parameter value. Err is set when that
// run failed; the sweep carries on with the next value.
type SweepResult struct {
	Value         float64
	MinSeparation float64
	EnergyDrift   float64
	Steps         int
	Err           error
}

func apply(cfg *config.Config, param string, value float64) error {
	if param == "coulomb" {
		cfg.Coulomb = value
		return nil
	}
	if param == "softening" {
		cfg.Softening = value
		return nil
	}

	field, idx, ok := parseIndexed(param)
	if !ok || (field != "charge" && field != "mass") {
		return fmt.Errorf("%w: unknown sweep parameter %q", dynamo.ErrParameterBounds, param)
	}
	if idx >= len(cfg.Particles) {
		return fmt.Errorf("%w: no particle %d", dynamo.ErrParameterBounds, idx)
	}
	if field == "charge" {
		cfg.Particles[idx].Charge = value
	} else {
		cfg.Particles[idx].Mass = value
	}
	return nil
}

// parseIndexed splits "name[i]" into name and a non-negative i. Anything
// after the closing bracket is rejected.
func parseIndexed(param string) (string, int, bool) {
	name, rest, ok := strings.Cut(param, "[")
	if !ok {
		return "", 0, false
	}
	digits, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return "", 0, false
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return name, idx, true
}

// RunSweep executes the runs in order. It returns early only for a bad sweep
// definition or context cancellation.
func RunSweep(ctx context.Context, sweep *Sweep, registry *experiment.Registry, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sweep.Base == nil {
		return nil, fmt.Errorf("%w: sweep has no base scenario", dynamo.ErrParameterBounds)
	}
	values, err := sim.Linspace(sweep.Min, sweep.Max, sweep.Steps)
	if err != nil {
		return nil, err
	}
	if err := apply(sweep.Base.Clone(), sweep.Param, sweep.Min); err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(values))
	for i, v := range values {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
		}

		cfg := sweep.Base.Clone()
		cfg.Name = fmt.Sprintf("%s_%s_%d", sweep.Base.Name, sweep.Param, i)
		_ = apply(cfg, sweep.Param, v)

		logger.Debug("sweep step", "param", sweep.Param, "value", v, "index", i)
		results = append(results, runOne(ctx, cfg, registry, logger, v))
	}

	return results, nil
}

func runOne(ctx context.Context, cfg *config.Config, registry *experiment.Registry, logger *slog.Logger, value float64) SweepResult {
	out := SweepResult{Value: value}

	exp, err := experiment.New(cfg, registry, logger)
	if err != nil {
		out.Err = err
		return out
	}
	res, err := exp.Run(ctx)
	if res != nil {
		out.Steps = res.StepsTaken
		out.MinSeparation = res.Metrics["min_separation"]
		out.EnergyDrift = res.Metrics["energy_drift"]
	}
	if err != nil {
		out.Err = err
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			logger.Warn("sweep run failed", "value", value, "t", simErr.Time, "error", simErr.Wrapped)
		}
	}
	return out
}
