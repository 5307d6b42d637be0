package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/san-kum/chargesim/internal/analysis"
	"github.com/san-kum/chargesim/internal/automation"
	"github.com/san-kum/chargesim/internal/config"
	"github.com/san-kum/chargesim/internal/experiment"
	"github.com/san-kum/chargesim/internal/physics"
	"github.com/san-kum/chargesim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	verbose    bool
	preset     string
	integrator string
	dt         float64
	duration   float64
	samples    int
	softening  float64
	noSave     bool
	particle   int
	other      int
	axis       int
	perturb    float64
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chargesim",
		Short:         "electrostatic n-body simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".chargesim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "run a scenario file or preset",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset scenario")
	runCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "initial (adaptive) or fixed timestep")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultEnd, "end time")
	runCmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "number of sample times")
	runCmd.Flags().Float64Var(&softening, "softening", 0, "minimum-separation clamp (0 fails on contact)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARTICLES\tDIM\tEND\tSAMPLES")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%d\n", name, len(p.Particles), p.Dim, p.Time.End, p.Time.Samples)
			}
			return w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print a run's metadata and sampled positions",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "dominant frequency of one coordinate and closest approach",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&particle, "particle", 0, "particle index")
	analyzeCmd.Flags().IntVar(&other, "other", 1, "second particle for separation")
	analyzeCmd.Flags().IntVar(&axis, "axis", 0, "coordinate axis")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [scenario.yaml]",
		Short: "estimate the largest lyapunov exponent of a scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE:  lyapunov,
	}
	lyapunovCmd.Flags().StringVar(&preset, "preset", "", "use preset scenario")
	lyapunovCmd.Flags().Float64Var(&dt, "dt", 0.001, "fixed timestep")
	lyapunovCmd.Flags().Float64Var(&perturb, "perturbation", 1e-8, "initial separation")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scenario.yaml]",
		Short: "run a scenario once per value of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use preset scenario")
	sweepCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "coulomb", "coulomb, softening, charge[i] or mass[i]")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 2, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 4, "number of values")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.New(dataDir).Delete(args[0]); err != nil {
				return err
			}
			slog.Info("run deleted", "id", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, presetsCmd, listCmd, showCmd, analyzeCmd, lyapunovCmd, sweepCmd, exportJSONCmd, deleteCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadScenario resolves a scenario from a file argument or --preset, then
// applies any explicitly set flags on top.
func loadScenario(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case len(args) == 1:
		loaded, err := config.Load(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	default:
		return nil, errors.New("need a scenario file or --preset")
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Solver.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Time.End = duration
	}
	if flags.Changed("samples") {
		cfg.Time.Samples = samples
	}
	if flags.Changed("softening") {
		cfg.Softening = softening
	}
	return cfg, cfg.Validate()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(), slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("samples: %d  steps: %d  rejected: %d  evaluations: %d\n",
		len(result.States), result.StepsTaken, result.Rejected, result.Evaluations)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, result.Metrics[name])
	}

	if noSave {
		return nil
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	sys := exp.System()
	runID, err := st.Save(storage.RunMetadata{
		Name:       cfg.Name,
		Particles:  sys.NumParticles(),
		Dim:        sys.Dim,
		Coulomb:    sys.K,
		Charges:    sys.Charges,
		Masses:     sys.Masses,
		Integrator: cfg.Integrator,
	}, result)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tN\tDIM\tSAMPLES\tINTEG\tE-DRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%.2e\n",
			run.ID,
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Dim,
			run.Samples,
			run.Integrator,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s (n=%d, dim=%d, k=%g)\n", meta.Name, meta.Particles, meta.Dim, meta.Coulomb)
	fmt.Printf("charges: %v\nmasses: %v\n", meta.Charges, meta.Masses)
	fmt.Printf("integrator: %s  steps: %d  evaluations: %d\n\n", meta.Integrator, meta.Steps, meta.Evaluations)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "T")
	for i := 0; i < meta.Particles; i++ {
		fmt.Fprintf(w, "\tR%d", i)
	}
	fmt.Fprintln(w)
	for k, s := range states {
		fmt.Fprintf(w, "%.4g", times[k])
		for i := 0; i < meta.Particles; i++ {
			fmt.Fprintf(w, "\t%.4g", s[i*meta.Dim:(i+1)*meta.Dim])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if particle < 0 || particle >= meta.Particles || axis < 0 || axis >= meta.Dim {
		return fmt.Errorf("particle %d axis %d out of range for n=%d dim=%d", particle, axis, meta.Particles, meta.Dim)
	}

	fmt.Printf("run: %s (%d samples)\n", meta.ID, len(states))

	series, err := analysis.Component(states, particle*meta.Dim+axis)
	if err != nil {
		return err
	}
	if len(times) >= 4 {
		freq, err := analysis.DominantFrequency(series, times[1]-times[0])
		if err != nil {
			return err
		}
		fmt.Printf("particle %d axis %d dominant frequency: %.6g (period %.6g)\n", particle, axis, freq, 1/freq)
	} else {
		slog.Warn("too few samples for spectral analysis", "samples", len(times))
	}

	if meta.Particles > 1 {
		sep, err := analysis.Separation(states, meta.Particles, meta.Dim, particle, other)
		if err != nil {
			return err
		}
		closest := 0
		for k := range sep {
			if sep[k] < sep[closest] {
				closest = k
			}
		}
		fmt.Printf("closest sampled approach of %d and %d: %.6g at t=%.6g\n", particle, other, sep[closest], times[closest])
	}
	return nil
}

func lyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	sys, err := physics.NewCoulomb(cfg.Charges(), cfg.Masses(), cfg.Dim, cfg.Coulomb, physics.WithSoftening(cfg.Softening))
	if err != nil {
		return err
	}
	integ, err := experiment.NewRegistry().GetIntegrator("rk4")
	if err != nil {
		return err
	}

	span := cfg.Time.End - cfg.Time.Start
	slog.Info("estimating lyapunov exponent", "scenario", cfg.Name, "dt", dt, "span", span)
	lambda, err := analysis.LyapunovExponent(sys, integ, cfg.InitialState(), dt, span, perturb)
	if err != nil {
		return err
	}
	fmt.Printf("largest lyapunov exponent: %.6g\n", lambda)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunSweep(ctx, &automation.Sweep{
		Base:  cfg,
		Param: sweepParam,
		Min:   sweepMin,
		Max:   sweepMax,
		Steps: sweepSteps,
	}, experiment.NewRegistry(), slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEPS\tMIN-SEP\tE-DRIFT\tSTATUS\n", sweepParam)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%.6g\t%d\t%.6g\t%.2e\t%s\n", r.Value, r.Steps, r.MinSeparation, r.EnergyDrift, status)
	}
	return w.Flush()
}
