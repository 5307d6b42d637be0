package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chargesim/internal/dynamo"
	"github.com/san-kum/chargesim/internal/integrators"
	"github.com/san-kum/chargesim/internal/metrics"
	"github.com/san-kum/chargesim/internal/physics"
	"github.com/san-kum/chargesim/internal/sim"
)

type countingMetric struct {
	count int
	times []float64
}

func (m *countingMetric) Name() string { return "count" }
func (m *countingMetric) Observe(x dynamo.State, t float64) {
	m.count++
	m.times = append(m.times, t)
}
func (m *countingMetric) Value() float64 { return float64(m.count) }
func (m *countingMetric) Reset()         { m.count = 0; m.times = nil }

func mustCoulomb(q, m []float64, dim int) *physics.Coulomb {
	sys, err := physics.NewCoulomb(q, m, dim, 1.0)
	Expect(err).NotTo(HaveOccurred())
	return sys
}

func mustLinspace(start, end float64, n int) []float64 {
	times, err := sim.Linspace(start, end, n)
	Expect(err).NotTo(HaveOccurred())
	return times
}

var _ = Describe("Simulator", func() {
	var (
		ctx context.Context
		cfg dynamo.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = dynamo.DefaultConfig()
	})

	Describe("three like charges", func() {
		var (
			sys *physics.Coulomb
			x0  dynamo.State
		)

		BeforeEach(func() {
			sys = mustCoulomb([]float64{1, 1, 1}, []float64{1, 1, 1}, 2)
			x0 = dynamo.State{
				-2, 0.5, 30, 0, 16, 16,
				2, 0, -2, 0, 0, -2,
			}
		})

		It("produces a finite (10, 6, 2) trajectory", func() {
			times := mustLinspace(0, 20, 10)
			res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, times, cfg)
			Expect(err).NotTo(HaveOccurred())

			frames, err := res.Frames(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(10))
			for _, f := range frames {
				r, c := f.Dims()
				Expect(r).To(Equal(6))
				Expect(c).To(Equal(2))
			}
			Expect(res.IsValid()).To(BeTrue())
			Expect(res.Times).To(Equal(times))
			Expect(res.States[0]).To(Equal(x0))
		})

		It("evaluates the derivative between samples", func() {
			res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, mustLinspace(0, 20, 10), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(BeNumerically(">", 9))
			Expect(res.Evaluations).To(BeNumerically(">=", 7*res.StepsTaken))
		})

		It("conserves energy and momentum", func() {
			res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, mustLinspace(0, 20, 10), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.EnergyDrift).To(BeNumerically("<", 1e-4))

			p0 := sys.Momentum(x0)
			for _, x := range res.States {
				p := sys.Momentum(x)
				Expect(p[0]).To(BeNumerically("~", p0[0], 1e-6))
				Expect(p[1]).To(BeNumerically("~", p0[1], 1e-6))
			}
		})

		It("is deterministic", func() {
			times := mustLinspace(0, 5, 4)
			a, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, times, cfg)
			Expect(err).NotTo(HaveOccurred())
			b, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, times, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.States).To(Equal(b.States))
		})

		It("leaves the initial state untouched", func() {
			before := x0.Clone()
			_, err := sim.New(sys, integrators.NewRK4()).Integrate(ctx, x0, mustLinspace(0, 1, 3), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(x0).To(Equal(before))
		})
	})

	It("keeps the centre of mass of a symmetric pair fixed", func() {
		sys := mustCoulomb([]float64{1, -1}, []float64{1, 1}, 2)
		x0 := dynamo.State{-1, 0, 1, 0, 0, 0.5, 0, -0.5}

		res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, mustLinspace(0, 10, 25), cfg)
		Expect(err).NotTo(HaveOccurred())
		for _, x := range res.States {
			com := sys.CenterOfMass(x)
			Expect(com[0]).To(BeNumerically("~", 0, 1e-9))
			Expect(com[1]).To(BeNumerically("~", 0, 1e-9))
		}
	})

	It("moves a lone particle in a straight line", func() {
		sys := mustCoulomb([]float64{2}, []float64{3}, 2)
		x0 := dynamo.State{1, 2, 0.5, -1}

		times := mustLinspace(0, 10, 11)
		res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, times, cfg)
		Expect(err).NotTo(HaveOccurred())
		for k, x := range res.States {
			t := times[k]
			Expect(x[0]).To(BeNumerically("~", 1+0.5*t, 1e-12))
			Expect(x[1]).To(BeNumerically("~", 2-t, 1e-12))
			Expect(x[2]).To(Equal(0.5))
			Expect(x[3]).To(Equal(-1.0))
		}
	})

	It("lands on every sample time with a fixed-step integrator", func() {
		sys := mustCoulomb([]float64{1}, []float64{1}, 1)
		cfg.Dt = 0.3
		times := []float64{0, 0.5, 0.7, 2}
		metric := &countingMetric{}

		s := sim.New(sys, integrators.NewRK4())
		s.AddMetric(metric)
		res, err := s.Integrate(ctx, dynamo.State{0, 1}, times, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(metric.times).To(Equal(times))
		Expect(res.Metrics).To(HaveKeyWithValue("count", 4.0))
		Expect(res.States[3][0]).To(BeNumerically("~", 2, 1e-12))
	})

	It("returns only the initial state for a single sample", func() {
		sys := mustCoulomb([]float64{1, 1}, []float64{1, 1}, 1)
		res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, dynamo.State{0, 1, 0, 0}, []float64{3}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.States).To(HaveLen(1))
		Expect(res.Evaluations).To(Equal(0))
	})

	Describe("failures", func() {
		It("rejects coincident particles before integrating", func() {
			sys := mustCoulomb([]float64{1, 1}, []float64{1, 1}, 2)
			res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, dynamo.State{1, 1, 1, 1, 0, 0, 0, 0}, []float64{0, 1}, cfg)
			Expect(err).To(MatchError(dynamo.ErrSingular))
			Expect(res).To(BeNil())
		})

		It("fails fast when particles meet mid-run", func() {
			// neutral particles drift into each other at t=1
			sys := mustCoulomb([]float64{0, 0}, []float64{1, 1}, 1)
			cfg.Dt = 0.25

			res, err := sim.New(sys, integrators.NewEuler()).Integrate(ctx, dynamo.State{-1, 1, 1, -1}, []float64{0, 2}, cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidState))

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time).To(Equal(1.0))
			Expect(simErr.Step).To(Equal(4))
			Expect(simErr.State.IsValid()).To(BeTrue())
			Expect(res.States).To(HaveLen(1))
		})

		It("keeps metric values on a partial result", func() {
			sys := mustCoulomb([]float64{0, 0}, []float64{1, 1}, 1)
			cfg.Dt = 0.25

			s := sim.New(sys, integrators.NewEuler())
			s.AddMetric(metrics.NewMinSeparation(sys, 0, nil))
			s.AddMetric(&countingMetric{})

			res, err := s.Integrate(ctx, dynamo.State{-1, 1, 1, -1}, []float64{0, 2}, cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			Expect(res.Metrics).To(HaveKeyWithValue("min_separation", 2.0))
			Expect(res.Metrics).To(HaveKeyWithValue("count", 1.0))
			Expect(res.Evaluations).To(Equal(5))
			Expect(res.EnergyDrift).To(BeZero())
		})

		It("stops when the step budget runs out", func() {
			sys := mustCoulomb([]float64{1}, []float64{1}, 1)
			cfg.MaxSteps = 3
			_, err := sim.New(sys, integrators.NewRK4()).Integrate(ctx, dynamo.State{0, 1}, []float64{0, 1}, cfg)
			Expect(err).To(MatchError(dynamo.ErrTooManySteps))
		})

		It("honours cancellation", func() {
			sys := mustCoulomb([]float64{1}, []float64{1}, 1)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.New(sys, integrators.NewRK4()).Integrate(cctx, dynamo.State{0, 1}, []float64{0, 1}, cfg)
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			Expect(err).To(MatchError(context.Canceled))
		})

		DescribeTable("invalid input",
			func(x0 dynamo.State, times []float64, mutate func(*dynamo.Config), want error) {
				sys := mustCoulomb([]float64{1}, []float64{1}, 1)
				if mutate != nil {
					mutate(&cfg)
				}
				res, err := sim.New(sys, integrators.NewRK45()).Integrate(ctx, x0, times, cfg)
				Expect(err).To(MatchError(want))
				Expect(res).To(BeNil())
			},
			Entry("no times", dynamo.State{0, 0}, nil, nil, dynamo.ErrParameterBounds),
			Entry("descending times", dynamo.State{0, 0}, []float64{0, 2, 1}, nil, dynamo.ErrParameterBounds),
			Entry("repeated time", dynamo.State{0, 0}, []float64{0, 1, 1}, nil, dynamo.ErrParameterBounds),
			Entry("NaN time", dynamo.State{0, 0}, []float64{0, math.NaN()}, nil, dynamo.ErrParameterBounds),
			Entry("short state", dynamo.State{0}, []float64{0, 1}, nil, dynamo.ErrDimensionMismatch),
			Entry("infinite state", dynamo.State{math.Inf(1), 0}, []float64{0, 1}, nil, dynamo.ErrInvalidState),
			Entry("zero dt", dynamo.State{0, 0}, []float64{0, 1}, func(c *dynamo.Config) { c.Dt = 0 }, dynamo.ErrParameterBounds),
			Entry("zero tolerance", dynamo.State{0, 0}, []float64{0, 1}, func(c *dynamo.Config) { c.Tolerance = dynamo.Tolerance{} }, dynamo.ErrParameterBounds),
			Entry("min above max", dynamo.State{0, 0}, []float64{0, 1}, func(c *dynamo.Config) { c.MinDt = 2; c.MaxDt = 1 }, dynamo.ErrParameterBounds),
		)
	})
})

var _ = Describe("Linspace", func() {
	It("includes both ends", func() {
		Expect(sim.Linspace(0, 20, 5)).To(Equal([]float64{0, 5, 10, 15, 20}))
	})

	It("handles a single sample", func() {
		Expect(sim.Linspace(2, 2, 1)).To(Equal([]float64{2}))
	})

	It("rejects bad spans", func() {
		_, err := sim.Linspace(0, 1, 0)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		_, err = sim.Linspace(1, 0, 3)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})
})

var _ = Describe("Result", func() {
	res := &sim.Result{
		Times:  []float64{0, 1},
		States: []dynamo.State{{1, 2, 3, 4}, {5, 6, 7, 8}},
	}

	It("extracts a component series", func() {
		Expect(res.Series(2)).To(Equal([]float64{3, 7}))
		_, err := res.Series(4)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("reshapes samples into frames", func() {
		frames, err := res.Frames(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(frames[1].At(1, 0)).To(Equal(7.0))

		_, err = res.Frames(3)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})
