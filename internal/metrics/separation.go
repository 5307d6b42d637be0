package metrics

import (
	"log/slog"
	"math"

	"github.com/san-kum/chargesim/internal/dynamo"
)

type SeparationSystem interface {
	MinSeparation(x dynamo.State) (dist float64, i, j int)
}

// MinSeparation records the closest approach between any two particles over
// the observed samples. Samples closer than the warning threshold are logged
// once per offending pair.
type MinSeparation struct {
	name      string
	sys       SeparationSystem
	threshold float64
	logger    *slog.Logger
	min       float64
	warned    map[[2]int]bool
}

func NewMinSeparation(sys SeparationSystem, threshold float64, logger *slog.Logger) *MinSeparation {
	if logger == nil {
		logger = slog.Default()
	}
	return &MinSeparation{
		name:      "min_separation",
		sys:       sys,
		threshold: threshold,
		logger:    logger,
		min:       math.Inf(1),
		warned:    make(map[[2]int]bool),
	}
}

func (m *MinSeparation) Name() string { return m.name }

func (m *MinSeparation) Observe(x dynamo.State, t float64) {
	d, i, j := m.sys.MinSeparation(x)
	if d < m.min {
		m.min = d
	}
	if i < 0 || d >= m.threshold {
		return
	}
	pair := [2]int{i, j}
	if !m.warned[pair] {
		m.warned[pair] = true
		m.logger.Warn("close approach", "t", t, "i", i, "j", j, "distance", d, "threshold", m.threshold)
	}
}

// Value is +Inf when fewer than two particles exist.
func (m *MinSeparation) Value() float64 { return m.min }

func (m *MinSeparation) Reset() {
	m.min = math.Inf(1)
	m.warned = make(map[[2]int]bool)
}

// Warnings is the number of distinct pairs that came closer than the
// threshold.
func (m *MinSeparation) Warnings() int { return len(m.warned) }
