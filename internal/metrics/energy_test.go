package metrics

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/san-kum/chargesim/internal/dynamo"
	"github.com/san-kum/chargesim/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(t *testing.T) *physics.Coulomb {
	t.Helper()
	sys, err := physics.NewCoulomb([]float64{1, -1}, []float64{1, 1}, 1, 1)
	require.NoError(t, err)
	return sys
}

func TestEnergyDrift(t *testing.T) {
	sys := pair(t)
	m := NewEnergyDrift(sys)

	// E = 0.5 + 0.5 - 1/2 = 0.5
	m.Observe(dynamo.State{0, 2, 1, -1}, 0)
	assert.Equal(t, 0.0, m.Value())

	// E = 0.5 + 0.5 - 1/1 = 0
	m.Observe(dynamo.State{0, 1, 1, -1}, 1)
	assert.InDelta(t, 1.0, m.Value(), 1e-15)

	// drift is a running maximum
	m.Observe(dynamo.State{0, 2, 1, -1}, 2)
	assert.InDelta(t, 1.0, m.Value(), 1e-15)

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestMomentumDrift(t *testing.T) {
	sys := pair(t)
	m := NewMomentumDrift(sys)
	assert.Equal(t, "momentum_drift", m.Name())

	m.Observe(dynamo.State{0, 2, 1, -1}, 0)
	m.Observe(dynamo.State{0, 2, 1, 0}, 1)
	assert.InDelta(t, 1.0, m.Value(), 1e-15)

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestCenterOfMassDrift(t *testing.T) {
	sys := pair(t)
	m := NewCenterOfMassDrift(sys)

	m.Observe(dynamo.State{-1, 1, 0, 0}, 0)
	m.Observe(dynamo.State{0, 1, 0, 0}, 1)
	assert.InDelta(t, 0.5, m.Value(), 1e-15)
}

func TestCenterOfMassDrift_UniformMotion(t *testing.T) {
	sys := pair(t)
	m := NewCenterOfMassDrift(sys)

	// com starts at 1 moving with unit speed
	m.Observe(dynamo.State{0, 2, 1, 1}, 0)
	m.Observe(dynamo.State{1, 3, 1, 1}, 1)
	assert.Zero(t, m.Value())

	m.Observe(dynamo.State{1, 3, 1, 1}, 2)
	assert.InDelta(t, 1, m.Value(), 1e-15)

	m.Reset()
	assert.Zero(t, m.Value())
	m.Observe(dynamo.State{5, 5, 0, 0}, 3)
	assert.Zero(t, m.Value())
}

func TestMinSeparation(t *testing.T) {
	sys := pair(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m := NewMinSeparation(sys, 0.5, logger)
	assert.True(t, math.IsInf(m.Value(), 1))

	m.Observe(dynamo.State{0, 2, 0, 0}, 0)
	assert.Equal(t, 2.0, m.Value())
	assert.Zero(t, m.Warnings())
	assert.Empty(t, buf.String())

	m.Observe(dynamo.State{0, 0.25, 0, 0}, 1)
	m.Observe(dynamo.State{0, 0.1, 0, 0}, 2)
	assert.Equal(t, 0.1, m.Value())
	assert.Equal(t, 1, m.Warnings())
	assert.Contains(t, buf.String(), "close approach")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("close approach")))

	m.Reset()
	assert.Zero(t, m.Warnings())
}

func TestMinSeparation_SingleParticle(t *testing.T) {
	sys, err := physics.NewCoulomb([]float64{1}, []float64{1}, 2, 1)
	require.NoError(t, err)

	m := NewMinSeparation(sys, 1, nil)
	m.Observe(dynamo.State{0, 0, 1, 1}, 0)
	assert.True(t, math.IsInf(m.Value(), 1))
	assert.Zero(t, m.Warnings())
}
