package config

import "sort"

func preset(name string, particles []ParticleConfig, end float64, samples int) *Config {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Particles = particles
	cfg.Time.End = end
	cfg.Time.Samples = samples
	return cfg
}

var Presets = map[string]*Config{
	// three unit charges converging near (15, 0) around t=8
	"three_charges": preset("three_charges", []ParticleConfig{
		{Charge: 1, Mass: 1, Position: []float64{-2, 0.5}, Velocity: []float64{2, 0}},
		{Charge: 1, Mass: 1, Position: []float64{30, 0}, Velocity: []float64{-2, 0}},
		{Charge: 1, Mass: 1, Position: []float64{16, 16}, Velocity: []float64{0, -2}},
	}, 20, 10),
	"binary": preset("binary", []ParticleConfig{
		{Charge: 1, Mass: 1, Position: []float64{-1, 0}, Velocity: []float64{0, 0.5}},
		{Charge: -1, Mass: 1, Position: []float64{1, 0}, Velocity: []float64{0, -0.5}},
	}, 30, 301),
	"repel": preset("repel", []ParticleConfig{
		{Charge: 1, Mass: 1, Position: []float64{-5, 0}, Velocity: []float64{1, 0}},
		{Charge: 1, Mass: 1, Position: []float64{5, 0}, Velocity: []float64{-1, 0}},
	}, 20, 101),
	"single": preset("single", []ParticleConfig{
		{Charge: 1, Mass: 1, Position: []float64{0, 0}, Velocity: []float64{1, 0.5}},
	}, 10, 11),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
