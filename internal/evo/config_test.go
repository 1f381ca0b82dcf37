package evo

import (
	"errors"
	"math"
	"testing"

	"neurodrive/internal/nn"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"population too small", func(c *Config) { c.PopulationSize = 1 }},
		{"no parents", func(c *Config) { c.NumParents = 0 }},
		{"parents fill population", func(c *Config) { c.NumParents = c.PopulationSize }},
		{"negative reset", func(c *Config) { c.SubjectsToReset = -1 }},
		{"parents plus reset exceed population", func(c *Config) { c.SubjectsToReset = c.PopulationSize - c.NumParents + 1 }},
		{"empty tournament", func(c *Config) { c.SubpopulationSize = 0 }},
		{"swap chance above one", func(c *Config) { c.SwapChance = 1.5 }},
		{"negative mutation chance", func(c *Config) { c.MutationChance = -0.1 }},
		{"nan bias chance", func(c *Config) { c.BiasInterpolationChance = math.NaN() }},
		{"inverted noise range", func(c *Config) { c.MinNoise, c.MaxNoise = 1, -1 }},
		{"unknown selection", func(c *Config) { c.Selection = "roulette" }},
		{"bad topology", func(c *Config) { c.Topology = nn.Topology{Inputs: 1, Outputs: 1, HiddenLayers: 1, NeuronsPerHidden: 1} }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected invalid config, got %v", tc.name, err)
		}
	}
}

func TestConfigAllowsNoReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubjectsToReset = 0
	cfg.NumParents = cfg.PopulationSize - 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestChampionKey(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ChampionKey(); got != "net-i5-o2-h1x10" {
		t.Fatalf("unexpected default key: %s", got)
	}
	cfg.ChampionName = "car"
	if got := cfg.ChampionKey(); got != "car" {
		t.Fatalf("unexpected override key: %s", got)
	}
}
