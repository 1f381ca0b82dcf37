package evo

import (
	"errors"
	"fmt"

	"neurodrive/internal/nn"
)

var ErrInvalidConfig = errors.New("invalid evolution config")

const (
	// SelectionIndex picks the largest sampled index of the population
	// sorted ascending by fitness.
	SelectionIndex = "index"
	// SelectionFitness picks the highest fitness among the sampled genomes.
	SelectionFitness = "fitness"
)

// Config holds the population tunables. All probabilities are in [0, 1].
type Config struct {
	PopulationSize          int
	SubjectsToReset         int
	SubpopulationSize       int
	NumParents              int
	SwapChance              float64
	MutationChance          float64
	BiasInterpolationChance float64
	MinNoise                float64
	MaxNoise                float64
	Topology                nn.Topology
	Selection               string
	ChampionName            string
	Seed                    int64
}

// DefaultConfig mirrors the reference trainer settings.
func DefaultConfig() Config {
	return Config{
		PopulationSize:          100,
		SubjectsToReset:         10,
		SubpopulationSize:       30,
		NumParents:              25,
		SwapChance:              0.5,
		MutationChance:          0.3,
		BiasInterpolationChance: 0.25,
		MinNoise:                -0.5,
		MaxNoise:                0.5,
		Topology: nn.Topology{
			Inputs:           5,
			Outputs:          2,
			HiddenLayers:     1,
			NeuronsPerHidden: 10,
		},
		Selection: SelectionIndex,
		Seed:      1,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("%w: population size must be >= 2, got %d", ErrInvalidConfig, c.PopulationSize)
	}
	if c.NumParents < 1 {
		return fmt.Errorf("%w: num parents must be >= 1, got %d", ErrInvalidConfig, c.NumParents)
	}
	if c.NumParents >= c.PopulationSize {
		return fmt.Errorf("%w: num parents %d must be < population size %d", ErrInvalidConfig, c.NumParents, c.PopulationSize)
	}
	if c.SubjectsToReset < 0 {
		return fmt.Errorf("%w: subjects to reset must be >= 0, got %d", ErrInvalidConfig, c.SubjectsToReset)
	}
	if c.NumParents+c.SubjectsToReset > c.PopulationSize {
		return fmt.Errorf("%w: num parents %d + subjects to reset %d exceed population size %d",
			ErrInvalidConfig, c.NumParents, c.SubjectsToReset, c.PopulationSize)
	}
	if c.SubpopulationSize < 1 {
		return fmt.Errorf("%w: subpopulation size must be >= 1, got %d", ErrInvalidConfig, c.SubpopulationSize)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"swap chance", c.SwapChance},
		{"mutation chance", c.MutationChance},
		{"bias interpolation chance", c.BiasInterpolationChance},
	} {
		if !(p.value >= 0 && p.value <= 1) {
			return fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.MinNoise > c.MaxNoise {
		return fmt.Errorf("%w: min noise %v > max noise %v", ErrInvalidConfig, c.MinNoise, c.MaxNoise)
	}
	if _, err := SelectorByName(c.Selection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Topology.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ChampionKey is the store name champions of this configuration are saved
// under.
func (c Config) ChampionKey() string {
	if c.ChampionName != "" {
		return c.ChampionName
	}
	return c.Topology.Name()
}

func (c Config) crossoverParams() CrossoverParams {
	return CrossoverParams{
		SwapChance:              c.SwapChance,
		MutationChance:          c.MutationChance,
		BiasInterpolationChance: c.BiasInterpolationChance,
		MinNoise:                c.MinNoise,
		MaxNoise:                c.MaxNoise,
	}
}
