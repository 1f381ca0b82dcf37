// Package config loads neurodrive settings from embedded defaults overlaid
// with a user YAML or INI file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"neurodrive/internal/evo"
	"neurodrive/internal/nn"
	"neurodrive/internal/scape"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Track     TrackConfig     `yaml:"track"`
	Store     StoreConfig     `yaml:"store"`
	Run       RunConfig       `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// NetworkConfig sizes the evolved networks. The input width is the number
// of track sensors.
type NetworkConfig struct {
	Outputs          int    `yaml:"outputs" ini:"outputs"`
	HiddenLayers     int    `yaml:"hidden_layers" ini:"hidden_layers"`
	NeuronsPerHidden int    `yaml:"neurons_per_hidden" ini:"neurons_per_hidden"`
	ChampionName     string `yaml:"champion_name" ini:"champion_name"`
}

type EvolutionConfig struct {
	PopulationSize          int     `yaml:"population_size" ini:"population_size"`
	SubjectsToReset         int     `yaml:"subjects_to_reset" ini:"subjects_to_reset"`
	SubpopulationSize       int     `yaml:"subpopulation_size" ini:"subpopulation_size"`
	NumParents              int     `yaml:"num_parents" ini:"num_parents"`
	SwapChance              float64 `yaml:"swap_chance" ini:"swap_chance"`
	MutationChance          float64 `yaml:"mutation_chance" ini:"mutation_chance"`
	BiasInterpolationChance float64 `yaml:"bias_interpolation_chance" ini:"bias_interpolation_chance"`
	MinNoise                float64 `yaml:"min_noise" ini:"min_noise"`
	MaxNoise                float64 `yaml:"max_noise" ini:"max_noise"`
	Selection               string  `yaml:"selection" ini:"selection"`
	Seed                    int64   `yaml:"seed" ini:"seed"`
}

type TrackConfig struct {
	InnerRadius            float64   `yaml:"inner_radius" ini:"inner_radius"`
	OuterRadius            float64   `yaml:"outer_radius" ini:"outer_radius"`
	SensorAngles           []float64 `yaml:"sensor_angles" ini:"sensor_angles" delim:","`
	SensorAttenuation      float64   `yaml:"sensor_attenuation" ini:"sensor_attenuation"`
	SensorRange            float64   `yaml:"sensor_range" ini:"sensor_range"`
	AccelerationSpeed      float64   `yaml:"acceleration_speed" ini:"acceleration_speed"`
	AccelerationPercentage float64   `yaml:"acceleration_percentage" ini:"acceleration_percentage"`
	TurningAngle           float64   `yaml:"turning_angle" ini:"turning_angle"`
	TurningPercentage      float64   `yaml:"turning_percentage" ini:"turning_percentage"`
	TickSeconds            float64   `yaml:"tick_seconds" ini:"tick_seconds"`
	MinTimeAlive           float64   `yaml:"min_time_alive" ini:"min_time_alive"`
	MinFitness             float64   `yaml:"min_fitness" ini:"min_fitness"`
	FitnessCap             float64   `yaml:"fitness_cap" ini:"fitness_cap"`
	EnableFitnessCap       bool      `yaml:"enable_fitness_cap" ini:"enable_fitness_cap"`
	MaxSteps               int       `yaml:"max_steps" ini:"max_steps"`
	DistanceMultiplier     float64   `yaml:"distance_multiplier" ini:"distance_multiplier"`
	AvgSpeedMultiplier     float64   `yaml:"avg_speed_multiplier" ini:"avg_speed_multiplier"`
	SensorMultiplier       float64   `yaml:"sensor_multiplier" ini:"sensor_multiplier"`
}

type StoreConfig struct {
	// Kind is memory, file or sqlite.
	Kind string `yaml:"kind" ini:"kind"`
	// Path is the snapshot directory (file) or database file (sqlite).
	Path string `yaml:"path" ini:"path"`
}

type RunConfig struct {
	Generations  int    `yaml:"generations" ini:"generations"`
	ArtifactsDir string `yaml:"artifacts_dir" ini:"artifacts_dir"`
	LogLevel     string `yaml:"log_level" ini:"log_level"`
}

type TelemetryConfig struct {
	MetricsAddr string `yaml:"metrics_addr" ini:"metrics_addr"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load merges the file at path over the embedded defaults. Files ending in
// .ini are read as INI with one section per top-level key; anything else is
// YAML. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		if err := cfg.overlayINI(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlayINI(path string) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	sections := []struct {
		name   string
		target any
	}{
		{"network", &c.Network},
		{"evolution", &c.Evolution},
		{"track", &c.Track},
		{"store", &c.Store},
		{"run", &c.Run},
		{"telemetry", &c.Telemetry},
	}
	for _, s := range sections {
		if !file.HasSection(s.name) {
			continue
		}
		if err := file.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

const (
	defaultFileStorePath   = "neurodrive-data/champions"
	defaultSQLiteStorePath = "neurodrive-data/champions.db"
)

// StorePath is the configured store path, or the default for the store kind
// when none is set. The file backend needs a directory and sqlite a file.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Kind {
	case "sqlite":
		return defaultSQLiteStorePath
	case "", "file":
		return defaultFileStorePath
	}
	return ""
}

func (c *Config) Topology() nn.Topology {
	return nn.Topology{
		Inputs:           len(c.Track.SensorAngles),
		Outputs:          c.Network.Outputs,
		HiddenLayers:     c.Network.HiddenLayers,
		NeuronsPerHidden: c.Network.NeuronsPerHidden,
	}
}

func (c *Config) Evo() evo.Config {
	e := c.Evolution
	return evo.Config{
		PopulationSize:          e.PopulationSize,
		SubjectsToReset:         e.SubjectsToReset,
		SubpopulationSize:       e.SubpopulationSize,
		NumParents:              e.NumParents,
		SwapChance:              e.SwapChance,
		MutationChance:          e.MutationChance,
		BiasInterpolationChance: e.BiasInterpolationChance,
		MinNoise:                e.MinNoise,
		MaxNoise:                e.MaxNoise,
		Topology:                c.Topology(),
		Selection:               e.Selection,
		ChampionName:            c.Network.ChampionName,
		Seed:                    e.Seed,
	}
}

func (c *Config) TrackConfig() scape.TrackConfig {
	t := c.Track
	return scape.TrackConfig{
		InnerRadius:            t.InnerRadius,
		OuterRadius:            t.OuterRadius,
		SensorAngles:           append([]float64(nil), t.SensorAngles...),
		SensorAttenuation:      t.SensorAttenuation,
		SensorRange:            t.SensorRange,
		AccelerationSpeed:      t.AccelerationSpeed,
		AccelerationPercentage: t.AccelerationPercentage,
		TurningAngle:           t.TurningAngle,
		TurningPercentage:      t.TurningPercentage,
		TickSeconds:            t.TickSeconds,
		MinTimeAlive:           t.MinTimeAlive,
		MinFitness:             t.MinFitness,
		FitnessCap:             t.FitnessCap,
		EnableFitnessCap:       t.EnableFitnessCap,
		MaxSteps:               t.MaxSteps,
		DistanceMultiplier:     t.DistanceMultiplier,
		AvgSpeedMultiplier:     t.AvgSpeedMultiplier,
		SensorMultiplier:       t.SensorMultiplier,
	}
}

// Validate checks every section that has its own validation rules.
func (c *Config) Validate() error {
	if err := c.Evo().Validate(); err != nil {
		return err
	}
	if err := c.TrackConfig().Validate(); err != nil {
		return err
	}
	switch c.Store.Kind {
	case "", "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unsupported store kind: %s", c.Store.Kind)
	}
	if c.Run.Generations < 0 {
		return fmt.Errorf("generations must be >= 0, got %d", c.Run.Generations)
	}
	return nil
}
