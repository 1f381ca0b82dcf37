package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"neurodrive/internal/config"
	"neurodrive/internal/storage"
)

// commonOptions are the flags every store-backed command accepts.
type commonOptions struct {
	configPath *string
	storeKind  *string
	storePath  *string
	artifacts  *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) commonOptions {
	return commonOptions{
		configPath: fs.String("config", "", "optional YAML or INI config file"),
		storeKind:  fs.String("store", storage.DefaultStoreKind(), "store backend: memory|file|sqlite"),
		storePath:  fs.String("store-path", "", "snapshot directory (file) or database path (sqlite)"),
		artifacts:  fs.String("artifacts", "", "run artifacts directory"),
		logLevel:   fs.String("log-level", "", "log level: debug|info|warn|error"),
	}
}

func setFlagNames(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// loadConfig reads the config file named by -config and applies every flag
// that was set explicitly on the command line.
func loadConfig(fs *flag.FlagSet, opts commonOptions, extra map[string]any) (*config.Config, error) {
	cfg, err := config.Load(*opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	values := map[string]any{
		"store":      *opts.storeKind,
		"store-path": *opts.storePath,
		"artifacts":  *opts.artifacts,
		"log-level":  *opts.logLevel,
	}
	for k, v := range extra {
		values[k] = v
	}
	if err := overrideFromFlags(cfg, setFlagNames(fs), values); err != nil {
		return nil, err
	}
	cfg.Store.Path = cfg.StorePath()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromFlags(cfg *config.Config, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "store":
			cfg.Store.Kind = v.(string)
		case "store-path":
			cfg.Store.Path = v.(string)
		case "artifacts":
			cfg.Run.ArtifactsDir = v.(string)
		case "log-level":
			cfg.Run.LogLevel = v.(string)
		case "generations":
			cfg.Run.Generations = v.(int)
		case "pop":
			cfg.Evolution.PopulationSize = v.(int)
		case "seed":
			cfg.Evolution.Seed = v.(int64)
		case "selection":
			cfg.Evolution.Selection = v.(string)
		case "name":
			cfg.Network.ChampionName = v.(string)
		case "metrics-addr":
			cfg.Telemetry.MetricsAddr = v.(string)
		case "max-steps":
			cfg.Track.MaxSteps = v.(int)
		case "fitness-cap":
			cfg.Track.FitnessCap = v.(float64)
			cfg.Track.EnableFitnessCap = true
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	return storage.NewStore(cfg.Store.Kind, cfg.Store.Path)
}

// newLogger writes human-readable text to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseSeeds(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	seeds := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", part, err)
		}
		seeds = append(seeds, seed)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one seed is required")
	}
	return seeds, nil
}
