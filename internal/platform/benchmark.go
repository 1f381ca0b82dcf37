package platform

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"neurodrive/internal/evo"
	"neurodrive/internal/model"
	"neurodrive/internal/scape"
	"neurodrive/internal/stats"
)

// BenchmarkRequest runs one independent session per seed. Sessions share
// nothing; each gets its own environment from NewEnvironment.
type BenchmarkRequest struct {
	Evolution      evo.Config
	NewEnvironment func() (scape.Environment, error)
	Seeds          []int64
	Generations    int
	Workers        int
	Logger         *slog.Logger
}

type BenchmarkResult struct {
	Runs    []RunSummary           `json:"runs"`
	Summary stats.BenchmarkSummary `json:"summary"`
	Graph   stats.FitnessGraph     `json:"graph"`
}

func Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkResult, error) {
	if req.NewEnvironment == nil {
		return BenchmarkResult{}, fmt.Errorf("environment factory is required")
	}
	if len(req.Seeds) == 0 {
		return BenchmarkResult{}, fmt.Errorf("at least one seed is required")
	}
	if req.Generations <= 0 {
		return BenchmarkResult{}, fmt.Errorf("generations must be > 0")
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runs := make([]RunSummary, len(req.Seeds))
	names := make([]string, len(req.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	if req.Workers > 0 {
		g.SetLimit(req.Workers)
	}
	for i, seed := range req.Seeds {
		i, seed := i, seed
		g.Go(func() error {
			env, err := req.NewEnvironment()
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			names[i] = env.Name()
			cfg := req.Evolution
			cfg.Seed = seed
			session, err := NewSession(gctx, SessionConfig{
				Evolution:   cfg,
				Environment: env,
				Logger:      logger.With("seed", seed),
			})
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			summary, err := session.Run(gctx, req.Generations)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			runs[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkResult{}, err
	}

	finals := make([]float64, len(runs))
	runIDs := make([]string, len(runs))
	series := make([][]model.GenerationStats, len(runs))
	for i, run := range runs {
		finals[i] = run.FinalBest
		runIDs[i] = run.RunID
		series[i] = run.Stats
	}
	spread := stats.Summarize(0, finals)
	return BenchmarkResult{
		Runs: runs,
		Summary: stats.BenchmarkSummary{
			Environment:    names[0],
			Runs:           len(runs),
			Generations:    req.Generations,
			PopulationSize: req.Evolution.PopulationSize,
			BestMean:       spread.MeanFitness,
			BestStd:        spread.StdFitness,
			BestMax:        spread.BestFitness,
			BestMin:        spread.MinFitness,
			Seeds:          append([]int64(nil), req.Seeds...),
			RunIDs:         runIDs,
		},
		Graph: stats.BuildFitnessGraph(names[0], series),
	}, nil
}
