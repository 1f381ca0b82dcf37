package platform

import (
	"time"

	"neurodrive/internal/evo"
	"neurodrive/internal/model"
	"neurodrive/internal/stats"
)

// RunConfigFor records the settings a run was started with.
func RunConfigFor(runID, environment string, cfg evo.Config, generations int, storeKind string) stats.RunConfig {
	return stats.RunConfig{
		RunID:                   runID,
		Environment:             environment,
		ChampionName:            cfg.ChampionKey(),
		Inputs:                  cfg.Topology.Inputs,
		Outputs:                 cfg.Topology.Outputs,
		HiddenLayers:            cfg.Topology.HiddenLayers,
		NeuronsPerHidden:        cfg.Topology.NeuronsPerHidden,
		PopulationSize:          cfg.PopulationSize,
		Generations:             generations,
		SubjectsToReset:         cfg.SubjectsToReset,
		SubpopulationSize:       cfg.SubpopulationSize,
		NumParents:              cfg.NumParents,
		SwapChance:              cfg.SwapChance,
		MutationChance:          cfg.MutationChance,
		BiasInterpolationChance: cfg.BiasInterpolationChance,
		MinNoise:                cfg.MinNoise,
		MaxNoise:                cfg.MaxNoise,
		Selection:               cfg.Selection,
		Seed:                    cfg.Seed,
		StoreKind:               storeKind,
	}
}

// WriteRun stores a finished run's artifacts under baseDir and adds it to
// the run index.
func WriteRun(baseDir string, cfg stats.RunConfig, summary RunSummary, champion *model.ChampionRecord, now time.Time) (string, error) {
	runDir, err := stats.WriteRunArtifacts(baseDir, stats.RunArtifacts{
		Config:           cfg,
		BestByGeneration: summary.BestByGeneration,
		Generations:      summary.Stats,
		FinalBestFitness: summary.FinalBest,
		Episodes:         summary.Episodes,
		Champion:         champion,
	})
	if err != nil {
		return "", err
	}
	if err := stats.AppendRunIndex(baseDir, stats.RunIndexEntry{
		RunID:            cfg.RunID,
		Environment:      cfg.Environment,
		PopulationSize:   cfg.PopulationSize,
		Generations:      summary.Generations,
		Seed:             cfg.Seed,
		Selection:        cfg.Selection,
		FinalBestFitness: summary.FinalBest,
		CreatedAtUTC:     stats.FormatCreatedAt(now),
	}); err != nil {
		return "", err
	}
	return runDir, nil
}
