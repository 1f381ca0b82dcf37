package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"neurodrive/internal/config"
	"neurodrive/internal/evo"
	"neurodrive/internal/model"
	"neurodrive/internal/platform"
	"neurodrive/internal/scape"
	"neurodrive/internal/stats"
	"neurodrive/internal/storage"
	"neurodrive/internal/telemetry"
)

const exportsDir = "exports"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "drive":
		return runDrive(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "snapshots":
		return runSnapshots(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "config":
		return runConfig(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	generations := fs.Int("generations", 0, "generations to evolve")
	population := fs.Int("pop", 0, "population size")
	seed := fs.Int64("seed", 0, "rng seed")
	selection := fs.String("selection", evo.SelectionIndex, "parent selection: index|fitness")
	name := fs.String("name", "", "champion name (defaults to the topology name)")
	resume := fs.Bool("resume", false, "seed the population with the stored champion")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while training")
	maxSteps := fs.Int("max-steps", 0, "episode step limit")
	fitnessCap := fs.Float64("fitness-cap", 0, "end episodes at this fitness and save the driver")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, opts, map[string]any{
		"generations":  *generations,
		"pop":          *population,
		"seed":         *seed,
		"selection":    *selection,
		"name":         *name,
		"metrics-addr": *metricsAddr,
		"max-steps":    *maxSteps,
		"fitness-cap":  *fitnessCap,
	})
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg.Run.LogLevel)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}
	archive := storage.NewChampionArchive(store)

	track, err := scape.NewTrack(cfg.TrackConfig())
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	if cfg.Telemetry.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.Telemetry.MetricsAddr, metrics.Handler(), logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	evoCfg := cfg.Evo()
	session, err := platform.NewSession(ctx, platform.SessionConfig{
		RunID:       *runID,
		Evolution:   evoCfg,
		Environment: track,
		Champions:   archive,
		Stats:       store,
		Observers:   []evo.Observer{metrics},
		Logger:      logger,
		Resume:      *resume,
	})
	if err != nil {
		return err
	}

	summary, err := session.Run(ctx, cfg.Run.Generations)
	if err != nil {
		return err
	}

	var champion *model.ChampionRecord
	if rec, ok, err := archive.LoadChampion(ctx, evoCfg.ChampionKey()); err != nil {
		return err
	} else if ok {
		champion = &rec
	}
	runCfg := platform.RunConfigFor(session.RunID(), track.Name(), evoCfg, cfg.Run.Generations, cfg.Store.Kind)
	runDir, err := platform.WriteRun(cfg.Run.ArtifactsDir, runCfg, summary, champion, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d episodes=%s final_best_fitness=%.6f resumed=%t cap_saves=%d duration=%s artifacts=%s\n",
		summary.RunID,
		summary.Generations,
		humanize.Comma(int64(summary.Episodes)),
		summary.FinalBest,
		summary.Resumed,
		summary.CapSaves,
		summary.Duration.Round(time.Millisecond),
		filepath.Clean(runDir),
	)
	return nil
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics_server_failed", "error", err)
		}
	}()
	logger.Info("metrics_serving", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runDrive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drive", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	name := fs.String("name", "", "champion name (defaults to the topology name)")
	maxSteps := fs.Int("max-steps", 0, "episode step limit")
	jsonOut := fs.Bool("json", false, "emit episode result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, opts, map[string]any{
		"name":      *name,
		"max-steps": *maxSteps,
	})
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}
	track, err := scape.NewTrack(cfg.TrackConfig())
	if err != nil {
		return err
	}

	key := cfg.Evo().ChampionKey()
	champion, res, err := platform.Drive(ctx, track, storage.NewChampionArchive(store), key)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("champion=%s stored_fitness=%.6f fitness=%.6f steps=%s distance=%.3f avg_speed=%.3f end=%s\n",
		key,
		champion.Fitness,
		res.Fitness,
		humanize.Comma(int64(res.Steps)),
		res.Distance,
		res.AvgSpeed,
		res.End,
	)
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	name := fs.String("name", "", "champion name (defaults to the topology name)")
	jsonOut := fs.Bool("json", false, "emit the champion record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, opts, map[string]any{"name": *name})
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	key := cfg.Evo().ChampionKey()
	archive := storage.NewChampionArchive(store)
	rec, ok, err := archive.LoadChampion(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("champion %s: %w", key, storage.ErrNotFound)
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	history, err := archive.History(ctx, key)
	if err != nil {
		return err
	}
	fmt.Printf("champion=%s fitness=%.6f generation=%d topology=%d-%d-%dx%d saved=%s snapshots=%d\n",
		rec.Name,
		rec.Fitness,
		rec.Generation,
		rec.Inputs,
		rec.Outputs,
		rec.HiddenLayers,
		rec.NeuronsPerHidden,
		humanize.Time(rec.SavedAt),
		len(history),
	)
	return nil
}

func runSnapshots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	prefix := fs.String("prefix", "", "only list snapshots whose id starts with prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, opts, nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	snaps, err := store.ListSnapshots(ctx, *prefix)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}
	for _, snap := range snaps {
		fmt.Printf("id=%q name=%s index=%d size=%s created=%s\n",
			snap.ID,
			snap.Name,
			snap.Index,
			humanize.Bytes(uint64(len(snap.Payload))),
			snap.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	csvOut := fs.Bool("csv", false, "emit diagnostics as CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}
	if *jsonOut && *csvOut {
		return errors.New("use either --json or --csv, not both")
	}

	cfg, err := loadConfig(fs, opts, nil)
	if err != nil {
		return err
	}
	if *latest {
		id, err := latestRunID(cfg.Run.ArtifactsDir)
		if err != nil {
			return err
		}
		*runID = id
	}

	generations, ok, err := stats.ReadGenerations(cfg.Run.ArtifactsDir, *runID)
	if err != nil {
		return err
	}
	if !ok {
		generations, err = storedGenerations(ctx, cfg, *runID)
		if err != nil {
			return err
		}
	}
	if len(generations) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *limit > 0 && len(generations) > *limit {
		generations = generations[len(generations)-*limit:]
	}

	switch {
	case *jsonOut:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(generations)
	case *csvOut:
		return stats.WriteGenerationCSV(os.Stdout, generations)
	}
	for _, g := range generations {
		fmt.Printf("generation=%d population=%d best=%.6f mean=%.6f std=%.6f min=%.6f champion_saved=%t save_failed=%t\n",
			g.Generation,
			g.Population,
			g.BestFitness,
			g.MeanFitness,
			g.StdFitness,
			g.MinFitness,
			g.ChampionSaved,
			g.SaveFailed,
		)
	}
	return nil
}

func storedGenerations(ctx context.Context, cfg *config.Config, runID string) ([]model.GenerationStats, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	generations, ok, err := store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}
	return generations, nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	seedList := fs.String("seeds", "1,2,3", "comma-separated rng seeds, one run each")
	generations := fs.Int("generations", 0, "generations per run")
	population := fs.Int("pop", 0, "population size")
	selection := fs.String("selection", evo.SelectionIndex, "parent selection: index|fitness")
	workers := fs.Int("workers", 2, "concurrent runs")
	maxSteps := fs.Int("max-steps", 0, "episode step limit")
	outDir := fs.String("out", "", "benchmark summary directory (defaults to <artifacts>/benchmark)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	seeds, err := parseSeeds(*seedList)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(fs, opts, map[string]any{
		"generations": *generations,
		"pop":         *population,
		"selection":   *selection,
		"max-steps":   *maxSteps,
	})
	if err != nil {
		return err
	}
	if cfg.Run.Generations <= 0 {
		return errors.New("benchmark requires generations > 0")
	}
	logger, err := newLogger(os.Stderr, cfg.Run.LogLevel)
	if err != nil {
		return err
	}

	trackCfg := cfg.TrackConfig()
	evoCfg := cfg.Evo()
	result, err := platform.Benchmark(ctx, platform.BenchmarkRequest{
		Evolution: evoCfg,
		NewEnvironment: func() (scape.Environment, error) {
			return scape.NewTrack(trackCfg)
		},
		Seeds:       seeds,
		Generations: cfg.Run.Generations,
		Workers:     *workers,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for i, summary := range result.Runs {
		runEvo := evoCfg
		runEvo.Seed = seeds[i]
		runCfg := platform.RunConfigFor(summary.RunID, result.Summary.Environment, runEvo, cfg.Run.Generations, "")
		if _, err := platform.WriteRun(cfg.Run.ArtifactsDir, runCfg, summary, nil, now); err != nil {
			return err
		}
	}
	dir := *outDir
	if dir == "" {
		dir = filepath.Join(cfg.Run.ArtifactsDir, "benchmark")
	}
	if err := stats.WriteBenchmarkSummary(dir, result.Summary); err != nil {
		return err
	}
	graphPath, err := stats.WriteFitnessGraph(dir, result.Graph)
	if err != nil {
		return err
	}

	s := result.Summary
	fmt.Printf("benchmark environment=%s runs=%d generations=%d pop=%d best_mean=%.6f best_std=%.6f best_max=%.6f best_min=%.6f summary=%s graph=%s\n",
		s.Environment,
		s.Runs,
		s.Generations,
		s.PopulationSize,
		s.BestMean,
		s.BestStd,
		s.BestMax,
		s.BestMin,
		filepath.Join(dir, "benchmark_summary.json"),
		graphPath,
	)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	cfg, err := loadConfig(fs, opts, nil)
	if err != nil {
		return err
	}

	entries, err := stats.ListRunIndex(cfg.Run.ArtifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s environment=%s seed=%d pop=%d gens=%d selection=%s final_best_fitness=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Environment,
			e.Seed,
			e.PopulationSize,
			e.Generations,
			e.Selection,
			e.FinalBestFitness,
		)
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}
	cfg, err := loadConfig(fs, opts, nil)
	if err != nil {
		return err
	}
	if *latest {
		id, err := latestRunID(cfg.Run.ArtifactsDir)
		if err != nil {
			return err
		}
		*runID = id
	}

	exportedDir, err := stats.ExportRunArtifacts(cfg.Run.ArtifactsDir, *runID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", *runID, filepath.Clean(exportedDir))
	return nil
}

func runConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	opts := addCommonFlags(fs)
	write := fs.String("write", "", "write the effective config as YAML to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, opts, nil)
	if err != nil {
		return err
	}
	if *write != "" {
		if err := cfg.Save(*write); err != nil {
			return err
		}
		fmt.Printf("wrote config to=%s\n", filepath.Clean(*write))
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func latestRunID(artifactsDir string) (string, error) {
	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: neurodrivectl <train|drive|champion|snapshots|diagnostics|benchmark|runs|export|config> [flags]", msg)
}
