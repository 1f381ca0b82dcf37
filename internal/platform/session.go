package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"neurodrive/internal/evo"
	"neurodrive/internal/model"
	"neurodrive/internal/nn"
	"neurodrive/internal/scape"
	"neurodrive/internal/stats"
	"neurodrive/internal/storage"
)

type SessionConfig struct {
	RunID       string
	Evolution   evo.Config
	Environment scape.Environment
	// Champions receives generation-boundary and fitness-cap saves. Nil
	// disables champion persistence.
	Champions nn.ChampionStore
	// Stats persists the collected generation summaries after each Run.
	Stats     storage.Store
	Observers []evo.Observer
	Logger    *slog.Logger
	// Resume seeds the first population slot with the stored champion when
	// one exists.
	Resume bool
}

type RunSummary struct {
	RunID            string                  `json:"run_id"`
	Generations      int                     `json:"generations"`
	Episodes         int                     `json:"episodes"`
	CapSaves         int                     `json:"cap_saves"`
	BestByGeneration []float64               `json:"best_by_generation"`
	FinalBest        float64                 `json:"final_best"`
	Stats            []model.GenerationStats `json:"stats"`
	Duration         time.Duration           `json:"duration"`
	Resumed          bool                    `json:"resumed"`
}

// Session drives one population against one environment.
type Session struct {
	runID     string
	cfg       SessionConfig
	manager   *evo.Manager
	collector *stats.Collector
	logger    *slog.Logger
	resumed   bool
	episodes  int
	capSaves  int
}

func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Environment == nil {
		return nil, fmt.Errorf("environment is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With("run_id", runID)

	s := &Session{
		runID:     runID,
		cfg:       cfg,
		collector: stats.NewCollector(),
		logger:    logger,
	}

	opts := []evo.Option{
		evo.WithLogger(logger),
		evo.WithRunID(runID),
		evo.WithObserver(s.collector),
	}
	for _, observer := range cfg.Observers {
		opts = append(opts, evo.WithObserver(observer))
	}
	if cfg.Champions != nil {
		opts = append(opts, evo.WithChampionStore(cfg.Champions))
		if cfg.Resume {
			seed, err := nn.LoadChampion(ctx, cfg.Champions, cfg.Evolution.ChampionKey())
			switch {
			case err == nil:
				opts = append(opts, evo.WithInitial(seed))
				s.resumed = true
				logger.Info("champion_resumed", "name", cfg.Evolution.ChampionKey(), "fitness", seed.Fitness)
			case errors.Is(err, storage.ErrNotFound):
				logger.Info("champion_missing", "name", cfg.Evolution.ChampionKey())
			default:
				return nil, fmt.Errorf("load champion: %w", err)
			}
		}
	}

	manager, err := evo.NewManager(cfg.Evolution, opts...)
	if err != nil {
		return nil, err
	}
	s.manager = manager
	return s, nil
}

func (s *Session) RunID() string {
	return s.runID
}

func (s *Session) Manager() *evo.Manager {
	return s.manager
}

func (s *Session) Collector() *stats.Collector {
	return s.collector
}

// Run evaluates episodes until the population has advanced generations
// more generations or ctx is done.
func (s *Session) Run(ctx context.Context, generations int) (RunSummary, error) {
	if generations < 0 {
		return RunSummary{}, fmt.Errorf("generations must be >= 0")
	}
	start := time.Now()
	target := s.manager.Generation() + generations
	current := s.manager.Current()

	for s.manager.Generation() < target {
		res, err := s.cfg.Environment.Episode(ctx, current)
		if err != nil {
			return s.summary(start), fmt.Errorf("episode %d: %w", s.episodes, err)
		}
		if err := evo.CheckFitness(res.Fitness); err != nil {
			return s.summary(start), fmt.Errorf("episode %d: %w", s.episodes, err)
		}
		s.episodes++
		if res.CapReached {
			s.saveAtCap(ctx, current, res.Fitness)
		}
		current, err = s.manager.ReportFitness(ctx, res.Fitness)
		if err != nil {
			return s.summary(start), err
		}
	}

	summary := s.summary(start)
	if s.cfg.Stats != nil {
		if err := s.cfg.Stats.SaveGenerationStats(ctx, s.runID, summary.Stats); err != nil {
			return summary, fmt.Errorf("save generation stats: %w", err)
		}
	}
	s.logger.Info("run_complete",
		"generations", summary.Generations,
		"episodes", summary.Episodes,
		"final_best", summary.FinalBest,
		"duration", summary.Duration,
	)
	return summary, nil
}

// saveAtCap offers a genome that hit the environment's fitness cap to the
// champion store without waiting for the generation boundary.
func (s *Session) saveAtCap(ctx context.Context, net *nn.Network, fitness float64) {
	if s.cfg.Champions == nil {
		return
	}
	net.Fitness = fitness
	generation := s.manager.Generation()
	saved, err := net.Save(ctx, nn.StampGeneration(s.cfg.Champions, generation), s.cfg.Evolution.ChampionKey(), false)
	if err != nil {
		s.logger.Warn("champion_save_failed", "reason", "fitness_cap", "error", err)
		return
	}
	if saved {
		s.capSaves++
		s.logger.Info("champion_saved", "reason", "fitness_cap", "generation", generation, "fitness", fitness)
	}
}

func (s *Session) summary(start time.Time) RunSummary {
	gens := s.collector.Generations()
	best := s.collector.BestByGeneration()
	out := RunSummary{
		RunID:            s.runID,
		Generations:      len(gens),
		Episodes:         s.episodes,
		CapSaves:         s.capSaves,
		BestByGeneration: best,
		Stats:            gens,
		Duration:         time.Since(start),
		Resumed:          s.resumed,
	}
	for i, b := range best {
		if i == 0 || b > out.FinalBest {
			out.FinalBest = b
		}
	}
	return out
}

// Drive runs one episode with the stored champion and reports its result.
func Drive(ctx context.Context, env scape.Environment, champions nn.ChampionStore, name string) (*nn.Network, scape.EpisodeResult, error) {
	net, err := nn.LoadChampion(ctx, champions, name)
	if err != nil {
		return nil, scape.EpisodeResult{}, err
	}
	res, err := env.Episode(ctx, net)
	if err != nil {
		return net, scape.EpisodeResult{}, err
	}
	return net, res, nil
}
