package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"

	"neurodrive/internal/model"
	"neurodrive/internal/nn"
	"neurodrive/internal/stats"
)

var ErrInvalidFitness = errors.New("invalid fitness")

// Observer receives the fitness summary of every completed generation.
type Observer interface {
	ObserveGeneration(ctx context.Context, gen model.GenerationStats)
}

// EpisodeObserver is optionally implemented by observers that also want
// every reported episode fitness.
type EpisodeObserver interface {
	ObserveEpisode(ctx context.Context, generation int, fitness float64)
}

type Option func(*Manager)

func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) {
		if rng != nil {
			m.rng = rng
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChampionStore enables the non-forced champion save of each
// generation's best genome.
func WithChampionStore(store nn.ChampionStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// WithInitial seeds slot 0 of the first generation with a copy of net,
// typically a champion loaded from the store.
func WithInitial(net *nn.Network) Option {
	return func(m *Manager) {
		m.initial = net
	}
}

// WithRunID tags emitted generation stats.
func WithRunID(runID string) Option {
	return func(m *Manager) {
		m.runID = runID
	}
}

// Manager owns a fixed-size population and hands out one genome at a time.
// The environment evaluates Current and reports its fitness; every N
// reports the manager replaces the population with the next generation.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	rng       *rand.Rand
	selector  Selector
	logger    *slog.Logger
	store     nn.ChampionStore
	observers []Observer
	initial   *nn.Network
	runID     string

	population []*nn.Network
	cursor     int
	generation int
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Selection == "" {
		cfg.Selection = SelectionIndex
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	selector, err := SelectorByName(cfg.Selection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m := &Manager{
		cfg:      cfg,
		selector: selector,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(cfg.Seed))
	}

	m.population = make([]*nn.Network, 0, cfg.PopulationSize)
	start := 0
	if m.initial != nil {
		if err := m.initial.Validate(); err != nil {
			return nil, fmt.Errorf("initial genome: %w", err)
		}
		if m.initial.Topology != cfg.Topology {
			return nil, fmt.Errorf("%w: initial genome topology %s does not match %s",
				ErrInvalidConfig, m.initial.Topology.Name(), cfg.Topology.Name())
		}
		seed := m.initial.Clone()
		seed.Fitness = 0
		m.population = append(m.population, seed)
		start = 1
	}
	for i := start; i < cfg.PopulationSize; i++ {
		net, err := nn.Random(m.rng, cfg.Topology)
		if err != nil {
			return nil, err
		}
		m.population = append(m.population, net)
	}
	return m, nil
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Current returns the genome under evaluation.
func (m *Manager) Current() *nn.Network {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.population[m.cursor]
}

func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

func (m *Manager) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Population returns the current slot order. The slice is a copy; the
// genomes are shared.
func (m *Manager) Population() []*nn.Network {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*nn.Network(nil), m.population...)
}

// CheckFitness rejects values that cannot be ranked or persisted.
func CheckFitness(fitness float64) error {
	if math.IsNaN(fitness) || math.IsInf(fitness, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFitness, fitness)
	}
	return nil
}

// ReportFitness records fitness for the current genome, advances the cursor
// and returns the next genome to evaluate. The report that wraps the cursor
// builds the next generation before returning. NaN and infinite fitness are
// rejected with ErrInvalidFitness and leave the manager untouched.
func (m *Manager) ReportFitness(ctx context.Context, fitness float64) (*nn.Network, error) {
	if err := CheckFitness(fitness); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.population[m.cursor].Fitness = fitness
	for _, observer := range m.observers {
		if episodes, ok := observer.(EpisodeObserver); ok {
			episodes.ObserveEpisode(ctx, m.generation, fitness)
		}
	}

	next := (m.cursor + 1) % len(m.population)
	if next == 0 {
		if err := m.advanceGeneration(ctx); err != nil {
			return nil, err
		}
	}
	m.cursor = next
	return m.population[m.cursor], nil
}

func (m *Manager) advanceGeneration(ctx context.Context) error {
	ranked := append([]*nn.Network(nil), m.population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness < ranked[j].Fitness
	})

	fitnesses := make([]float64, len(ranked))
	for i, net := range ranked {
		fitnesses[i] = net.Fitness
	}
	summary := stats.Summarize(m.generation, fitnesses)
	summary.RunID = m.runID
	summary.ChampionSaved, summary.SaveFailed = m.saveChampion(ctx, ranked[len(ranked)-1])

	m.logger.Info("generation_complete",
		"generation", summary.Generation,
		"best_fitness", summary.BestFitness,
		"mean_fitness", summary.MeanFitness,
		"champion_saved", summary.ChampionSaved,
	)
	for _, observer := range m.observers {
		observer.ObserveGeneration(ctx, summary)
	}

	parents, err := SelectParents(m.rng, m.selector, ranked, m.cfg.NumParents, m.cfg.SubpopulationSize)
	if err != nil {
		return err
	}

	size := len(m.population)
	crossEnd := size - m.cfg.SubjectsToReset
	next := make([]*nn.Network, 0, size)
	next = append(next, parents...)

	params := m.cfg.crossoverParams()
	for len(next) < crossEnd {
		p1 := parents[m.rng.Intn(len(parents))]
		p2 := parents[m.rng.Intn(len(parents))]
		c1, c2, err := Crossover(m.rng, p1, p2, params)
		if err != nil {
			return fmt.Errorf("generation %d crossover: %w", m.generation, err)
		}
		next = append(next, c1)
		if len(next) < crossEnd {
			next = append(next, c2)
		}
	}
	for len(next) < size {
		net, err := nn.Random(m.rng, m.cfg.Topology)
		if err != nil {
			return err
		}
		next = append(next, net)
	}

	m.population = next
	m.generation++
	return nil
}

// saveChampion offers the generation's best genome to the store. Failures
// are logged and reported but never abort the generation.
func (m *Manager) saveChampion(ctx context.Context, best *nn.Network) (saved, failed bool) {
	if m.store == nil {
		return false, false
	}
	saved, err := best.Save(ctx, nn.StampGeneration(m.store, m.generation), m.cfg.ChampionKey(), false)
	if err != nil {
		m.logger.Warn("champion_save_failed",
			"generation", m.generation,
			"name", m.cfg.ChampionKey(),
			"error", err,
		)
		return false, true
	}
	if saved {
		m.logger.Info("champion_saved",
			"generation", m.generation,
			"name", m.cfg.ChampionKey(),
			"fitness", best.Fitness,
		)
	}
	return saved, false
}
