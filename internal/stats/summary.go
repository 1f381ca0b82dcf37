package stats

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"neurodrive/internal/model"
)

// Summarize reduces one generation's fitness values. An empty slice yields
// a zero summary.
func Summarize(generation int, fitnesses []float64) model.GenerationStats {
	out := model.GenerationStats{
		Generation: generation,
		Population: len(fitnesses),
	}
	if len(fitnesses) == 0 {
		return out
	}
	out.BestFitness = floats.Max(fitnesses)
	out.MinFitness = floats.Min(fitnesses)
	if len(fitnesses) == 1 {
		out.MeanFitness = fitnesses[0]
		return out
	}
	out.MeanFitness, out.StdFitness = stat.MeanStdDev(fitnesses, nil)
	return out
}

// Collector records every generation summary it observes.
type Collector struct {
	mu          sync.Mutex
	generations []model.GenerationStats
	episodes    int
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) ObserveGeneration(_ context.Context, gen model.GenerationStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations = append(c.generations, gen)
}

func (c *Collector) ObserveEpisode(_ context.Context, _ int, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.episodes++
}

func (c *Collector) Generations() []model.GenerationStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.GenerationStats(nil), c.generations...)
}

func (c *Collector) Episodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.episodes
}

func (c *Collector) BestByGeneration() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	best := make([]float64, len(c.generations))
	for i, gen := range c.generations {
		best[i] = gen.BestFitness
	}
	return best
}
