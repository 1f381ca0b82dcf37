package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neurodrive/internal/model"
)

// Metrics exports evolution progress as Prometheus collectors. It
// implements the population manager's observer hooks.
type Metrics struct {
	registry *prometheus.Registry

	episodes          prometheus.Counter
	episodeFitness    prometheus.Histogram
	generations       prometheus.Counter
	generation        prometheus.Gauge
	bestFitness       *prometheus.GaugeVec
	meanFitness       *prometheus.GaugeVec
	championSaves     prometheus.Counter
	championSaveFails prometheus.Counter
}

// NewMetrics registers the collectors on a private registry. The fitness
// gauges are labelled by run id.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neurodrive_episodes_total",
			Help: "Episodes reported to the population manager.",
		}),
		episodeFitness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neurodrive_episode_fitness",
			Help:    "Fitness reported per episode.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neurodrive_generations_total",
			Help: "Completed generation boundaries.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neurodrive_generation",
			Help: "Index of the last completed generation.",
		}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neurodrive_best_fitness",
			Help: "Best fitness of the last completed generation.",
		}, []string{"run_id"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neurodrive_mean_fitness",
			Help: "Mean fitness of the last completed generation.",
		}, []string{"run_id"}),
		championSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neurodrive_champion_saves_total",
			Help: "Champion snapshots written at generation boundaries.",
		}),
		championSaveFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neurodrive_champion_save_failures_total",
			Help: "Champion saves that failed at generation boundaries.",
		}),
	}
	m.registry.MustRegister(
		m.episodes,
		m.episodeFitness,
		m.generations,
		m.generation,
		m.bestFitness,
		m.meanFitness,
		m.championSaves,
		m.championSaveFails,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEpisode(_ context.Context, _ int, fitness float64) {
	m.episodes.Inc()
	m.episodeFitness.Observe(fitness)
}

func (m *Metrics) ObserveGeneration(_ context.Context, gen model.GenerationStats) {
	m.generations.Inc()
	m.generation.Set(float64(gen.Generation))
	labels := prometheus.Labels{"run_id": gen.RunID}
	m.bestFitness.With(labels).Set(gen.BestFitness)
	m.meanFitness.With(labels).Set(gen.MeanFitness)
	if gen.ChampionSaved {
		m.championSaves.Inc()
	}
	if gen.SaveFailed {
		m.championSaveFails.Inc()
	}
}
