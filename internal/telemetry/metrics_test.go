package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"neurodrive/internal/model"
)

func TestMetricsObserveGeneration(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics()

	m.ObserveEpisode(ctx, 0, 3)
	m.ObserveEpisode(ctx, 0, 5)
	m.ObserveGeneration(ctx, model.GenerationStats{RunID: "r1", Generation: 0, BestFitness: 5, MeanFitness: 4, ChampionSaved: true})
	m.ObserveGeneration(ctx, model.GenerationStats{RunID: "r1", Generation: 1, BestFitness: 7, MeanFitness: 6, SaveFailed: true})

	if got := testutil.ToFloat64(m.episodes); got != 2 {
		t.Fatalf("expected 2 episodes, got %f", got)
	}
	if got := testutil.ToFloat64(m.generations); got != 2 {
		t.Fatalf("expected 2 generations, got %f", got)
	}
	if got := testutil.ToFloat64(m.generation); got != 1 {
		t.Fatalf("expected generation gauge 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.bestFitness.WithLabelValues("r1")); got != 7 {
		t.Fatalf("expected best fitness 7, got %f", got)
	}
	if got := testutil.ToFloat64(m.championSaves); got != 1 {
		t.Fatalf("expected 1 champion save, got %f", got)
	}
	if got := testutil.ToFloat64(m.championSaveFails); got != 1 {
		t.Fatalf("expected 1 failed save, got %f", got)
	}
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveEpisode(context.Background(), 0, 1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "neurodrive_episodes_total 1") {
		t.Fatalf("expected episodes counter in output:\n%s", body)
	}
}
