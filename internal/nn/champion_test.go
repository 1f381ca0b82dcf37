package nn

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"neurodrive/internal/storage"
)

func newArchive(t *testing.T) *storage.ChampionArchive {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return storage.NewChampionArchive(store)
}

func TestSaveLoadRoundTripPreservesBehavior(t *testing.T) {
	ctx := context.Background()
	archive := newArchive(t)
	net, err := Random(rand.New(rand.NewSource(11)), testTopology())
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	net.Fitness = 17.5

	saved, err := net.Save(ctx, archive, "", false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved {
		t.Fatal("expected first save to write")
	}

	loaded, err := LoadChampion(ctx, archive, testTopology().Name())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fitness != 17.5 {
		t.Fatalf("unexpected fitness: %f", loaded.Fitness)
	}
	input := []float64{0.1, 0.4, 0.9, 0.2, 0.6}
	want, err := net.Run(input)
	if err != nil {
		t.Fatalf("run saved: %v", err)
	}
	got, err := loaded.Run(input)
	if err != nil {
		t.Fatalf("run loaded: %v", err)
	}
	if got != want {
		t.Fatalf("loaded network diverges: got %+v want %+v", got, want)
	}
}

func TestSaveSkipsWorseChampionUnlessForced(t *testing.T) {
	ctx := context.Background()
	archive := newArchive(t)
	rng := rand.New(rand.NewSource(13))

	best, err := Random(rng, testTopology())
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	best.Fitness = 50
	if _, err := best.Save(ctx, archive, "car", false); err != nil {
		t.Fatalf("save best: %v", err)
	}

	worse, err := Random(rng, testTopology())
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	worse.Fitness = 10
	saved, err := worse.Save(ctx, archive, "car", false)
	if err != nil {
		t.Fatalf("save worse: %v", err)
	}
	if saved {
		t.Fatal("expected worse champion to be skipped")
	}
	loaded, err := LoadChampion(ctx, archive, "car")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fitness != 50 {
		t.Fatalf("expected previous champion, got fitness %f", loaded.Fitness)
	}

	saved, err = worse.Save(ctx, archive, "car", true)
	if err != nil {
		t.Fatalf("forced save: %v", err)
	}
	if !saved {
		t.Fatal("expected forced save to write")
	}
	loaded, err = LoadChampion(ctx, archive, "car")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fitness != 10 {
		t.Fatalf("expected forced champion, got fitness %f", loaded.Fitness)
	}
}

func TestLoadChampionNotFound(t *testing.T) {
	_, err := LoadChampion(context.Background(), newArchive(t), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStampGenerationRecordsGeneration(t *testing.T) {
	ctx := context.Background()
	archive := newArchive(t)
	net, err := Random(rand.New(rand.NewSource(17)), testTopology())
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	net.Fitness = 3
	if _, err := net.Save(ctx, StampGeneration(archive, 4), "car", false); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, ok, err := archive.LoadChampion(ctx, "car")
	if err != nil || !ok {
		t.Fatalf("load record: ok=%v err=%v", ok, err)
	}
	if rec.Generation != 4 {
		t.Fatalf("expected generation 4, got %d", rec.Generation)
	}
}
