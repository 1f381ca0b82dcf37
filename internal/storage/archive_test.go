package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"neurodrive/internal/model"
)

func TestChampionArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	archive := NewChampionArchive(store)

	if _, ok, err := archive.LoadChampion(ctx, "net"); err != nil || ok {
		t.Fatalf("expected no champion, ok=%v err=%v", ok, err)
	}

	rec := model.ChampionRecord{
		Name:             "net",
		Inputs:           2,
		Outputs:          2,
		HiddenLayers:     1,
		NeuronsPerHidden: 1,
		Weights: []model.MatrixRecord{
			{Rows: 2, Cols: 1, Values: []float64{0.5, -0.5}},
			{Rows: 1, Cols: 2, Values: []float64{1, -1}},
		},
		Biases:  []float64{0.1, 0.2},
		Fitness: 12.5,
	}
	if err := archive.SaveChampion(ctx, rec); err != nil {
		t.Fatalf("save champion: %v", err)
	}
	rec.Fitness = 13
	if err := archive.SaveChampion(ctx, rec); err != nil {
		t.Fatalf("save champion: %v", err)
	}

	loaded, ok, err := archive.LoadChampion(ctx, "net")
	if err != nil {
		t.Fatalf("load champion: %v", err)
	}
	if !ok {
		t.Fatal("expected champion")
	}
	if loaded.Fitness != 13 || loaded.SchemaVersion != CurrentSchemaVersion || loaded.SavedAt.IsZero() {
		t.Fatalf("unexpected champion: %+v", loaded)
	}

	history, err := archive.History(ctx, "net")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(history))
	}
}

func TestChampionArchiveDoesNotMatchLongerNames(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	archive := NewChampionArchive(store)
	if err := archive.SaveChampion(ctx, model.ChampionRecord{Name: "net-h1x100", Fitness: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := archive.LoadChampion(ctx, "net-h1x10"); err != nil || ok {
		t.Fatalf("expected no champion for shorter name, ok=%v err=%v", ok, err)
	}
}

func TestDecodeChampionVersionMismatch(t *testing.T) {
	payload, err := json.Marshal(model.ChampionRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		Name:            "net",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeChampion(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
