package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"neurodrive/internal/model"
)

func newInitializedStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "snapshots")),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "neurodrive.db")),
	}
	for kind, store := range stores {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("init %s: %v", kind, err)
		}
		store := store
		t.Cleanup(func() {
			_ = CloseIfSupported(store)
		})
	}
	return stores
}

func TestStoreSnapshotsAppendWithIncreasingIndex(t *testing.T) {
	ctx := context.Background()
	for kind, store := range newInitializedStores(t) {
		first, err := store.SaveSnapshot(ctx, "net", []byte("a"))
		if err != nil {
			t.Fatalf("%s: save first: %v", kind, err)
		}
		second, err := store.SaveSnapshot(ctx, "net", []byte("b"))
		if err != nil {
			t.Fatalf("%s: save second: %v", kind, err)
		}
		if first.ID != "net 0" || second.ID != "net 1" {
			t.Fatalf("%s: unexpected ids: %s, %s", kind, first.ID, second.ID)
		}

		all, err := store.ListSnapshots(ctx, "net")
		if err != nil {
			t.Fatalf("%s: list: %v", kind, err)
		}
		if len(all) != 2 || string(all[0].Payload) != "a" || string(all[1].Payload) != "b" {
			t.Fatalf("%s: previous snapshot was overwritten or misordered: %+v", kind, all)
		}
	}
}

func TestStoreLatestSnapshotByPrefix(t *testing.T) {
	ctx := context.Background()
	for kind, store := range newInitializedStores(t) {
		if _, ok, err := store.LatestSnapshot(ctx, "net"); err != nil || ok {
			t.Fatalf("%s: expected empty store, ok=%v err=%v", kind, ok, err)
		}

		for _, payload := range []string{"v0", "v1", "v2"} {
			if _, err := store.SaveSnapshot(ctx, "net-a", []byte(payload)); err != nil {
				t.Fatalf("%s: save: %v", kind, err)
			}
		}
		if _, err := store.SaveSnapshot(ctx, "other", []byte("x")); err != nil {
			t.Fatalf("%s: save other: %v", kind, err)
		}

		latest, ok, err := store.LatestSnapshot(ctx, "net")
		if err != nil {
			t.Fatalf("%s: latest: %v", kind, err)
		}
		if !ok {
			t.Fatalf("%s: expected latest snapshot", kind)
		}
		if latest.ID != "net-a 2" || string(latest.Payload) != "v2" {
			t.Fatalf("%s: unexpected latest: %s %q", kind, latest.ID, latest.Payload)
		}

		if _, ok, err := store.LatestSnapshot(ctx, "missing"); err != nil || ok {
			t.Fatalf("%s: expected not found, ok=%v err=%v", kind, ok, err)
		}
	}
}

func TestStoreRejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	for kind, store := range newInitializedStores(t) {
		for _, name := range []string{"", "  ", "a/b"} {
			if _, err := store.SaveSnapshot(ctx, name, []byte("x")); !errors.Is(err, ErrInvalidName) {
				t.Fatalf("%s: name %q: expected invalid name, got %v", kind, name, err)
			}
		}
	}
}

func TestStoreGenerationStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	input := []model.GenerationStats{
		{RunID: "run-1", Generation: 0, Population: 10, BestFitness: 4, MeanFitness: 2, MinFitness: 1},
		{RunID: "run-1", Generation: 1, Population: 10, BestFitness: 6, MeanFitness: 3, MinFitness: 1, ChampionSaved: true},
	}
	for kind, store := range newInitializedStores(t) {
		if err := store.SaveGenerationStats(ctx, "run-1", input); err != nil {
			t.Fatalf("%s: save stats: %v", kind, err)
		}
		output, ok, err := store.GetGenerationStats(ctx, "run-1")
		if err != nil {
			t.Fatalf("%s: get stats: %v", kind, err)
		}
		if !ok {
			t.Fatalf("%s: expected persisted stats", kind)
		}
		if len(output) != 2 || output[1].BestFitness != 6 || !output[1].ChampionSaved {
			t.Fatalf("%s: unexpected stats: %+v", kind, output)
		}
		if _, ok, err := store.GetGenerationStats(ctx, "run-2"); err != nil || ok {
			t.Fatalf("%s: expected missing run, ok=%v err=%v", kind, ok, err)
		}
	}
}

func TestParseSnapshotID(t *testing.T) {
	name, index, err := ParseSnapshotID("net-i5-o2-h1x10 12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if name != "net-i5-o2-h1x10" || index != 12 {
		t.Fatalf("unexpected parse: %s %d", name, index)
	}
	for _, bad := range []string{"net", "net x", " 3", "net -1"} {
		if _, _, err := ParseSnapshotID(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected invalid name, got %v", bad, err)
		}
	}
}
