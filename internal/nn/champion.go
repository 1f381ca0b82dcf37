package nn

import (
	"context"
	"fmt"

	"neurodrive/internal/model"
	"neurodrive/internal/storage"
)

// ChampionStore persists champion snapshots by name. storage.ChampionArchive
// is the production implementation.
type ChampionStore interface {
	SaveChampion(ctx context.Context, rec model.ChampionRecord) error
	LoadChampion(ctx context.Context, name string) (model.ChampionRecord, bool, error)
}

// Save writes the network as the newest snapshot for name when its fitness
// is at least the stored champion's, or when force is set. It reports
// whether a snapshot was written.
func (n *Network) Save(ctx context.Context, store ChampionStore, name string, force bool) (bool, error) {
	if store == nil {
		return false, fmt.Errorf("champion store is required")
	}
	if name == "" {
		name = n.Topology.Name()
	}
	if !force {
		current, ok, err := store.LoadChampion(ctx, name)
		if err != nil {
			return false, fmt.Errorf("load champion %s: %w", name, err)
		}
		if ok && n.Fitness < current.Fitness {
			return false, nil
		}
	}
	if err := store.SaveChampion(ctx, n.ToRecord(name)); err != nil {
		return false, fmt.Errorf("save champion %s: %w", name, err)
	}
	return true, nil
}

// LoadChampion returns the most recent champion stored under name. A missing
// champion is reported as storage.ErrNotFound.
func LoadChampion(ctx context.Context, store ChampionStore, name string) (*Network, error) {
	rec, ok, err := store.LoadChampion(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("champion %s: %w", name, storage.ErrNotFound)
	}
	return FromRecord(rec)
}

// StampGeneration wraps store so that every saved record carries generation.
func StampGeneration(store ChampionStore, generation int) ChampionStore {
	return generationStamp{ChampionStore: store, generation: generation}
}

type generationStamp struct {
	ChampionStore
	generation int
}

func (s generationStamp) SaveChampion(ctx context.Context, rec model.ChampionRecord) error {
	rec.Generation = s.generation
	return s.ChampionStore.SaveChampion(ctx, rec)
}
