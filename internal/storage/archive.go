package storage

import (
	"context"
	"fmt"
	"time"

	"neurodrive/internal/model"
)

// ChampionArchive stores champion records as snapshots of a Store.
type ChampionArchive struct {
	store Store
	now   func() time.Time
}

func NewChampionArchive(store Store) *ChampionArchive {
	return &ChampionArchive{store: store, now: time.Now}
}

func (a *ChampionArchive) SaveChampion(ctx context.Context, rec model.ChampionRecord) error {
	rec.VersionedRecord = currentVersion()
	if rec.SavedAt.IsZero() {
		rec.SavedAt = a.now().UTC()
	}
	payload, err := EncodeChampion(rec)
	if err != nil {
		return err
	}
	_, err = a.store.SaveSnapshot(ctx, rec.Name, payload)
	return err
}

// LoadChampion returns the newest snapshot written under exactly name.
func (a *ChampionArchive) LoadChampion(ctx context.Context, name string) (model.ChampionRecord, bool, error) {
	snap, ok, err := a.store.LatestSnapshot(ctx, name+" ")
	if err != nil || !ok {
		return model.ChampionRecord{}, ok, err
	}
	rec, err := DecodeChampion(snap.Payload)
	if err != nil {
		return model.ChampionRecord{}, false, fmt.Errorf("decode champion %s: %w", snap.ID, err)
	}
	return rec, true, nil
}

// History returns every champion snapshot stored under name, oldest first.
func (a *ChampionArchive) History(ctx context.Context, name string) ([]Snapshot, error) {
	return a.store.ListSnapshots(ctx, name+" ")
}
