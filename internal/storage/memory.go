package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"neurodrive/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	seq         int64
	snapshots   []Snapshot
	stats       map[string][]model.GenerationStats
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.seq = 0
	s.snapshots = nil
	s.stats = make(map[string][]model.GenerationStats)
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, name string, payload []byte) (Snapshot, error) {
	if err := validateName(name); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return Snapshot{}, errors.New("store is not initialized")
	}

	index := 0
	for _, snap := range s.snapshots {
		if snap.Name == name && snap.Index >= index {
			index = snap.Index + 1
		}
	}
	s.seq++
	snap := Snapshot{
		ID:        SnapshotID(name, index),
		Name:      name,
		Index:     index,
		Seq:       s.seq,
		CreatedAt: s.now().UTC(),
		Payload:   append([]byte(nil), payload...),
	}
	s.snapshots = append(s.snapshots, snap)
	return copySnapshot(snap), nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, prefix string) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest Snapshot
		found  bool
	)
	for _, snap := range s.snapshots {
		if !strings.HasPrefix(snap.ID, prefix) {
			continue
		}
		if !found || newer(snap, latest) {
			latest = snap
			found = true
		}
	}
	if !found {
		return Snapshot{}, false, nil
	}
	return copySnapshot(latest), true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, prefix string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if strings.HasPrefix(snap.ID, prefix) {
			out = append(out, copySnapshot(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	s.stats[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	return copied, true, nil
}

func copySnapshot(snap Snapshot) Snapshot {
	snap.Payload = append([]byte(nil), snap.Payload...)
	return snap
}
