package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"neurodrive/internal/model"
)

var (
	ErrNotFound    = errors.New("snapshot not found")
	ErrInvalidName = errors.New("invalid snapshot name")
)

// Snapshot is one immutable, indexed write under a logical name. Its ID is
// "<name> <index>"; indexes count up from 0 per name.
type Snapshot struct {
	ID        string
	Name      string
	Index     int
	Seq       int64
	CreatedAt time.Time
	Payload   []byte
}

// Store persists named snapshots and per-run generation statistics.
// SaveSnapshot always appends; LatestSnapshot returns the most recently
// written snapshot whose ID starts with prefix.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, name string, payload []byte) (Snapshot, error)
	LatestSnapshot(ctx context.Context, prefix string) (Snapshot, bool, error)
	ListSnapshots(ctx context.Context, prefix string) ([]Snapshot, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}

func SnapshotID(name string, index int) string {
	return name + " " + strconv.Itoa(index)
}

// ParseSnapshotID splits an ID produced by SnapshotID.
func ParseSnapshotID(id string) (string, int, error) {
	cut := strings.LastIndex(id, " ")
	if cut <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidName, id)
	}
	index, err := strconv.Atoi(id[cut+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidName, id)
	}
	return id[:cut], index, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// newer reports whether a was written after b.
func newer(a, b Snapshot) bool {
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	if a.Name == b.Name {
		return a.Index > b.Index
	}
	return a.ID > b.ID
}
