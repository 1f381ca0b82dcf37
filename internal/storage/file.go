package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neurodrive/internal/model"
)

const (
	snapshotExt = ".json"
	statsDir    = "runs"
)

// FileStore keeps one file per snapshot, named "<name> <index>.json", in a
// single directory. Recency is the file modification time.
type FileStore struct {
	dir      string
	readFile func(string) ([]byte, error)
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, readFile: os.ReadFile}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("file store directory is required")
	}
	return os.MkdirAll(filepath.Join(s.dir, statsDir), 0o755)
}

func (s *FileStore) SaveSnapshot(_ context.Context, name string, payload []byte) (Snapshot, error) {
	if err := validateName(name); err != nil {
		return Snapshot{}, err
	}
	existing, err := s.headers(name)
	if err != nil {
		return Snapshot{}, err
	}
	index := 0
	for _, snap := range existing {
		if snap.Name == name && snap.Index >= index {
			index = snap.Index + 1
		}
	}

	for {
		id := SnapshotID(name, index)
		path := filepath.Join(s.dir, id+snapshotExt)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			index++
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		if _, err := f.Write(payload); err != nil {
			_ = f.Close()
			return Snapshot{}, err
		}
		if err := f.Close(); err != nil {
			return Snapshot{}, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return Snapshot{}, err
		}
		snap := header(id, name, index, info)
		snap.Payload = append([]byte(nil), payload...)
		return snap, nil
	}
}

// LatestSnapshot stats every matching file but reads only the newest one.
func (s *FileStore) LatestSnapshot(_ context.Context, prefix string) (Snapshot, bool, error) {
	snaps, err := s.headers(prefix)
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, false, nil
	}
	latest := snaps[len(snaps)-1]
	if err := s.load(&latest); err != nil {
		return Snapshot{}, false, err
	}
	return latest, true, nil
}

// ListSnapshots returns matching snapshots oldest first.
func (s *FileStore) ListSnapshots(_ context.Context, prefix string) ([]Snapshot, error) {
	snaps, err := s.headers(prefix)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		if err := s.load(&snaps[i]); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// headers lists matching snapshots oldest first without their payloads.
func (s *FileStore) headers(prefix string) ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), snapshotExt)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		name, index, err := ParseSnapshotID(id)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, header(id, name, index, info))
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

func (s *FileStore) load(snap *Snapshot) error {
	payload, err := s.readFile(filepath.Join(s.dir, snap.ID+snapshotExt))
	if err != nil {
		return err
	}
	snap.Payload = payload
	return nil
}

func header(id, name string, index int, info fs.FileInfo) Snapshot {
	return Snapshot{
		ID:        id,
		Name:      name,
		Index:     index,
		Seq:       info.ModTime().UnixNano(),
		CreatedAt: info.ModTime().UTC(),
	}
}

func (s *FileStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	if err := validateName(runID); err != nil {
		return err
	}
	payload, err := EncodeGenerationStats(stats)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, statsDir, runID+snapshotExt), payload, 0o644)
}

func (s *FileStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	data, err := s.readFile(filepath.Join(s.dir, statsDir, runID+snapshotExt))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	stats, err := DecodeGenerationStats(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode generation stats %s: %w", runID, err)
	}
	return stats, true, nil
}
