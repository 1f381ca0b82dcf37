package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreLatestFollowsModificationTime(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, err := store.SaveSnapshot(ctx, "net-b", []byte("b")); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if _, err := store.SaveSnapshot(ctx, "net-a", []byte("a")); err != nil {
		t.Fatalf("save a: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "net-a 0.json"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	latest, ok, err := store.LatestSnapshot(ctx, "net")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !ok || latest.ID != "net-b 0" {
		t.Fatalf("expected most recently modified snapshot, got %+v", latest)
	}
}

func TestFileStoreSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "net-notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	snaps, err := store.ListSnapshots(ctx, "net")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected foreign file to be ignored, got %+v", snaps)
	}
}

func TestFileStoreNeverOverwritesExistingIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "net 0.json"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := store.SaveSnapshot(ctx, "net", []byte("new"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.ID != "net 1" {
		t.Fatalf("expected next free index, got %s", snap.ID)
	}
	data, err := os.ReadFile(filepath.Join(dir, "net 0.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "old" {
		t.Fatalf("existing snapshot overwritten: %q", data)
	}
}

func TestFileStoreLatestReadsOnlyNewestPayload(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := store.SaveSnapshot(ctx, "net", []byte{byte('0' + i)}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	var reads []string
	store.readFile = func(path string) ([]byte, error) {
		reads = append(reads, filepath.Base(path))
		return os.ReadFile(path)
	}
	latest, ok, err := store.LatestSnapshot(ctx, "net ")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != "net 4" || string(latest.Payload) != "4" {
		t.Fatalf("unexpected latest snapshot: %s %q", latest.ID, latest.Payload)
	}
	if len(reads) != 1 || reads[0] != "net 4.json" {
		t.Fatalf("expected a single payload read, got %v", reads)
	}
}
