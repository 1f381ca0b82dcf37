package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"neurodrive/internal/stats"
)

const smallConfig = `network:
  hidden_layers: 1
  neurons_per_hidden: 4
evolution:
  population_size: 6
  subjects_to_reset: 1
  subpopulation_size: 3
  num_parents: 2
track:
  max_steps: 100
run:
  log_level: error
`

type testWorkspace struct {
	dir    string
	config string
	store  string
	runs   string
}

func newTestWorkspace(t *testing.T) testWorkspace {
	t.Helper()
	dir := t.TempDir()
	ws := testWorkspace{
		dir:    dir,
		config: filepath.Join(dir, "neurodrive.yaml"),
		store:  filepath.Join(dir, "champions"),
		runs:   filepath.Join(dir, "runs"),
	}
	if err := os.WriteFile(ws.config, []byte(smallConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return ws
}

func (ws testWorkspace) args(cmd string, extra ...string) []string {
	args := []string{cmd,
		"--config", ws.config,
		"--store", "file",
		"--store-path", ws.store,
		"--artifacts", ws.runs,
	}
	return append(args, extra...)
}

func (ws testWorkspace) train(t *testing.T, extra ...string) string {
	t.Helper()
	out, err := captureStdout(func() error {
		return run(context.Background(), ws.args("train", append([]string{"--generations", "2"}, extra...)...))
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return out
}

func TestRunRequiresKnownCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
	if err := run(context.Background(), []string{"fly"}); err == nil || !strings.Contains(err.Error(), "unknown command: fly") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestTrainWritesArtifactsAndChampion(t *testing.T) {
	ws := newTestWorkspace(t)
	out := ws.train(t)
	if !strings.Contains(out, "generations=2") || !strings.Contains(out, "episodes=12") {
		t.Fatalf("unexpected train output: %s", out)
	}

	entries, err := stats.ListRunIndex(ws.runs)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID
	for _, file := range []string{"config.json", "fitness_history.json", "generations.json", "generations.csv", "champion.json"} {
		path := filepath.Join(ws.runs, runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), ws.args("champion"))
	})
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if !strings.Contains(out, "champion=net-i5-o2-h1x4") {
		t.Fatalf("unexpected champion output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), ws.args("snapshots", "--prefix", "net-i5-o2-h1x4 "))
	})
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if !strings.Contains(out, `id="net-i5-o2-h1x4 0"`) {
		t.Fatalf("unexpected snapshots output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), ws.args("drive"))
	})
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if !strings.Contains(out, "end=") {
		t.Fatalf("unexpected drive output: %s", out)
	}
}

func TestTrainResumeSeedsFromChampion(t *testing.T) {
	ws := newTestWorkspace(t)
	if out := ws.train(t, "--resume"); !strings.Contains(out, "resumed=false") {
		t.Fatalf("expected fresh run, got %s", out)
	}
	if out := ws.train(t, "--resume"); !strings.Contains(out, "resumed=true") {
		t.Fatalf("expected resumed run, got %s", out)
	}
}

func TestDriveWithoutChampionFails(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := run(context.Background(), ws.args("drive")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRunsDiagnosticsAndExport(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.train(t, "--run-id", "run-a")

	out, err := captureStdout(func() error {
		return run(context.Background(), ws.args("runs"))
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "run_id=run-a") || !strings.Contains(out, "environment=ring-track") {
		t.Fatalf("unexpected runs output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), ws.args("diagnostics", "--latest", "--csv"))
	})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	generations, err := stats.ReadGenerationCSV(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse diagnostics csv: %v", err)
	}
	if len(generations) != 2 || generations[0].RunID != "run-a" {
		t.Fatalf("unexpected diagnostics: %+v", generations)
	}

	if err := run(context.Background(), ws.args("diagnostics")); err == nil {
		t.Fatal("expected diagnostics to require a run selector")
	}

	exportDir := filepath.Join(ws.dir, "exports")
	if _, err := captureStdout(func() error {
		return run(context.Background(), ws.args("export", "--latest", "--out", exportDir))
	}); err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"config.json", "generations.csv", "champion.json"} {
		if _, err := os.Stat(filepath.Join(exportDir, "run-a", file)); err != nil {
			t.Fatalf("expected exported %s: %v", file, err)
		}
	}
}

func TestDiagnosticsFallsBackToStore(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.train(t, "--run-id", "run-b")
	if err := os.RemoveAll(filepath.Join(ws.runs, "run-b")); err != nil {
		t.Fatalf("remove run dir: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), ws.args("diagnostics", "--run-id", "run-b"))
	})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if strings.Count(out, "generation=") != 2 {
		t.Fatalf("expected two generations from store, got %s", out)
	}
}

func TestBenchmarkCommandWritesSummary(t *testing.T) {
	ws := newTestWorkspace(t)
	out, err := captureStdout(func() error {
		return run(context.Background(), ws.args("benchmark", "--seeds", "1,2", "--generations", "1", "--workers", "2"))
	})
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if !strings.Contains(out, "runs=2") {
		t.Fatalf("unexpected benchmark output: %s", out)
	}

	summary, ok, err := stats.ReadBenchmarkSummary(filepath.Join(ws.runs, "benchmark"))
	if err != nil || !ok {
		t.Fatalf("read benchmark summary: ok=%v err=%v", ok, err)
	}
	if summary.Runs != 2 || len(summary.RunIDs) != 2 || summary.Environment != "ring-track" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(ws.runs, "benchmark", "graph_ring-track.dat")); err != nil {
		t.Fatalf("expected fitness graph: %v", err)
	}
	entries, err := stats.ListRunIndex(ws.runs)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 indexed runs, got %d", len(entries))
	}
}

func TestConfigCommandAppliesINIAndFlags(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "neurodrive.ini")
	iniData := "[evolution]\npopulation_size = 40\nnum_parents = 10\n"
	if err := os.WriteFile(iniPath, []byte(iniData), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"config", "--config", iniPath, "--store", "sqlite"})
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"population_size: 40", "num_parents: 10", "kind: sqlite", "path: neurodrive-data/champions.db"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in config output: %s", want, out)
		}
	}

	written := filepath.Join(dir, "out", "effective.yaml")
	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"config", "--config", iniPath, "--write", written})
	}); err != nil {
		t.Fatalf("config write: %v", err)
	}
	if _, err := os.Stat(written); err != nil {
		t.Fatalf("expected written config: %v", err)
	}
}

func TestStoreKindsUseSeparateDefaultPaths(t *testing.T) {
	ws := newTestWorkspace(t)
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(ws.dir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})

	for _, kind := range []string{"file", "sqlite"} {
		args := []string{"train", "--config", ws.config, "--store", kind, "--artifacts", ws.runs, "--generations", "1"}
		if _, err := captureStdout(func() error {
			return run(context.Background(), args)
		}); err != nil {
			t.Fatalf("train with %s store: %v", kind, err)
		}
	}
	if info, err := os.Stat(filepath.Join("neurodrive-data", "champions")); err != nil || !info.IsDir() {
		t.Fatalf("expected file store directory: %v", err)
	}
	if info, err := os.Stat(filepath.Join("neurodrive-data", "champions.db")); err != nil || info.IsDir() {
		t.Fatalf("expected sqlite database file: %v", err)
	}
}

func TestConfigCommandRejectsInvalidOverrides(t *testing.T) {
	if err := run(context.Background(), []string{"config", "--store", "redis"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestParseSeeds(t *testing.T) {
	seeds, err := parseSeeds(" 3, 5 ,8")
	if err != nil {
		t.Fatalf("parse seeds: %v", err)
	}
	if len(seeds) != 3 || seeds[0] != 3 || seeds[2] != 8 {
		t.Fatalf("unexpected seeds: %v", seeds)
	}
	if _, err := parseSeeds("1,x"); err == nil {
		t.Fatal("expected invalid seed error")
	}
	if _, err := parseSeeds(" , "); err == nil {
		t.Fatal("expected empty seed list error")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger(io.Discard, "loud"); err == nil {
		t.Fatal("expected invalid log level error")
	}
	if _, err := newLogger(io.Discard, "warn"); err != nil {
		t.Fatalf("warn level: %v", err)
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
