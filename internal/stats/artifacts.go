package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"neurodrive/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	createdAtLayout = "%Y-%m-%dT%H:%M:%SZ"
)

// RunConfig is the evolution setup recorded next to a run's results.
type RunConfig struct {
	RunID                   string  `json:"run_id"`
	Environment             string  `json:"environment"`
	ChampionName            string  `json:"champion_name"`
	Inputs                  int     `json:"inputs"`
	Outputs                 int     `json:"outputs"`
	HiddenLayers            int     `json:"hidden_layers"`
	NeuronsPerHidden        int     `json:"neurons_per_hidden"`
	PopulationSize          int     `json:"population_size"`
	Generations             int     `json:"generations"`
	SubjectsToReset         int     `json:"subjects_to_reset"`
	SubpopulationSize       int     `json:"subpopulation_size"`
	NumParents              int     `json:"num_parents"`
	SwapChance              float64 `json:"swap_chance"`
	MutationChance          float64 `json:"mutation_chance"`
	BiasInterpolationChance float64 `json:"bias_interpolation_chance"`
	MinNoise                float64 `json:"min_noise"`
	MaxNoise                float64 `json:"max_noise"`
	Selection               string  `json:"selection"`
	Seed                    int64   `json:"seed"`
	StoreKind               string  `json:"store_kind,omitempty"`
}

type RunArtifacts struct {
	Config           RunConfig               `json:"config"`
	BestByGeneration []float64               `json:"best_by_generation"`
	Generations      []model.GenerationStats `json:"generations"`
	FinalBestFitness float64                 `json:"final_best_fitness"`
	Episodes         int                     `json:"episodes"`
	Champion         *model.ChampionRecord   `json:"champion,omitempty"`
}

type BenchmarkSummary struct {
	Environment    string   `json:"environment"`
	Runs           int      `json:"runs"`
	Generations    int      `json:"generations"`
	PopulationSize int      `json:"population_size"`
	BestMean       float64  `json:"best_mean"`
	BestStd        float64  `json:"best_std"`
	BestMax        float64  `json:"best_max"`
	BestMin        float64  `json:"best_min"`
	Seeds          []int64  `json:"seeds"`
	RunIDs         []string `json:"run_ids"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Environment      string  `json:"environment"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Selection        string  `json:"selection"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// FormatCreatedAt renders a run index timestamp. The layout sorts
// lexically in time order.
func FormatCreatedAt(t time.Time) string {
	return strftime.Format(createdAtLayout, t.UTC())
}

var artifactFiles = []string{"config.json", "fitness_history.json", "generations.json", "generations.csv"}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"best_by_generation": artifacts.BestByGeneration,
		"final_best_fitness": artifacts.FinalBestFitness,
		"episodes":           artifacts.Episodes,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generations.json"), artifacts.Generations); err != nil {
		return "", err
	}
	csvFile, err := os.Create(filepath.Join(runDir, "generations.csv"))
	if err != nil {
		return "", err
	}
	if err := WriteGenerationCSV(csvFile, artifacts.Generations); err != nil {
		_ = csvFile.Close()
		return "", err
	}
	if err := csvFile.Close(); err != nil {
		return "", err
	}
	if artifacts.Champion != nil {
		if err := writeJSON(filepath.Join(runDir, "champion.json"), artifacts.Champion); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns runs newest first. Entries with equal timestamps
// keep reverse append order.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries := []RunIndexEntry{}
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory's artifacts into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, optional := range []string{"champion.json", "benchmark_summary.json"} {
		path := filepath.Join(src, optional)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, optional)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadGenerations(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	var generations []model.GenerationStats
	ok, err := readJSON(filepath.Join(baseDir, runID, "generations.json"), &generations)
	return generations, ok, err
}

func WriteBenchmarkSummary(dir string, summary BenchmarkSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "benchmark_summary.json"), summary)
}

func ReadBenchmarkSummary(dir string) (BenchmarkSummary, bool, error) {
	var summary BenchmarkSummary
	ok, err := readJSON(filepath.Join(dir, "benchmark_summary.json"), &summary)
	return summary, ok, err
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
