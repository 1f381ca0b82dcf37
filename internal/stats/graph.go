package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"neurodrive/internal/model"
)

// FitnessGraph aggregates per-generation fitness across the runs of a
// benchmark. Runs that stopped early drop out of later generations.
type FitnessGraph struct {
	Environment string    `json:"environment"`
	Generation  []int     `json:"generation"`
	Runs        []int     `json:"runs"`
	AvgBest     []float64 `json:"avg_best"`
	BestStd     []float64 `json:"best_std"`
	MaxBest     []float64 `json:"max_best"`
	MinBest     []float64 `json:"min_best"`
	AvgMean     []float64 `json:"avg_mean"`
	MeanStd     []float64 `json:"mean_std"`
}

func BuildFitnessGraph(environment string, runs [][]model.GenerationStats) FitnessGraph {
	graph := FitnessGraph{Environment: environment}
	for gen := 0; ; gen++ {
		var bests, means []float64
		for _, run := range runs {
			if gen >= len(run) {
				continue
			}
			bests = append(bests, run[gen].BestFitness)
			means = append(means, run[gen].MeanFitness)
		}
		if len(bests) == 0 {
			return graph
		}
		best := Summarize(gen, bests)
		mean := Summarize(gen, means)
		graph.Generation = append(graph.Generation, gen)
		graph.Runs = append(graph.Runs, len(bests))
		graph.AvgBest = append(graph.AvgBest, best.MeanFitness)
		graph.BestStd = append(graph.BestStd, best.StdFitness)
		graph.MaxBest = append(graph.MaxBest, best.BestFitness)
		graph.MinBest = append(graph.MinBest, best.MinFitness)
		graph.AvgMean = append(graph.AvgMean, mean.MeanFitness)
		graph.MeanStd = append(graph.MeanStd, mean.StdFitness)
	}
}

// WriteFitnessGraph writes graph as gnuplot data blocks into dir and returns
// the file path.
func WriteFitnessGraph(dir string, graph FitnessGraph) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "graph_"+sanitizeGraphToken(graph.Environment)+".dat")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	blocks := []struct {
		title  string
		values []float64
		std    []float64
	}{
		{"Avg Best Fitness Vs Generation", graph.AvgBest, graph.BestStd},
		{"Avg Mean Fitness Vs Generation", graph.AvgMean, graph.MeanStd},
		{"Max Best Fitness Vs Generation", graph.MaxBest, nil},
		{"Min Best Fitness Vs Generation", graph.MinBest, nil},
	}
	for i, block := range blocks {
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		if _, err := fmt.Fprintf(file, "%s#%s, Environment:%s\n", sep, block.title, graph.Environment); err != nil {
			return "", err
		}
		if err := writeSeries(file, graph.Generation, block.values, block.std); err != nil {
			return "", err
		}
	}
	return path, nil
}

// writeSeries writes "index value [std]" rows; std is omitted when nil.
func writeSeries(w io.Writer, index []int, values, std []float64) error {
	length := min(len(index), len(values))
	for i := 0; i < length; i++ {
		var err error
		if std != nil && i < len(std) {
			_, err = fmt.Fprintf(w, "%d %g %g\n", index[i], values[i], std[i])
		} else {
			_, err = fmt.Fprintf(w, "%d %g\n", index[i], values[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sanitizeGraphToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
