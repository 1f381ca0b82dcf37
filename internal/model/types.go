package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// MatrixRecord is a flattened row-major weight matrix.
type MatrixRecord struct {
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Values []float64 `json:"values"`
}

// ChampionRecord is the persisted form of the best genome for one network
// configuration.
type ChampionRecord struct {
	VersionedRecord
	Name             string         `json:"name"`
	Inputs           int            `json:"inputs"`
	Outputs          int            `json:"outputs"`
	HiddenLayers     int            `json:"hidden_layers"`
	NeuronsPerHidden int            `json:"neurons_per_hidden"`
	Weights          []MatrixRecord `json:"weights"`
	Biases           []float64      `json:"biases"`
	Fitness          float64        `json:"fitness"`
	Generation       int            `json:"generation"`
	SavedAt          time.Time      `json:"saved_at"`
}

// GenerationStats summarises the fitness distribution of one evaluated
// generation.
type GenerationStats struct {
	RunID         string  `json:"run_id" csv:"run_id"`
	Generation    int     `json:"generation" csv:"generation"`
	Population    int     `json:"population" csv:"population"`
	BestFitness   float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness" csv:"mean_fitness"`
	StdFitness    float64 `json:"std_fitness" csv:"std_fitness"`
	MinFitness    float64 `json:"min_fitness" csv:"min_fitness"`
	ChampionSaved bool    `json:"champion_saved" csv:"champion_saved"`
	SaveFailed    bool    `json:"save_failed" csv:"save_failed"`
}
