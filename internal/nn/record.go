package nn

import (
	"fmt"

	"neurodrive/internal/matrix"
	"neurodrive/internal/model"
)

// ToRecord flattens the network into its persisted form. Versioning and the
// save timestamp are filled in by the store codec.
func (n *Network) ToRecord(name string) model.ChampionRecord {
	weights := make([]model.MatrixRecord, len(n.Weights))
	for i, w := range n.Weights {
		weights[i] = model.MatrixRecord{Rows: w.Rows(), Cols: w.Cols(), Values: w.Values()}
	}
	return model.ChampionRecord{
		Name:             name,
		Inputs:           n.Topology.Inputs,
		Outputs:          n.Topology.Outputs,
		HiddenLayers:     n.Topology.HiddenLayers,
		NeuronsPerHidden: n.Topology.NeuronsPerHidden,
		Weights:          weights,
		Biases:           append([]float64(nil), n.Biases...),
		Fitness:          n.Fitness,
	}
}

// FromRecord rebuilds a network from its persisted form.
func FromRecord(rec model.ChampionRecord) (*Network, error) {
	topo := Topology{
		Inputs:           rec.Inputs,
		Outputs:          rec.Outputs,
		HiddenLayers:     rec.HiddenLayers,
		NeuronsPerHidden: rec.NeuronsPerHidden,
	}
	weights := make([]*matrix.Matrix, len(rec.Weights))
	for i, w := range rec.Weights {
		m, err := matrix.FromSlice(w.Values, w.Rows, w.Cols)
		if err != nil {
			return nil, fmt.Errorf("record %s weight %d: %w", rec.Name, i, err)
		}
		weights[i] = m
	}
	return New(topo, weights, append([]float64(nil), rec.Biases...), rec.Fitness)
}
