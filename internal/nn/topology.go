package nn

import (
	"errors"
	"fmt"
)

var ErrInvalidTopology = errors.New("invalid network topology")

// Topology fixes the layer dimensions of a network: Inputs units feed
// HiddenLayers dense layers of NeuronsPerHidden units each, followed by an
// Outputs-wide output layer.
type Topology struct {
	Inputs           int `json:"inputs" yaml:"inputs" ini:"inputs"`
	Outputs          int `json:"outputs" yaml:"outputs" ini:"outputs"`
	HiddenLayers     int `json:"hidden_layers" yaml:"hidden_layers" ini:"hidden_layers"`
	NeuronsPerHidden int `json:"neurons_per_hidden" yaml:"neurons_per_hidden" ini:"neurons_per_hidden"`
}

// MinOutputs is the action width: throttle and steering.
const MinOutputs = 2

func (t Topology) Validate() error {
	switch {
	case t.Inputs <= 0:
		return fmt.Errorf("%w: inputs must be > 0, got %d", ErrInvalidTopology, t.Inputs)
	case t.Outputs < MinOutputs:
		return fmt.Errorf("%w: outputs must be >= %d, got %d", ErrInvalidTopology, MinOutputs, t.Outputs)
	case t.HiddenLayers <= 0:
		return fmt.Errorf("%w: hidden layers must be > 0, got %d", ErrInvalidTopology, t.HiddenLayers)
	case t.NeuronsPerHidden <= 0:
		return fmt.Errorf("%w: neurons per hidden layer must be > 0, got %d", ErrInvalidTopology, t.NeuronsPerHidden)
	}
	return nil
}

// Layers is the number of weight matrices (and bias scalars).
func (t Topology) Layers() int {
	return t.HiddenLayers + 1
}

// WeightShapes lists the (rows, cols) of every weight matrix in order.
func (t Topology) WeightShapes() [][2]int {
	shapes := make([][2]int, 0, t.Layers())
	prev := t.Inputs
	for i := 0; i < t.HiddenLayers; i++ {
		shapes = append(shapes, [2]int{prev, t.NeuronsPerHidden})
		prev = t.NeuronsPerHidden
	}
	return append(shapes, [2]int{prev, t.Outputs})
}

// Name is the champion record name for this configuration.
func (t Topology) Name() string {
	return fmt.Sprintf("net-i%d-o%d-h%dx%d", t.Inputs, t.Outputs, t.HiddenLayers, t.NeuronsPerHidden)
}
