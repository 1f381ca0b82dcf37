package nn

import (
	"fmt"
	"math"
	"math/rand"

	"neurodrive/internal/matrix"
)

// Action is the bounded control output of a forward pass.
type Action struct {
	// Throttle is the logistic-squashed first output, in [0, 1].
	Throttle float64
	// Steering is the tanh-squashed second output, in [-1, 1].
	Steering float64
}

// Network is one genome together with its forward evaluation. The weight
// matrices and biases are read-only once the network is handed to an
// environment.
type Network struct {
	Topology Topology
	Weights  []*matrix.Matrix
	Biases   []float64
	Fitness  float64
}

// Random builds a network for topo with every weight and bias drawn
// independently from U[-1, 1].
func Random(rng *rand.Rand, topo Topology) (*Network, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	weights := make([]*matrix.Matrix, 0, topo.Layers())
	for _, shape := range topo.WeightShapes() {
		values := make([]float64, shape[0]*shape[1])
		for i := range values {
			values[i] = uniform(rng, -1, 1)
		}
		w, err := matrix.FromSlice(values, shape[0], shape[1])
		if err != nil {
			return nil, err
		}
		weights = append(weights, w)
	}

	biases := make([]float64, topo.Layers())
	for i := range biases {
		biases[i] = uniform(rng, -1, 1)
	}

	return &Network{Topology: topo, Weights: weights, Biases: biases}, nil
}

// New adopts weights and biases verbatim after checking them against topo.
func New(topo Topology, weights []*matrix.Matrix, biases []float64, fitness float64) (*Network, error) {
	net := &Network{Topology: topo, Weights: weights, Biases: biases, Fitness: fitness}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// Validate checks the genome shape invariants.
func (n *Network) Validate() error {
	if err := n.Topology.Validate(); err != nil {
		return err
	}
	shapes := n.Topology.WeightShapes()
	if len(n.Weights) != len(shapes) {
		return fmt.Errorf("%w: expected %d weight matrices, got %d", matrix.ErrDimensionMismatch, len(shapes), len(n.Weights))
	}
	if len(n.Biases) != len(shapes) {
		return fmt.Errorf("%w: expected %d biases, got %d", matrix.ErrDimensionMismatch, len(shapes), len(n.Biases))
	}
	for i, shape := range shapes {
		w := n.Weights[i]
		if w == nil {
			return fmt.Errorf("%w: weight matrix %d is nil", matrix.ErrDimensionMismatch, i)
		}
		if w.Rows() != shape[0] || w.Cols() != shape[1] {
			return fmt.Errorf("%w: weight matrix %d is %dx%d, want %dx%d",
				matrix.ErrDimensionMismatch, i, w.Rows(), w.Cols(), shape[0], shape[1])
		}
	}
	return nil
}

// Forward returns the final tanh-activated output layer as a 1 x Outputs row.
func (n *Network) Forward(input []float64) (*matrix.Matrix, error) {
	if len(input) != n.Topology.Inputs {
		return nil, fmt.Errorf("input length %d, want %d: %w", len(input), n.Topology.Inputs, matrix.ErrDimensionMismatch)
	}
	layer, err := matrix.Row(input)
	if err != nil {
		return nil, err
	}
	for i, w := range n.Weights {
		layer, err = layer.Tanh().Mul(w)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layer = layer.AddScalar(n.Biases[i])
	}
	return layer.Tanh(), nil
}

// Run evaluates the network against one sensor vector. Throttle is unsigned
// and steering is signed.
func (n *Network) Run(input []float64) (Action, error) {
	out, err := n.Forward(input)
	if err != nil {
		return Action{}, err
	}
	throttle, err := out.At(0, 0)
	if err != nil {
		return Action{}, err
	}
	steering, err := out.At(0, 1)
	if err != nil {
		return Action{}, err
	}
	return Action{Throttle: Sigmoid(throttle), Steering: math.Tanh(steering)}, nil
}

// Clone deep-copies weights, biases and fitness.
func (n *Network) Clone() *Network {
	weights := make([]*matrix.Matrix, len(n.Weights))
	for i, w := range n.Weights {
		weights[i] = w.Clone()
	}
	return &Network{
		Topology: n.Topology,
		Weights:  weights,
		Biases:   append([]float64(nil), n.Biases...),
		Fitness:  n.Fitness,
	}
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
