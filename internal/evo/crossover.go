package evo

import (
	"fmt"
	"math/rand"

	"neurodrive/internal/matrix"
	"neurodrive/internal/nn"
)

// CrossoverParams are the per-element recombination probabilities and the
// mutation noise range.
type CrossoverParams struct {
	SwapChance              float64
	MutationChance          float64
	BiasInterpolationChance float64
	MinNoise                float64
	MaxNoise                float64
}

// Crossover produces two children from copies of p1 and p2. For each weight
// element the children swap values with SwapChance, then each child
// independently receives U[MinNoise, MaxNoise] noise with MutationChance.
// For each bias index the children blend with one shared factor t with
// BiasInterpolationChance. Children start with zero fitness.
func Crossover(rng *rand.Rand, p1, p2 *nn.Network, params CrossoverParams) (*nn.Network, *nn.Network, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if p1 == nil || p2 == nil {
		return nil, nil, fmt.Errorf("two parents are required")
	}
	if p1.Topology != p2.Topology {
		return nil, nil, fmt.Errorf("parent topologies differ: %s vs %s: %w",
			p1.Topology.Name(), p2.Topology.Name(), matrix.ErrDimensionMismatch)
	}

	w1 := make([]*matrix.Matrix, len(p1.Weights))
	w2 := make([]*matrix.Matrix, len(p2.Weights))
	for layer := range p1.Weights {
		rows, cols := p1.Weights[layer].Dims()
		a := p1.Weights[layer].Values()
		b := p2.Weights[layer].Values()
		for i := range a {
			if rng.Float64() < params.SwapChance {
				a[i], b[i] = b[i], a[i]
			}
			if rng.Float64() < params.MutationChance {
				a[i] += uniform(rng, params.MinNoise, params.MaxNoise)
			}
			if rng.Float64() < params.MutationChance {
				b[i] += uniform(rng, params.MinNoise, params.MaxNoise)
			}
		}
		var err error
		if w1[layer], err = matrix.FromSlice(a, rows, cols); err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", layer, err)
		}
		if w2[layer], err = matrix.FromSlice(b, rows, cols); err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", layer, err)
		}
	}

	b1 := append([]float64(nil), p1.Biases...)
	b2 := append([]float64(nil), p2.Biases...)
	for i := range b1 {
		if rng.Float64() < params.BiasInterpolationChance {
			t := rng.Float64()
			b1[i], b2[i] = t*b1[i]+(1-t)*b2[i], t*b2[i]+(1-t)*b1[i]
		}
	}

	c1, err := nn.New(p1.Topology, w1, b1, 0)
	if err != nil {
		return nil, nil, err
	}
	c2, err := nn.New(p2.Topology, w2, b2, 0)
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
