package evo

import (
	"fmt"
	"math/rand"

	"neurodrive/internal/nn"
)

// Selector picks one parent from a population sorted ascending by fitness.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []*nn.Network, subpopulation int) (*nn.Network, error)
}

// SelectorByName resolves a Config.Selection value. The empty name is the
// index tournament.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", SelectionIndex:
		return IndexTournament{}, nil
	case SelectionFitness:
		return FitnessTournament{}, nil
	default:
		return nil, fmt.Errorf("unknown selection mode: %s", name)
	}
}

// IndexTournament samples subpopulation indices with replacement and returns
// the genome at the largest one. On an ascending sort a higher index stands
// in for a higher fitness.
type IndexTournament struct{}

func (IndexTournament) Name() string {
	return SelectionIndex
}

func (IndexTournament) PickParent(rng *rand.Rand, ranked []*nn.Network, subpopulation int) (*nn.Network, error) {
	if err := checkTournament(rng, ranked, subpopulation); err != nil {
		return nil, err
	}
	best := rng.Intn(len(ranked))
	for i := 1; i < subpopulation; i++ {
		if idx := rng.Intn(len(ranked)); idx > best {
			best = idx
		}
	}
	return ranked[best], nil
}

// FitnessTournament samples the same way but compares the sampled genomes'
// recorded fitness.
type FitnessTournament struct{}

func (FitnessTournament) Name() string {
	return SelectionFitness
}

func (FitnessTournament) PickParent(rng *rand.Rand, ranked []*nn.Network, subpopulation int) (*nn.Network, error) {
	if err := checkTournament(rng, ranked, subpopulation); err != nil {
		return nil, err
	}
	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < subpopulation; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best, nil
}

// SelectParents runs count independent tournaments.
func SelectParents(rng *rand.Rand, selector Selector, ranked []*nn.Network, count, subpopulation int) ([]*nn.Network, error) {
	if selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	parents := make([]*nn.Network, 0, count)
	for i := 0; i < count; i++ {
		parent, err := selector.PickParent(rng, ranked, subpopulation)
		if err != nil {
			return nil, fmt.Errorf("%s selection %d: %w", selector.Name(), i, err)
		}
		parents = append(parents, parent)
	}
	return parents, nil
}

func checkTournament(rng *rand.Rand, ranked []*nn.Network, subpopulation int) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return fmt.Errorf("population is empty")
	}
	if subpopulation < 1 {
		return fmt.Errorf("invalid subpopulation size: %d", subpopulation)
	}
	return nil
}
