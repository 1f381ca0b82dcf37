package scape

import (
	"context"

	"neurodrive/internal/nn"
)

// Driver maps one sensor vector to a control action. *nn.Network is a
// Driver.
type Driver interface {
	Run(input []float64) (nn.Action, error)
}

// Environment runs one episode for a driver and scores it.
type Environment interface {
	Name() string
	Episode(ctx context.Context, driver Driver) (EpisodeResult, error)
}

const (
	EndCollision  = "collision"
	EndStalled    = "stalled"
	EndFitnessCap = "fitness_cap"
	EndMaxSteps   = "max_steps"
)

type EpisodeResult struct {
	Fitness  float64 `json:"fitness"`
	Steps    int     `json:"steps"`
	Distance float64 `json:"distance"`
	AvgSpeed float64 `json:"avg_speed"`
	Elapsed  float64 `json:"elapsed"`
	End      string  `json:"end"`
	// CapReached is set when the episode ended on the fitness cap.
	CapReached bool `json:"cap_reached"`
}
