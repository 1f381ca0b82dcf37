package scape

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var ErrInvalidTrack = errors.New("invalid track config")

// TrackConfig describes a ring road and the car driven around it. Angles
// are in degrees and times in seconds.
type TrackConfig struct {
	InnerRadius float64
	OuterRadius float64

	// SensorAngles are ray directions relative to the heading.
	SensorAngles      []float64
	SensorAttenuation float64
	SensorRange       float64

	AccelerationSpeed      float64
	AccelerationPercentage float64
	TurningAngle           float64
	TurningPercentage      float64
	TickSeconds            float64

	MinTimeAlive     float64
	MinFitness       float64
	FitnessCap       float64
	EnableFitnessCap bool
	MaxSteps         int

	DistanceMultiplier float64
	AvgSpeedMultiplier float64
	SensorMultiplier   float64
}

func DefaultTrackConfig() TrackConfig {
	return TrackConfig{
		InnerRadius:            40,
		OuterRadius:            60,
		SensorAngles:           []float64{-90, -45, 0, 45, 90},
		SensorAttenuation:      10,
		SensorRange:            100,
		AccelerationSpeed:      10,
		AccelerationPercentage: 0.1,
		TurningAngle:           90,
		TurningPercentage:      0.1,
		TickSeconds:            0.02,
		MinTimeAlive:           20,
		MinFitness:             10,
		FitnessCap:             2000,
		MaxSteps:               5000,
		DistanceMultiplier:     10,
		AvgSpeedMultiplier:     0.2,
		SensorMultiplier:       0.1,
	}
}

func (c TrackConfig) Validate() error {
	switch {
	case c.InnerRadius <= 0 || c.OuterRadius <= c.InnerRadius:
		return fmt.Errorf("%w: need 0 < inner radius < outer radius, got %v/%v", ErrInvalidTrack, c.InnerRadius, c.OuterRadius)
	case len(c.SensorAngles) == 0:
		return fmt.Errorf("%w: at least one sensor is required", ErrInvalidTrack)
	case c.SensorAttenuation <= 0:
		return fmt.Errorf("%w: sensor attenuation must be > 0", ErrInvalidTrack)
	case c.SensorRange <= 0:
		return fmt.Errorf("%w: sensor range must be > 0", ErrInvalidTrack)
	case c.TickSeconds <= 0:
		return fmt.Errorf("%w: tick must be > 0", ErrInvalidTrack)
	case c.MaxSteps <= 0:
		return fmt.Errorf("%w: max steps must be > 0", ErrInvalidTrack)
	}
	return nil
}

// Track is a ring road centred on the origin. The car starts on the centre
// line heading counterclockwise.
type Track struct {
	cfg TrackConfig
}

func NewTrack(cfg TrackConfig) (*Track, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SensorAngles = append([]float64(nil), cfg.SensorAngles...)
	return &Track{cfg: cfg}, nil
}

func (*Track) Name() string {
	return "ring-track"
}

// Sensors is the network input width for this track.
func (t *Track) Sensors() int {
	return len(t.cfg.SensorAngles)
}

func (t *Track) Config() TrackConfig {
	return t.cfg
}

type car struct {
	pos     r2.Vec
	heading float64
}

func (t *Track) start() car {
	mid := (t.cfg.InnerRadius + t.cfg.OuterRadius) / 2
	return car{pos: r2.Vec{X: mid, Y: 0}, heading: math.Pi / 2}
}

func (t *Track) Episode(ctx context.Context, driver Driver) (EpisodeResult, error) {
	if driver == nil {
		return EpisodeResult{}, fmt.Errorf("driver is required")
	}
	c := t.start()
	sensors := make([]float64, len(t.cfg.SensorAngles))
	var res EpisodeResult

	for res.Steps < t.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t.sense(c, sensors)
		action, err := driver.Run(sensors)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", res.Steps, err)
		}

		prev := c.pos
		c = t.move(c, action.Throttle, action.Steering)
		res.Steps++
		res.Elapsed += t.cfg.TickSeconds
		res.Distance += r2.Norm(r2.Sub(c.pos, prev))
		res.AvgSpeed = res.Distance / res.Elapsed
		res.Fitness = t.fitness(res, sensors)

		if !t.onRoad(c.pos) {
			res.End = EndCollision
			return res, nil
		}
		if res.Elapsed > t.cfg.MinTimeAlive && res.Fitness < t.cfg.MinFitness {
			res.End = EndStalled
			return res, nil
		}
		if t.cfg.EnableFitnessCap && res.Fitness >= t.cfg.FitnessCap {
			res.End = EndFitnessCap
			res.CapReached = true
			return res, nil
		}
	}
	res.End = EndMaxSteps
	return res, nil
}

func (t *Track) fitness(res EpisodeResult, sensors []float64) float64 {
	total := 0.0
	for _, s := range sensors {
		total += s
	}
	return res.Distance*t.cfg.DistanceMultiplier +
		res.AvgSpeed*t.cfg.AvgSpeedMultiplier +
		total/float64(len(sensors))*t.cfg.SensorMultiplier
}

func (t *Track) move(c car, throttle, steering float64) car {
	step := throttle * t.cfg.AccelerationSpeed * t.cfg.AccelerationPercentage
	dir := r2.Vec{X: math.Cos(c.heading), Y: math.Sin(c.heading)}
	c.pos = r2.Add(c.pos, r2.Scale(step, dir))
	c.heading += radians(steering * t.cfg.TurningAngle * t.cfg.TurningPercentage)
	return c
}

func (t *Track) onRoad(p r2.Vec) bool {
	r := r2.Norm(p)
	return r >= t.cfg.InnerRadius && r <= t.cfg.OuterRadius
}

// sense fills out with the attenuated distance to the nearest wall along
// each sensor ray.
func (t *Track) sense(c car, out []float64) {
	for i, angle := range t.cfg.SensorAngles {
		h := c.heading + radians(angle)
		dir := r2.Vec{X: math.Cos(h), Y: math.Sin(h)}
		d := t.cfg.SensorRange
		for _, radius := range []float64{t.cfg.InnerRadius, t.cfg.OuterRadius} {
			if hit, ok := rayCircle(c.pos, dir, radius); ok && hit < d {
				d = hit
			}
		}
		out[i] = d / t.cfg.SensorAttenuation
	}
}

// rayCircle returns the distance along the unit direction dir from p to
// the circle of the given radius around the origin.
func rayCircle(p, dir r2.Vec, radius float64) (float64, bool) {
	b := r2.Dot(p, dir)
	c := r2.Dot(p, p) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	for _, hit := range []float64{-b - sq, -b + sq} {
		if hit > 0 {
			return hit, true
		}
	}
	return 0, false
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
