package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/grid"
)

type Config struct {
	Bounds grid.Bounds
	// PixelSize is the grid cell size and the per-axis speed limit.
	PixelSize float64
	G         float64
	MaxForce  float64
	// Radius limits which sources attract a particle. 0 means unlimited.
	Radius float64
	// Capacity is the number of records per pipeline buffer.
	Capacity int

	Executor compute.Options
	Logger   *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		Bounds:    grid.Bounds{MinX: -100, MinY: -100, MaxX: 100, MaxY: 100},
		PixelSize: 1,
		G:         1,
		MaxForce:  10,
		Capacity:  4096,
		Executor:  compute.Options{Mode: compute.ModeAuto},
	}
}

func (c Config) validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"pixel size", c.PixelSize},
		{"G", c.G},
		{"max force", c.MaxForce},
		{"capacity", float64(c.Capacity)},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrConfig, p.name, p.v)
		}
	}
	if c.Radius < 0 {
		return fmt.Errorf("%w: radius must not be negative", ErrConfig)
	}
	return nil
}
