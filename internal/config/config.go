package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/world"
)

const (
	DefaultExtent    = 100.0
	DefaultPixelSize = 1.0
	DefaultG         = 1.0
	DefaultMaxForce  = 10.0
	DefaultCapacity  = 4096
	DefaultParticles = 200
	DefaultTicks     = 500
	DefaultTickMS    = 33
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	World    WorldConfig    `yaml:"world" toml:"world"`
	Compute  ComputeConfig  `yaml:"compute" toml:"compute"`
	Scenario ScenarioConfig `yaml:"scenario" toml:"scenario"`
	Run      RunConfig      `yaml:"run" toml:"run"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type WorldConfig struct {
	MinX      float64 `yaml:"min_x" toml:"min_x"`
	MinY      float64 `yaml:"min_y" toml:"min_y"`
	MaxX      float64 `yaml:"max_x" toml:"max_x"`
	MaxY      float64 `yaml:"max_y" toml:"max_y"`
	PixelSize float64 `yaml:"pixel_size" toml:"pixel_size"`
	G         float64 `yaml:"g" toml:"g"`
	MaxForce  float64 `yaml:"max_force" toml:"max_force"`
	Radius    float64 `yaml:"radius" toml:"radius"` // 0 = unlimited
}

type ComputeConfig struct {
	Backend  string `yaml:"backend" toml:"backend"` // auto, gpu, emulated, cpu
	Workers  int    `yaml:"workers" toml:"workers"`
	Capacity int    `yaml:"capacity" toml:"capacity"`
}

type ScenarioConfig struct {
	Layout    string  `yaml:"layout" toml:"layout"` // ring, rain, binary, random
	Particles int     `yaml:"particles" toml:"particles"`
	Seed      int64   `yaml:"seed" toml:"seed"`
	Mass      float64 `yaml:"mass" toml:"mass"`
	Script    string  `yaml:"script,omitempty" toml:"script,omitempty"`
}

type RunConfig struct {
	Ticks  int `yaml:"ticks" toml:"ticks"`
	TickMS int `yaml:"tick_ms" toml:"tick_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "json" or "console"
	// File receives log output instead of stderr when set.
	File string `yaml:"file,omitempty" toml:"file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			MinX:      -DefaultExtent,
			MinY:      -DefaultExtent,
			MaxX:      DefaultExtent,
			MaxY:      DefaultExtent,
			PixelSize: DefaultPixelSize,
			G:         DefaultG,
			MaxForce:  DefaultMaxForce,
		},
		Compute: ComputeConfig{
			Backend:  "auto",
			Capacity: DefaultCapacity,
		},
		Scenario: ScenarioConfig{
			Layout:    "random",
			Particles: DefaultParticles,
			Seed:      1,
			Mass:      1,
		},
		Run: RunConfig{
			Ticks:  DefaultTicks,
			TickMS: DefaultTickMS,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML or TOML file, chosen by extension, over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Validate checks the values the world and executor would reject at startup.
func (c *Config) Validate() error {
	w := c.World
	if w.MinX > 0 || w.MaxX < 0 || w.MinY > 0 || w.MaxY < 0 || w.MinX >= w.MaxX || w.MinY >= w.MaxY {
		return fmt.Errorf("%w: bounds [%v,%v]x[%v,%v] must straddle the origin", ErrInvalid, w.MinX, w.MaxX, w.MinY, w.MaxY)
	}
	for name, v := range map[string]float64{"pixel_size": w.PixelSize, "g": w.G, "max_force": w.MaxForce} {
		if !(v > 0) {
			return fmt.Errorf("%w: world.%s must be positive", ErrInvalid, name)
		}
	}
	if w.Radius < 0 {
		return fmt.Errorf("%w: world.radius must not be negative", ErrInvalid)
	}
	if _, _, err := compute.ParseMode(c.Compute.Backend); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Compute.Capacity <= 0 || c.Compute.Workers < 0 {
		return fmt.Errorf("%w: compute.capacity must be positive and workers non-negative", ErrInvalid)
	}
	if c.Scenario.Particles < 0 || c.Run.Ticks < 0 || c.Run.TickMS < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalid)
	}
	return nil
}

// WorldConfig converts the file configuration into a world configuration.
func (c *Config) WorldConfig(log *zap.Logger) (world.Config, error) {
	mode, emulated, err := compute.ParseMode(c.Compute.Backend)
	if err != nil {
		return world.Config{}, err
	}
	opts := compute.Options{Mode: mode, Workers: c.Compute.Workers, Logger: log}
	if emulated {
		opts.Device = compute.NewSoftwareDevice()
	}
	return world.Config{
		Bounds:    grid.Bounds{MinX: c.World.MinX, MinY: c.World.MinY, MaxX: c.World.MaxX, MaxY: c.World.MaxY},
		PixelSize: c.World.PixelSize,
		G:         c.World.G,
		MaxForce:  c.World.MaxForce,
		Radius:    c.World.Radius,
		Capacity:  c.Compute.Capacity,
		Executor:  opts,
		Logger:    log,
	}, nil
}
