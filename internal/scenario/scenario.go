// Package scenario builds a world's initial particle set from a named layout
// or a Lua script.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
	"github.com/san-kum/particlesim/internal/world"
)

var ErrUnknownLayout = errors.New("scenario: unknown layout")

// Body describes one particle to spawn.
type Body struct {
	X, Y, VX, VY  float64
	Mass          float64
	Temperature   float64
	FreezingPoint float64
	BoilingPoint  float64
	Static        bool
	Color         uint32
	Layer         string
}

type LayerSpec struct {
	Name   string
	Parent string
}

// Scene is a world's initial content. Bonds index into Bodies.
type Scene struct {
	Layers []LayerSpec
	Bodies []Body
	Bonds  [][2]int
}

func (s *Scene) add(b Body) int {
	if b.Color == 0 {
		b.Color = 0xffffffff
	}
	s.Bodies = append(s.Bodies, b)
	return len(s.Bodies) - 1
}

func (s *Scene) hasLayer(name string) bool {
	for _, l := range s.Layers {
		if l.Name == name {
			return true
		}
	}
	return false
}

var Layouts = []string{"ring", "rain", "binary", "random"}

// Build runs the configured script, or generates the configured layout.
func Build(cfg config.ScenarioConfig, bounds grid.Bounds, log *zap.Logger) (*Scene, error) {
	if cfg.Script != "" {
		return RunFile(cfg.Script, cfg, bounds, log)
	}
	return Generate(cfg, bounds)
}

// Generate lays out cfg.Particles bodies within bounds. The same seed always
// yields the same scene.
func Generate(cfg config.ScenarioConfig, bounds grid.Bounds) (*Scene, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	mass := cfg.Mass
	if mass <= 0 {
		mass = 1
	}
	n := cfg.Particles
	w := bounds.MaxX - bounds.MinX
	h := bounds.MaxY - bounds.MinY
	cx := (bounds.MinX + bounds.MaxX) / 2
	cy := (bounds.MinY + bounds.MaxY) / 2
	s := &Scene{}

	switch cfg.Layout {
	case "ring":
		s.Layers = []LayerSpec{{Name: "ring"}}
		s.add(Body{X: cx, Y: cy, Mass: mass * float64(n), Static: true, Color: 0xffcc33ff})
		r := 0.6 * math.Min(w, h) / 2
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			s.add(Body{
				X:     cx + r*math.Cos(a),
				Y:     cy + r*math.Sin(a),
				VX:    -math.Sin(a) * 0.5,
				VY:    math.Cos(a) * 0.5,
				Mass:  mass,
				Layer: "ring",
			})
		}

	case "rain":
		s.Layers = []LayerSpec{{Name: "drops"}, {Name: "ground"}}
		floor := bounds.MinY + h*0.1
		for x := bounds.MinX + 1; x < bounds.MaxX; x += 2 {
			s.add(Body{X: x, Y: floor, Mass: mass * 10, Static: true, Layer: "ground", Color: 0x996633ff})
		}
		for i := 0; i < n; i++ {
			s.add(Body{
				X:     bounds.MinX + rng.Float64()*w,
				Y:     cy + rng.Float64()*h*0.45,
				VY:    -0.2 - rng.Float64()*0.3,
				Mass:  mass,
				Layer: "drops",
				Color: 0x3399ffff,
			})
		}

	case "binary":
		s.Layers = []LayerSpec{{Name: "left"}, {Name: "right"}}
		off := w / 4
		spread := math.Min(w, h) / 10
		for i := 0; i < n; i++ {
			side, layer, v := -1.0, "left", 0.3
			if i%2 == 1 {
				side, layer, v = 1, "right", -0.3
			}
			s.add(Body{
				X:     cx + side*off + rng.NormFloat64()*spread,
				Y:     cy + rng.NormFloat64()*spread,
				VY:    v,
				Mass:  mass,
				Layer: layer,
			})
		}

	case "random", "":
		for i := 0; i < n; i++ {
			s.add(Body{
				X:    bounds.MinX + rng.Float64()*w,
				Y:    bounds.MinY + rng.Float64()*h,
				VX:   rng.Float64() - 0.5,
				VY:   rng.Float64() - 0.5,
				Mass: mass * (0.5 + rng.Float64()),
			})
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, cfg.Layout)
	}
	return s, nil
}

// Populate adds the scene's layers, particles and bonds to w.
func (s *Scene) Populate(w *world.World) ([]*matter.Particle, error) {
	for _, l := range s.Layers {
		var parent *world.Layer
		if l.Parent != "" {
			p, ok := w.Layer(l.Parent)
			if !ok {
				return nil, fmt.Errorf("layer %s: unknown parent %s", l.Name, l.Parent)
			}
			parent = p
		}
		if _, err := w.AddLayer(l.Name, parent); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Name, err)
		}
	}

	out := make([]*matter.Particle, len(s.Bodies))
	for i, b := range s.Bodies {
		p := matter.New(b.X, b.Y, b.Mass)
		p.Velocity = matter.Vec2{X: b.VX, Y: b.VY}
		p.Temperature = b.Temperature
		if b.FreezingPoint != 0 || b.BoilingPoint != 0 {
			p.FreezingPoint, p.BoilingPoint = b.FreezingPoint, b.BoilingPoint
		}
		p.Static = b.Static
		p.Color = b.Color

		var layer *world.Layer
		if b.Layer != "" {
			l, ok := w.Layer(b.Layer)
			if !ok {
				return nil, fmt.Errorf("particle %d: unknown layer %s", i, b.Layer)
			}
			layer = l
		}
		if err := w.Spawn(p, layer); err != nil {
			return nil, fmt.Errorf("particle %d: %w", i, err)
		}
		out[i] = p
	}

	for _, bond := range s.Bonds {
		out[bond[0]].Bind(out[bond[1]])
	}
	return out, nil
}
