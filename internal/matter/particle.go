// Package matter defines the particle, the smallest unit of simulated
// physical state.
package matter

import (
	"math"

	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/scene"
)

type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2          { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2          { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2     { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Len() float64             { return math.Hypot(v.X, v.Y) }
func (v Vec2) IsValid() bool            { return !math.IsNaN(v.X+v.Y) && !math.IsInf(v.X+v.Y, 0) }
func (v Vec2) Clamp(limit float64) Vec2 { return Vec2{clamp(v.X, limit), clamp(v.Y, limit)} }

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Kinematics is the per-frame state that is snapshotted before every update.
type Kinematics struct {
	Position    Vec2
	Velocity    Vec2
	Temperature float64
}

type Phase uint8

const (
	Solid Phase = iota
	Liquid
	Gas
)

func (p Phase) String() string {
	switch p {
	case Solid:
		return "solid"
	case Liquid:
		return "liquid"
	default:
		return "gas"
	}
}

// Particle is a point mass.
type Particle struct {
	// ID is the particle's slot in the world registry, -1 when unregistered.
	ID int
	// Node is the particle's handle in the scene tree.
	Node scene.Handle

	Kinematics
	Prev Kinematics

	Mass          float64
	Density       float64
	Color         uint32
	FreezingPoint float64
	BoilingPoint  float64
	Viscosity     float64
	Magnetism     float64

	// Static particles attract others but are never integrated.
	Static bool

	bindings  []*Particle
	placement grid.Placement
	disposed  bool
}

// New returns an unregistered particle at (x, y). Freezing and boiling points
// default to a range that keeps the particle liquid at zero temperature.
func New(x, y, mass float64) *Particle {
	return &Particle{
		ID:            -1,
		Node:          scene.Nil,
		Kinematics:    Kinematics{Position: Vec2{x, y}},
		Mass:          mass,
		Density:       1,
		Color:         0xffffffff,
		FreezingPoint: math.Inf(-1),
		BoilingPoint:  math.Inf(1),
	}
}

func (p *Particle) Position() (float64, float64) { return p.Kinematics.Position.X, p.Kinematics.Position.Y }
func (p *Particle) Placement() *grid.Placement   { return &p.placement }

// Snapshot copies the current kinematics into Prev.
func (p *Particle) Snapshot() { p.Prev = p.Kinematics }

// Revert restores the position recorded by the last Snapshot.
func (p *Particle) Revert() { p.Kinematics.Position = p.Prev.Position }

func (p *Particle) Phase() Phase {
	switch {
	case p.Temperature <= p.FreezingPoint:
		return Solid
	case p.Temperature >= p.BoilingPoint:
		return Gas
	default:
		return Liquid
	}
}

// Frozen particles keep their position; they still exert gravity.
func (p *Particle) Frozen() bool { return p.Static || p.Phase() == Solid }

func (p *Particle) Momentum() Vec2 { return p.Velocity.Scale(p.Mass) }

func (p *Particle) KineticEnergy() float64 {
	v := p.Velocity
	return 0.5 * p.Mass * (v.X*v.X + v.Y*v.Y)
}

// Bind links p and o symmetrically. Bound particles do not attract each other
// and share an averaged velocity.
func (p *Particle) Bind(o *Particle) {
	if o == p || p.BoundTo(o) {
		return
	}
	p.bindings = append(p.bindings, o)
	o.bindings = append(o.bindings, p)
}

func (p *Particle) Unbind(o *Particle) {
	p.bindings = without(p.bindings, o)
	o.bindings = without(o.bindings, p)
}

func (p *Particle) BoundTo(o *Particle) bool {
	for _, b := range p.bindings {
		if b == o {
			return true
		}
	}
	return false
}

func (p *Particle) Bindings() []*Particle { return p.bindings }

// Dispose marks the particle dead and drops its bindings.
func (p *Particle) Dispose() {
	for len(p.bindings) > 0 {
		p.Unbind(p.bindings[len(p.bindings)-1])
	}
	p.disposed = true
}

func (p *Particle) Disposed() bool { return p.disposed }

func without(list []*Particle, o *Particle) []*Particle {
	for i, b := range list {
		if b == o {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil
			return list[:last]
		}
	}
	return list
}
