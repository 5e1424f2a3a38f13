package world

import (
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/matter"
	"github.com/san-kum/particlesim/internal/scene"
)

// Layer groups particles. Its composite values are settled each tick after
// all of its descendants have been visited.
type Layer struct {
	Name string
	Node scene.Handle

	// Mass is the total mass of every particle below the layer.
	Mass float64
	// Count is the number of particles below the layer.
	Count int
	// Center is the centre of mass, valid when Mass > 0.
	Center matter.Vec2

	world   *World
	pending aggregate
}

type aggregate struct {
	mass   float64
	count  int
	moment matter.Vec2
}

func (a *aggregate) add(o aggregate) {
	a.mass += o.mass
	a.count += o.count
	a.moment = a.moment.Add(o.moment)
}

func (l *Layer) Scope() scene.Scope { return scene.ScopeLayer }
func (l *Layer) IsContainer() bool  { return true }

func (l *Layer) Startup() error {
	l.Mass, l.Count, l.Center = 0, 0, matter.Vec2{}
	l.pending = aggregate{}
	l.world.log.Debug("layer started", zap.String("layer", l.Name))
	return nil
}

func (l *Layer) settle() aggregate {
	a := l.pending
	l.Mass, l.Count = a.mass, a.count
	if a.mass > 0 {
		l.Center = a.moment.Scale(1 / a.mass)
	} else {
		l.Center = matter.Vec2{}
	}
	l.pending = aggregate{}
	return a
}
