package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
)

func particle(x, y, m, vx, vy float64) *matter.Particle {
	p := matter.New(x, y, m)
	p.Velocity = matter.Vec2{X: vx, Y: vy}
	return p
}

func TestKineticEnergy(t *testing.T) {
	m := NewKineticEnergy()
	m.Observe(Sample{Particles: []*matter.Particle{
		particle(0, 0, 2, 1, 0),
		particle(0, 0, 1, 0, 2),
	}})
	if math.Abs(m.Value()-3) > 1e-9 {
		t.Errorf("expected energy 3, got %f", m.Value())
	}

	m.Observe(Sample{Particles: []*matter.Particle{particle(0, 0, 1, 1, 0)}})
	if m.Value() != 0.5 || m.Peak() != 3 {
		t.Errorf("value %f peak %f", m.Value(), m.Peak())
	}

	m.Reset()
	if m.Value() != 0 || m.Peak() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestMomentumCancels(t *testing.T) {
	m := NewMomentum()
	m.Observe(Sample{Particles: []*matter.Particle{
		particle(0, 0, 1, 1, 0),
		particle(0, 0, 1, -1, 0),
	}})
	if m.Value() != 0 {
		t.Errorf("opposite momenta should cancel, got %f", m.Value())
	}
}

func TestOccupancy(t *testing.T) {
	g, err := grid.New(grid.Bounds{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ps := []*matter.Particle{
		particle(0.5, 0.5, 1, 0, 0),
		particle(0.6, 0.6, 1, 0, 0),
		particle(2.5, 2.5, 1, 0, 0),
	}
	for _, p := range ps {
		g.Update(p)
	}

	o := NewOccupancy()
	o.Observe(Sample{Particles: ps, Grid: g})
	if math.Abs(o.Value()-1.5) > 1e-9 {
		t.Errorf("expected 1.5 bodies per cell, got %f", o.Value())
	}
}

func TestBatchTimeAndSnapshot(t *testing.T) {
	ms := Standard()
	for _, m := range ms {
		m.Observe(Sample{Batch: 2 * time.Millisecond})
		m.Observe(Sample{Batch: 4 * time.Millisecond})
	}
	snap := Snapshot(ms)
	if snap["batch_ms"] != 3 {
		t.Errorf("batch_ms = %f", snap["batch_ms"])
	}
	if len(snap) != 4 {
		t.Errorf("expected 4 metrics, got %d", len(snap))
	}
}
