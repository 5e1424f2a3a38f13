package metrics

import (
	"time"

	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
)

// Sample is the world state handed to metrics after each reconciled tick.
type Sample struct {
	Tick      uint64
	Particles []*matter.Particle
	Grid      *grid.Grid
	Batch     time.Duration
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metrics recorded by the CLI for every run.
func Standard() []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewMomentum(),
		NewOccupancy(),
		NewBatchTime(),
	}
}

// Snapshot maps metric names to their current values.
func Snapshot(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Occupancy is the mean number of bodies per occupied cell. 1 means no two
// bodies share a cell.
type Occupancy struct {
	name  string
	value float64
}

func NewOccupancy() *Occupancy { return &Occupancy{name: "cell_load"} }

func (o *Occupancy) Name() string { return o.name }

func (o *Occupancy) Observe(s Sample) {
	if s.Grid == nil || s.Grid.Len() == 0 {
		o.value = 0
		return
	}
	cells := make(map[[2]int]struct{}, s.Grid.Len())
	for _, p := range s.Particles {
		pl := p.Placement()
		if pl.Placed {
			cells[[2]int{pl.X, pl.Y}] = struct{}{}
		}
	}
	o.value = float64(s.Grid.Len()) / float64(len(cells))
}

func (o *Occupancy) Value() float64 { return o.value }
func (o *Occupancy) Reset()         { o.value = 0 }

// BatchTime is the mean wall time of a gravity batch in milliseconds.
type BatchTime struct {
	name    string
	total   time.Duration
	samples int
}

func NewBatchTime() *BatchTime { return &BatchTime{name: "batch_ms"} }

func (b *BatchTime) Name() string { return b.name }

func (b *BatchTime) Observe(s Sample) {
	b.total += s.Batch
	b.samples++
}

func (b *BatchTime) Value() float64 {
	if b.samples == 0 {
		return 0
	}
	return float64(b.total.Microseconds()) / 1000 / float64(b.samples)
}

func (b *BatchTime) Reset() {
	b.total = 0
	b.samples = 0
}
