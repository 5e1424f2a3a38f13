package metrics

import "math"

// KineticEnergy is the total kinetic energy of the last observed tick.
type KineticEnergy struct {
	name  string
	value float64
	peak  float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(s Sample) {
	total := 0.0
	for _, p := range s.Particles {
		total += p.KineticEnergy()
	}
	e.value = total
	if total > e.peak {
		e.peak = total
	}
}

func (e *KineticEnergy) Value() float64 { return e.value }

// Peak is the highest total seen since the last Reset.
func (e *KineticEnergy) Peak() float64 { return e.peak }

func (e *KineticEnergy) Reset() {
	e.value = 0
	e.peak = 0
}

// Momentum is the magnitude of the total linear momentum.
type Momentum struct {
	name  string
	value float64
}

func NewMomentum() *Momentum {
	return &Momentum{name: "momentum"}
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) Observe(s Sample) {
	var px, py float64
	for _, p := range s.Particles {
		mv := p.Momentum()
		px += mv.X
		py += mv.Y
	}
	m.value = math.Hypot(px, py)
}

func (m *Momentum) Value() float64 { return m.value }
func (m *Momentum) Reset()         { m.value = 0 }
