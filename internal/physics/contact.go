package physics

import (
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
)

// Exchange returns the velocities after a 1D elastic collision.
func Exchange(m1, v1, m2, v2 float64) (float64, float64) {
	total := m1 + m2
	if total == 0 {
		return v1, v2
	}
	return ((m1-m2)*v1 + 2*m2*v2) / total, ((m2-m1)*v2 + 2*m1*v1) / total
}

// Respond resolves a grid contact for p. Each blocking neighbour exchanges
// momentum with p along its axis; a diagonal contact exchanges on both.
// Frozen neighbours act as immovable walls.
func Respond(p *matter.Particle, c grid.Contact) {
	if c.Has(grid.ContactDiagonal) {
		if o := particleOf(c.Diagonal); o != nil {
			collideAxis(p, o, true)
			collideAxis(p, o, false)
		}
		return
	}
	if c.Has(grid.ContactHorizontal) {
		if o := particleOf(c.Horizontal); o != nil {
			collideAxis(p, o, true)
		}
	}
	if c.Has(grid.ContactVertical) {
		if o := particleOf(c.Vertical); o != nil {
			collideAxis(p, o, false)
		}
	}
}

func collideAxis(p, o *matter.Particle, horizontal bool) {
	pv, ov := &p.Velocity.Y, &o.Velocity.Y
	if horizontal {
		pv, ov = &p.Velocity.X, &o.Velocity.X
	}
	if p.Frozen() {
		return
	}
	if o.Frozen() {
		*pv = -*pv
		return
	}
	*pv, *ov = Exchange(p.Mass, *pv, o.Mass, *ov)
}

func particleOf(b grid.Body) *matter.Particle {
	p, _ := b.(*matter.Particle)
	return p
}

// Step returns the cell offset p moves toward this tick.
func Step(v matter.Vec2) (dx, dy int) {
	return sign(v.X), sign(v.Y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
