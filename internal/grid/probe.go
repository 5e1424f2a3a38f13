package grid

// ContactKind is a bit set of the neighbour cells found occupied.
type ContactKind uint8

const (
	ContactHorizontal ContactKind = 1 << iota
	ContactVertical
	ContactDiagonal

	ContactNone ContactKind = 0
)

// Contact is the outcome of a Probe. A diagonal contact is exclusive: it is
// only reported when neither straight neighbour is occupied.
type Contact struct {
	Kind       ContactKind
	Horizontal Body
	Vertical   Body
	Diagonal   Body
}

func (c Contact) Has(k ContactKind) bool { return c.Kind&k != 0 }

// Probe checks the cells b is about to enter when travelling in direction
// (dx, dy), each in {-1, 0, 1}. The horizontal and vertical neighbours are
// checked first; the diagonal neighbour only when both are empty. This trades
// exhaustive correctness for a near-constant number of cell reads.
func (g *Grid) Probe(b Body, dx, dy int) Contact {
	var c Contact
	pl := b.Placement()
	if !pl.Placed || (dx == 0 && dy == 0) {
		return c
	}

	if dx != 0 {
		if o := g.firstOther(pl.X+dx, pl.Y, b); o != nil {
			c.Kind |= ContactHorizontal
			c.Horizontal = o
		}
	}
	if dy != 0 {
		if o := g.firstOther(pl.X, pl.Y+dy, b); o != nil {
			c.Kind |= ContactVertical
			c.Vertical = o
		}
	}
	if c.Kind == ContactNone && dx != 0 && dy != 0 {
		if o := g.firstOther(pl.X+dx, pl.Y+dy, b); o != nil {
			c.Kind = ContactDiagonal
			c.Diagonal = o
		}
	}
	return c
}

// Neighbors calls fn for every body in the 3x3 block around (cx, cy) until fn
// returns false.
func (g *Grid) Neighbors(cx, cy int, fn func(Body) bool) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, b := range g.At(cx+dx, cy+dy) {
				if !fn(b) {
					return
				}
			}
		}
	}
}
