// Package grid provides a bounded 2D spatial grid with O(1) cell lookup.
//
// Each cell keeps a compact occupant array and a cursor to its last occupied
// slot. Removal swaps the last occupant into the hole, so occupied slots are
// always 0..last. Backing arrays never shrink.
package grid

import (
	"fmt"
	"math"
)

// Placement is the grid's back-reference stored inside every body. It mirrors
// the body's current cell and its slot within that cell.
type Placement struct {
	X, Y   int
	Slot   int
	Placed bool
}

// At reports whether the body is placed in cell (x, y).
func (p *Placement) At(x, y int) bool { return p.Placed && p.X == x && p.Y == y }

// Body is anything the grid can hold.
type Body interface {
	Position() (x, y float64)
	Placement() *Placement
}

// Bounds is an inclusive world-space rectangle.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Cell holds the bodies currently inside one grid square.
type Cell struct {
	occupants []Body
	last      int
}

// Occupants returns the occupied prefix of the cell. The slice is a view and
// is invalidated by the next mutation of the cell.
func (c *Cell) Occupants() []Body { return c.occupants[:c.last+1] }

// Last is the index of the last occupied slot, -1 when empty.
func (c *Cell) Last() int { return c.last }

func (c *Cell) empty() bool { return c.last < 0 }

func (c *Cell) push(b Body) int {
	c.last++
	if c.last < len(c.occupants) {
		c.occupants[c.last] = b
	} else {
		c.occupants = append(c.occupants, b)
	}
	return c.last
}

// remove swaps the last occupant into slot and clears the tail. The moved
// body's placement is updated to its new slot.
func (c *Cell) remove(slot int) {
	if slot != c.last {
		moved := c.occupants[c.last]
		c.occupants[slot] = moved
		moved.Placement().Slot = slot
	}
	c.occupants[c.last] = nil
	c.last--
}

// Move describes what Update did with a body.
type Move uint8

const (
	Unchanged Move = iota
	Moved
	Placed
	Outside
)

func (m Move) String() string {
	switch m {
	case Unchanged:
		return "unchanged"
	case Moved:
		return "moved"
	case Placed:
		return "placed"
	case Outside:
		return "outside"
	}
	return fmt.Sprintf("move(%d)", uint8(m))
}

// Grid is a bounded array-of-arrays of cells. Mutated only by the tick
// goroutine.
type Grid struct {
	bounds   Bounds
	cellSize float64
	inv      float64

	// Cell coordinates of the bounds' min corner; (0,0) world maps into the grid.
	minX, minY int
	cols, rows int
	cells      [][]Cell
	count      int

	// OnOutside is raised when a body leaves the configured bounds. The body
	// has already been removed from the grid.
	OnOutside func(Body)
}

func New(bounds Bounds, cellSize float64) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("cell size %v: %w", cellSize, ErrCellSize)
	}
	if bounds.MinX > 0 || bounds.MaxX < 0 || bounds.MinY > 0 || bounds.MaxY < 0 ||
		bounds.MinX >= bounds.MaxX || bounds.MinY >= bounds.MaxY {
		return nil, fmt.Errorf("bounds %+v: %w", bounds, ErrBounds)
	}

	g := &Grid{
		bounds:   bounds,
		cellSize: cellSize,
		inv:      1 / cellSize,
	}
	g.minX = int(math.Floor(bounds.MinX * g.inv))
	g.minY = int(math.Floor(bounds.MinY * g.inv))
	g.cols = int(math.Floor(bounds.MaxX*g.inv)) - g.minX + 1
	g.rows = int(math.Floor(bounds.MaxY*g.inv)) - g.minY + 1

	g.cells = make([][]Cell, g.cols)
	for x := range g.cells {
		col := make([]Cell, g.rows)
		for y := range col {
			col[y].last = -1
		}
		g.cells[x] = col
	}
	return g, nil
}

func (g *Grid) Bounds() Bounds        { return g.bounds }
func (g *Grid) CellSize() float64     { return g.cellSize }
func (g *Grid) Dims() (cols, rows int) { return g.cols, g.rows }

// Len is the number of placed bodies.
func (g *Grid) Len() int { return g.count }

// CellOf maps a world position to cell coordinates. ok is false outside bounds.
func (g *Grid) CellOf(x, y float64) (cx, cy int, ok bool) {
	if !g.bounds.Contains(x, y) {
		return 0, 0, false
	}
	return int(math.Floor(x * g.inv)), int(math.Floor(y * g.inv)), true
}

// Cell returns the cell at cell coordinates, nil outside the grid.
func (g *Grid) Cell(cx, cy int) *Cell {
	ix, iy := cx-g.minX, cy-g.minY
	if ix < 0 || ix >= g.cols || iy < 0 || iy >= g.rows {
		return nil
	}
	return &g.cells[ix][iy]
}

// At returns the occupants of a cell, nil when empty or outside.
func (g *Grid) At(cx, cy int) []Body {
	c := g.Cell(cx, cy)
	if c == nil || c.empty() {
		return nil
	}
	return c.Occupants()
}

// Occupied reports whether the cell holds a body other than self.
func (g *Grid) Occupied(cx, cy int, self Body) bool {
	return g.firstOther(cx, cy, self) != nil
}

func (g *Grid) firstOther(cx, cy int, self Body) Body {
	for _, b := range g.At(cx, cy) {
		if b != self {
			return b
		}
	}
	return nil
}

// Update re-evaluates b's cell after its position changed. Bodies that leave
// the bounds are removed and OnOutside is raised.
func (g *Grid) Update(b Body) Move {
	x, y := b.Position()
	cx, cy, ok := g.CellOf(x, y)
	pl := b.Placement()

	if !ok {
		if pl.Placed {
			g.Remove(b)
		}
		if g.OnOutside != nil {
			g.OnOutside(b)
		}
		return Outside
	}

	if pl.Placed {
		if pl.X == cx && pl.Y == cy {
			return Unchanged
		}
		g.Remove(b)
		g.insert(b, cx, cy)
		return Moved
	}

	g.insert(b, cx, cy)
	return Placed
}

func (g *Grid) insert(b Body, cx, cy int) {
	c := g.Cell(cx, cy)
	pl := b.Placement()
	pl.X, pl.Y = cx, cy
	pl.Slot = c.push(b)
	pl.Placed = true
	g.count++
}

// Remove takes b out of its current cell. No-op for unplaced bodies.
func (g *Grid) Remove(b Body) {
	pl := b.Placement()
	if !pl.Placed {
		return
	}
	if c := g.Cell(pl.X, pl.Y); c != nil {
		c.remove(pl.Slot)
	}
	*pl = Placement{}
	g.count--
}

// Clear empties every cell and unplaces the bodies it held.
func (g *Grid) Clear() {
	for x := range g.cells {
		for y := range g.cells[x] {
			c := &g.cells[x][y]
			for i := 0; i <= c.last; i++ {
				*c.occupants[i].Placement() = Placement{}
				c.occupants[i] = nil
			}
			c.last = -1
		}
	}
	g.count = 0
}
