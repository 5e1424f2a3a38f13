package viz

import (
	"strings"

	"github.com/san-kum/particlesim/internal/grid"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
const blank = 0x2800

var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a character grid of braille cells. Each cell holds 2x4 dots, so
// the drawable area is (Width*2) x (Height*4) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in dots.
func (c *Canvas) Dots() (int, int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) cell(x, y int) (row, col int, bit rune, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, 0, false
	}
	col, row = x/2, y/4
	if col >= c.Width || row >= c.Height {
		return 0, 0, 0, false
	}
	return row, col, rune(pixelMap[y%4][x%2]), true
}

// Set turns on the dot at (x, y). Out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if row, col, bit, ok := c.cell(x, y); ok {
		c.Grid[row][col] |= bit
	}
}

func (c *Canvas) Unset(x, y int) {
	if row, col, bit, ok := c.cell(x, y); ok {
		c.Grid[row][col] &^= bit
	}
}

// IsSet reports whether the dot at (x, y) is on.
func (c *Canvas) IsSet(x, y int) bool {
	row, col, bit, ok := c.cell(x, y)
	return ok && c.Grid[row][col]&bit != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// Border draws a one dot frame around the drawable area.
func (c *Canvas) Border() {
	w, h := c.Dots()
	c.DrawLine(0, 0, w-1, 0)
	c.DrawLine(w-1, 0, w-1, h-1)
	c.DrawLine(w-1, h-1, 0, h-1)
	c.DrawLine(0, h-1, 0, 0)
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Projection maps world coordinates onto canvas dots. World y grows upward,
// dot y grows downward.
type Projection struct {
	Bounds grid.Bounds
	W, H   int
}

func NewProjection(b grid.Bounds, c *Canvas) Projection {
	w, h := c.Dots()
	return Projection{Bounds: b, W: w, H: h}
}

// Project returns the dot for (x, y). ok is false when the point lies outside
// the bounds.
func (p Projection) Project(x, y float64) (int, int, bool) {
	if !p.Bounds.Contains(x, y) {
		return 0, 0, false
	}
	sx := (x - p.Bounds.MinX) / (p.Bounds.MaxX - p.Bounds.MinX)
	sy := (p.Bounds.MaxY - y) / (p.Bounds.MaxY - p.Bounds.MinY)
	dx := min(int(sx*float64(p.W)), p.W-1)
	dy := min(int(sy*float64(p.H)), p.H-1)
	return dx, dy, true
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
