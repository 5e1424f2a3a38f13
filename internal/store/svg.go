package store

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/san-kum/particlesim/internal/grid"
)

// WriteSVG draws the exported particles inside bounds, scale pixels per world
// unit. Static particles are drawn as squares.
func WriteSVG(w io.Writer, data ExportData, bounds grid.Bounds, scale float64) error {
	if scale <= 0 {
		scale = 4
	}
	width := (bounds.MaxX - bounds.MinX) * scale
	height := (bounds.MaxY - bounds.MinY) * scale
	r := scale * 0.4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g>
`, width, height, width, height)

	for _, p := range data.Particles {
		if !bounds.Contains(p.X, p.Y) {
			continue
		}
		x := (p.X - bounds.MinX) * scale
		y := (bounds.MaxY - p.Y) * scale
		fill, opacity := rgba(p.Color)
		if p.Static {
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" fill-opacity="%.2f"/>
`, x-r, y-r, 2*r, 2*r, fill, opacity)
			continue
		}
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="%.2f"/>
`, x, y, r, fill, opacity)
	}

	sb.WriteString("</g>\n")
	fmt.Fprintf(&sb, `<text x="4" y="14" fill="#888899" font-family="monospace" font-size="12">tick %d</text>
`, data.Tick)
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func ExportSVG(path string, data ExportData, bounds grid.Bounds, scale float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteSVG(file, data, bounds, scale)
}

// rgba splits a packed 0xRRGGBBAA colour. A zero colour renders white.
func rgba(c uint32) (string, float64) {
	if c == 0 {
		return "#ffffff", 1
	}
	return fmt.Sprintf("#%06x", c>>8), float64(c&0xff) / 255
}
