package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/particlesim/internal/matter"
)

type ParticleState struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Mass   float64 `json:"mass"`
	Phase  string  `json:"phase"`
	Color  uint32  `json:"color"`
	Static bool    `json:"static,omitempty"`
}

type ExportData struct {
	Tick      uint64             `json:"tick"`
	Particles []ParticleState    `json:"particles"`
	Metrics   map[string]float64 `json:"metrics"`
}

func NewExport(tick uint64, ps []*matter.Particle, metrics map[string]float64) ExportData {
	data := ExportData{
		Tick:      tick,
		Particles: make([]ParticleState, 0, len(ps)),
		Metrics:   metrics,
	}
	for _, p := range ps {
		if p.Disposed() {
			continue
		}
		data.Particles = append(data.Particles, ParticleState{
			ID:     p.ID,
			X:      p.Kinematics.Position.X,
			Y:      p.Kinematics.Position.Y,
			VX:     p.Velocity.X,
			VY:     p.Velocity.Y,
			Mass:   p.Mass,
			Phase:  p.Phase().String(),
			Color:  p.Color,
			Static: p.Static,
		})
	}
	return data
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportJSONStdout writes the export to standard output.
func ExportJSONStdout(data ExportData) error {
	return WriteJSON(os.Stdout, data)
}
