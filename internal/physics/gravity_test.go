package physics

import (
	"testing"

	"github.com/chewxy/math32"
)

func gravityRecord(id, calcID, x, y, m, ox, oy, om float32) []float32 {
	return []float32{id, calcID, x, y, m, ox, oy, om}
}

func TestGravityKernel(t *testing.T) {
	globals := []float32{1, 10, 1}

	tests := []struct {
		name     string
		in       []float32
		globals  []float32
		dvx, dvy float32
	}{
		{"pull toward heavy source", gravityRecord(1, 0, 5, 0, 1, 0, 0, 100), globals, -1, 0},
		{"weak pull below clamp", gravityRecord(1, 0, 0, 10, 1, 0, 0, 10), globals, 0, -0.1},
		{"force capped", gravityRecord(1, 0, 1, 0, 10, 0, 0, 1000), []float32{1, 5, 1}, -0.5, 0},
		{"coincident", gravityRecord(1, 0, 3, 3, 1, 3, 3, 50), globals, 0, 0},
		{"massless target", gravityRecord(1, 0, 5, 0, 0, 0, 0, 50), globals, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, 3)
			GravityKernel(tt.in, tt.globals, out)
			if out[OutID] != tt.in[InID] {
				t.Errorf("id = %v, want %v", out[OutID], tt.in[InID])
			}
			if math32.Abs(out[OutDVX]-tt.dvx) > 1e-6 || math32.Abs(out[OutDVY]-tt.dvy) > 1e-6 {
				t.Errorf("dv = (%v, %v), want (%v, %v)", out[OutDVX], out[OutDVY], tt.dvx, tt.dvy)
			}
		})
	}
}

func TestGravityNeverExceedsPixel(t *testing.T) {
	out := make([]float32, 3)
	for _, d := range []float32{0.001, 0.1, 1, 3} {
		GravityKernel(gravityRecord(0, 1, d, d, 1, 0, 0, 1e6), []float32{100, 1e9, 0.5}, out)
		if math32.Abs(out[OutDVX]) > 0.5 || math32.Abs(out[OutDVY]) > 0.5 {
			t.Fatalf("distance %v: dv (%v, %v) exceeds pixel", d, out[OutDVX], out[OutDVY])
		}
	}
}

func TestGravityProgramLayout(t *testing.T) {
	p := NewGravityProgram()
	if p.Name != GravityProgram || p.Kernel == nil {
		t.Fatal("program incomplete")
	}
	if p.Layout.BlockLength() != 8 || p.Layout.Stride() != 11 {
		t.Errorf("block %d stride %d", p.Layout.BlockLength(), p.Layout.Stride())
	}
	if p.Layout.Inputs[InOMass] != "omass" || p.Layout.Globals[GlobalPixelSize] != "pixelSize" || p.Layout.Outputs[OutDVY] != "dvy" {
		t.Error("offset constants do not match the layout")
	}
}
