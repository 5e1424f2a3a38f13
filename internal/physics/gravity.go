package physics

import (
	"github.com/chewxy/math32"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/pipeline"
)

// GravityProgram is the name pipelines use to target the gravity program.
const GravityProgram = "gravity"

// Record offsets of the gravity layout.
const (
	InID = iota
	InCalcID
	InX
	InY
	InMass
	InOX
	InOY
	InOMass
)

// Output offsets relative to the start of the output block.
const (
	OutID = iota
	OutDVX
	OutDVY
)

// Global offsets.
const (
	GlobalG = iota
	GlobalMaxForce
	GlobalPixelSize
)

// GravityLayout pairs a target particle (id) with one attracting source
// (calcID). Every record is self-contained so any buffer can be computed in
// isolation.
var GravityLayout = pipeline.Layout{
	Inputs:  []string{"id", "calcID", "x", "y", "mass", "ox", "oy", "omass"},
	Globals: []string{"G", "maxForce", "pixelSize"},
	Outputs: []string{"outID", "dvx", "dvy"},
}

// NewGravityProgram returns the gravity program with its GLSL transform
// shader and the equivalent float32 kernel.
func NewGravityProgram() *compute.Program {
	return &compute.Program{
		Name:           GravityProgram,
		Layout:         GravityLayout,
		VertexSource:   gravityVertex,
		FragmentSource: discardFragment,
		Kernel:         GravityKernel,
	}
}

// GravityKernel computes the velocity change of the target caused by the
// source: F = G*m*M/r^2 capped at maxForce, dv = F/m along the unit vector
// toward the source, clamped to one pixel per axis.
func GravityKernel(in, globals, out []float32) {
	out[OutID] = in[InID]
	out[OutDVX] = 0
	out[OutDVY] = 0

	m := in[InMass]
	dx := in[InOX] - in[InX]
	dy := in[InOY] - in[InY]
	r2 := dx*dx + dy*dy
	if r2 == 0 || m <= 0 {
		return
	}

	f := globals[GlobalG] * m * in[InOMass] / r2
	f = math32.Min(f, globals[GlobalMaxForce])
	dv := f / m
	r := math32.Sqrt(r2)

	limit := globals[GlobalPixelSize]
	out[OutDVX] = clamp32(dv*dx/r, limit)
	out[OutDVY] = clamp32(dv*dy/r, limit)
}

func clamp32(v, limit float32) float32 {
	return math32.Max(-limit, math32.Min(v, limit))
}

const gravityVertex = `#version 330 core
in float id;
in float calcID;
in float x;
in float y;
in float mass;
in float ox;
in float oy;
in float omass;

uniform float G;
uniform float maxForce;
uniform float pixelSize;

out float outID;
out float dvx;
out float dvy;

void main() {
	outID = id;
	dvx = 0.0;
	dvy = 0.0;

	vec2 d = vec2(ox - x, oy - y);
	float r2 = dot(d, d);
	if (r2 > 0.0 && mass > 0.0) {
		float f = min(G * mass * omass / r2, maxForce);
		vec2 dv = clamp((f / mass) * d / sqrt(r2), -pixelSize, pixelSize);
		dvx = dv.x;
		dvy = dv.y;
	}
	gl_Position = vec4(0.0);
}
`

const discardFragment = `#version 330 core
out vec4 color;
void main() {
	color = vec4(0.0);
}
`
