// Package physics holds the per-tick particle physics.
//
// The gravity program computes one velocity change per (target, source)
// pair record. It ships as a GLSL vertex shader for transform feedback and
// as an equivalent Go kernel for the worker pool:
//
//	prog := physics.NewGravityProgram()
//	exec.Register(prog)
//
// Contact response resolves a blocked grid move by exchanging momentum along
// the blocked axes, with frozen neighbours acting as walls.
package physics
