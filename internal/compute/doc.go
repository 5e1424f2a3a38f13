// Package compute runs batch pipelines through one of two back-ends.
//
// A GPU device runs each registered program as a point-based transform
// pass: every pipeline's records are concatenated into one upload buffer,
// globals are bound as uniforms and the outputs are read back from a single
// interleaved feedback buffer. When no device is available the executor
// hands each non-empty buffer to its own worker goroutine by ownership
// transfer and reassembles the batch as replies arrive.
//
//	exec, err := compute.NewExecutor(compute.Options{Mode: compute.ModeAuto})
//	exec.Register(physics.NewGravityProgram())
//	exec.OnComplete(func(err error) { ... })
//	exec.Execute(pipe)
//	exec.Wait(ctx)
//
// Build with the opengl tag to enable the transform feedback device:
//
//	go build -tags opengl ./cmd/particlesim
package compute
