package compute

import (
	"fmt"
)

// Primitive is the draw mode of a transform pass.
type Primitive int

const (
	Points Primitive = iota
)

// Device is the GPU collaborator: it compiles programs, owns buffers and
// dispatches transform passes.
type Device interface {
	Name() string
	Available() bool
	Compile(vertex, fragment string, outputs []string) (Shader, error)
	NewBuffer() (DeviceBuffer, error)
	Dispatch(s Shader, mode Primitive, first, count int) error
	Release()
}

// Shader is a compiled program on a device.
type Shader interface {
	Bind(b Binding) error
	SetUniform(name string, v float32) error
}

// DeviceBuffer is device memory holding float32 data.
type DeviceBuffer interface {
	Upload(data []float32) error
	ReadBack(dst []float32) error
	Release()
}

// Binding attaches a shared input buffer and a feedback buffer to a shader.
// Offsets and strides are in floats.
type Binding struct {
	Input       DeviceBuffer
	InputOffset int
	Stride      int
	Attributes  []string

	Feedback       DeviceBuffer
	FeedbackOffset int
	Outputs        int
}

// Emulator is implemented by devices that execute programs in software
// rather than from shader source.
type Emulator interface {
	Emulate(p *Program)
}

// SelectDevice returns the OpenGL device when one can be initialised,
// otherwise nil.
func SelectDevice() Device {
	gl, err := NewGLDevice()
	if err != nil || !gl.Available() {
		return nil
	}
	return gl
}

// SoftwareDevice implements Device on the CPU. It runs each program's
// kernel over the bound buffers, following the same upload, dispatch and
// read back sequence as a real device.
type SoftwareDevice struct {
	programs map[string]*Program
}

func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{programs: make(map[string]*Program)}
}

func (d *SoftwareDevice) Name() string    { return "software" }
func (d *SoftwareDevice) Available() bool { return true }
func (d *SoftwareDevice) Release()        {}

func (d *SoftwareDevice) Emulate(p *Program) {
	d.programs[p.VertexSource] = p
}

func (d *SoftwareDevice) Compile(vertex, fragment string, outputs []string) (Shader, error) {
	p, ok := d.programs[vertex]
	if !ok {
		return nil, fmt.Errorf("%w: no emulated program for vertex source", ErrProgram)
	}
	if len(outputs) != len(p.Layout.Outputs) {
		return nil, fmt.Errorf("%w: %s expects %d outputs, got %d", ErrProgram, p.Name, len(p.Layout.Outputs), len(outputs))
	}
	return &softwareShader{program: p, uniforms: make(map[string]float32)}, nil
}

func (d *SoftwareDevice) NewBuffer() (DeviceBuffer, error) {
	return &softwareBuffer{}, nil
}

func (d *SoftwareDevice) Dispatch(s Shader, mode Primitive, first, count int) error {
	sh, ok := s.(*softwareShader)
	if !ok {
		return fmt.Errorf("compute: shader %T does not belong to the software device", s)
	}
	if mode != Points {
		return fmt.Errorf("compute: unsupported primitive %d", mode)
	}
	b := sh.binding
	if b.Input == nil || b.Feedback == nil {
		return fmt.Errorf("compute: %s dispatched without bound buffers", sh.program.Name)
	}

	in := b.Input.(*softwareBuffer)
	fb := b.Feedback.(*softwareBuffer)
	block := sh.program.Layout.BlockLength()

	globals := make([]float32, len(sh.program.Layout.Globals))
	for i, name := range sh.program.Layout.Globals {
		globals[i] = sh.uniforms[name]
	}

	need := b.FeedbackOffset + (first+count)*b.Outputs
	if len(fb.data) < need {
		fb.data = append(fb.data, make([]float32, need-len(fb.data))...)
	}
	for i := first; i < first+count; i++ {
		off := b.InputOffset + i*b.Stride
		if off+block > len(in.data) {
			return fmt.Errorf("compute: %s record %d beyond uploaded data", sh.program.Name, i)
		}
		out := fb.data[b.FeedbackOffset+i*b.Outputs : b.FeedbackOffset+(i+1)*b.Outputs]
		sh.program.Kernel(in.data[off:off+block], globals, out)
	}
	return nil
}

type softwareShader struct {
	program  *Program
	uniforms map[string]float32
	binding  Binding
}

func (s *softwareShader) Bind(b Binding) error {
	s.binding = b
	return nil
}

func (s *softwareShader) SetUniform(name string, v float32) error {
	s.uniforms[name] = v
	return nil
}

type softwareBuffer struct {
	data []float32
}

func (b *softwareBuffer) Upload(data []float32) error {
	b.data = append(b.data[:0], data...)
	return nil
}

func (b *softwareBuffer) ReadBack(dst []float32) error {
	if len(dst) > len(b.data) {
		return fmt.Errorf("compute: read back %d floats from buffer of %d", len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

func (b *softwareBuffer) Release() { b.data = nil }
