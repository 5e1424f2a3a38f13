//go:build opengl

package compute

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
)

// GLDevice runs programs as vertex shaders with transform feedback and
// rasterization disabled. The caller must make a GL 4.3 context current on
// the calling goroutine before NewGLDevice and keep it current for every
// later call.
type GLDevice struct {
	vendor string
}

func NewGLDevice() (*GLDevice, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return &GLDevice{vendor: gl.GoStr(gl.GetString(gl.RENDERER))}, nil
}

func (d *GLDevice) Name() string    { return "opengl (" + d.vendor + ")" }
func (d *GLDevice) Available() bool { return true }
func (d *GLDevice) Release()        {}

func (d *GLDevice) Compile(vertex, fragment string, outputs []string) (Shader, error) {
	vs, err := compileShader(vertex, gl.VERTEX_SHADER)
	if err != nil {
		return nil, err
	}
	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return nil, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)

	varyings, free := gl.Strs(withNul(outputs)...)
	gl.TransformFeedbackVaryings(program, int32(len(outputs)), varyings, gl.INTERLEAVED_ATTRIBS)
	free()
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return nil, fmt.Errorf("failed to link transform program: %v", log)
	}

	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return &glShader{program: program, vao: vao}, nil
}

func (d *GLDevice) NewBuffer() (DeviceBuffer, error) {
	b := &glBuffer{}
	gl.GenBuffers(1, &b.id)
	return b, nil
}

func (d *GLDevice) Dispatch(s Shader, mode Primitive, first, count int) error {
	sh, ok := s.(*glShader)
	if !ok {
		return fmt.Errorf("compute: shader %T does not belong to the opengl device", s)
	}
	if mode != Points {
		return fmt.Errorf("compute: unsupported primitive %d", mode)
	}
	if count == 0 {
		return nil
	}

	b := sh.binding
	fb := b.Feedback.(*glBuffer)
	offset := (b.FeedbackOffset + first*b.Outputs) * 4
	size := count * b.Outputs * 4

	gl.UseProgram(sh.program)
	gl.BindVertexArray(sh.vao)
	gl.BindBufferRange(gl.TRANSFORM_FEEDBACK_BUFFER, 0, fb.id, offset, size)

	gl.Enable(gl.RASTERIZER_DISCARD)
	gl.BeginTransformFeedback(gl.POINTS)
	gl.DrawArrays(gl.POINTS, int32(first), int32(count))
	gl.EndTransformFeedback()
	gl.Disable(gl.RASTERIZER_DISCARD)
	gl.Flush()

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("compute: transform pass failed: gl error 0x%x", code)
	}
	return nil
}

type glShader struct {
	program uint32
	vao     uint32
	binding Binding
}

func (s *glShader) Bind(b Binding) error {
	in, ok := b.Input.(*glBuffer)
	if !ok {
		return fmt.Errorf("compute: input buffer %T does not belong to the opengl device", b.Input)
	}
	if _, ok := b.Feedback.(*glBuffer); !ok {
		return fmt.Errorf("compute: feedback buffer %T does not belong to the opengl device", b.Feedback)
	}

	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, in.id)
	for i, name := range b.Attributes {
		loc := gl.GetAttribLocation(s.program, gl.Str(name+"\x00"))
		if loc < 0 {
			// The GLSL compiler drops inputs the shader does not read.
			continue
		}
		gl.EnableVertexAttribArray(uint32(loc))
		gl.VertexAttribPointerWithOffset(uint32(loc), 1, gl.FLOAT, false, int32(b.Stride*4), uintptr((b.InputOffset+i)*4))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	s.binding = b
	return nil
}

func (s *glShader) SetUniform(name string, v float32) error {
	gl.UseProgram(s.program)
	loc := gl.GetUniformLocation(s.program, gl.Str(name+"\x00"))
	if loc < 0 {
		return nil
	}
	gl.Uniform1f(loc, v)
	return nil
}

type glBuffer struct {
	id   uint32
	size int
}

func (b *glBuffer) Upload(data []float32) error {
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	b.size = len(data)
	return nil
}

func (b *glBuffer) ReadBack(dst []float32) error {
	if len(dst) > b.size {
		return fmt.Errorf("compute: read back %d floats from buffer of %d", len(dst), b.size)
	}
	if len(dst) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	gl.GetBufferSubData(gl.ARRAY_BUFFER, 0, len(dst)*4, gl.Ptr(dst))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func (b *glBuffer) Release() {
	gl.DeleteBuffers(1, &b.id)
}

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, nil
}

func withNul(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "\x00"
	}
	return out
}
