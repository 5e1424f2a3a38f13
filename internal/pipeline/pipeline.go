// Package pipeline accumulates fixed-stride float32 records for one math
// program. Records are written into chained buffers of fixed capacity; each
// record holds the program's inputs followed by space for its outputs.
package pipeline

import (
	"fmt"
)

// Layout declares the fields of a record.
type Layout struct {
	// Inputs vary per record.
	Inputs []string
	// Globals hold one value per run.
	Globals []string
	// Outputs are written by the program after the inputs.
	Outputs []string
}

// BlockLength is the number of input floats per record.
func (l Layout) BlockLength() int { return len(l.Inputs) }

// Stride is the total floats per record, inputs then outputs.
func (l Layout) Stride() int { return len(l.Inputs) + len(l.Outputs) }

func (l Layout) validate() error {
	if len(l.Inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrLayout)
	}
	seen := make(map[string]bool)
	for _, group := range [][]string{l.Inputs, l.Globals, l.Outputs} {
		for _, name := range group {
			if name == "" || seen[name] {
				return fmt.Errorf("%w: duplicate or empty field %q", ErrLayout, name)
			}
			seen[name] = true
		}
	}
	return nil
}

// Buffer is one chained block of records.
type Buffer struct {
	Data []float32
	// Len is the number of records written.
	Len int
}

// Records returns the written portion of the buffer.
func (b *Buffer) Records(stride int) []float32 { return b.Data[:b.Len*stride] }

// Pipeline is a typed batch of records awaiting one program's execution.
type Pipeline struct {
	program  string
	layout   Layout
	capacity int
	stride   int

	buffers []*Buffer
	current int
	records int

	globals []float32
	fields  map[string]int
	gfields map[string]int
}

// New creates a pipeline for the named program with capacity records per
// buffer.
func New(program string, layout Layout, capacity int) (*Pipeline, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrCapacity)
	}

	p := &Pipeline{
		program:  program,
		layout:   layout,
		capacity: capacity,
		stride:   layout.Stride(),
		globals:  make([]float32, len(layout.Globals)),
		fields:   make(map[string]int),
		gfields:  make(map[string]int),
	}
	for i, name := range layout.Inputs {
		p.fields[name] = i
	}
	for i, name := range layout.Outputs {
		p.fields[name] = len(layout.Inputs) + i
	}
	for i, name := range layout.Globals {
		p.gfields[name] = i
	}
	p.buffers = []*Buffer{p.newBuffer()}
	return p, nil
}

func (p *Pipeline) newBuffer() *Buffer {
	return &Buffer{Data: make([]float32, p.capacity*p.stride)}
}

func (p *Pipeline) Program() string    { return p.program }
func (p *Pipeline) Layout() Layout     { return p.layout }
func (p *Pipeline) Capacity() int      { return p.capacity }
func (p *Pipeline) Stride() int        { return p.stride }
func (p *Pipeline) Records() int       { return p.records }
func (p *Pipeline) Globals() []float32 { return p.globals }

// Field returns the offset of an input or output field within a record.
func (p *Pipeline) Field(name string) (int, error) {
	off, ok := p.fields[name]
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", p.program, name, ErrUnknownField)
	}
	return off, nil
}

func (p *Pipeline) SetGlobal(name string, v float32) error {
	i, ok := p.gfields[name]
	if !ok {
		return fmt.Errorf("%s.%s: %w", p.program, name, ErrUnknownField)
	}
	p.globals[i] = v
	return nil
}

func (p *Pipeline) Global(name string) (float32, bool) {
	i, ok := p.gfields[name]
	if !ok {
		return 0, false
	}
	return p.globals[i], true
}

// Append reserves the next record and returns its input block for writing.
// A full buffer chains to the next one, reusing buffers from earlier runs.
func (p *Pipeline) Append() ([]float32, error) {
	b := p.buffers[p.current]
	if b == nil {
		return nil, fmt.Errorf("%s buffer %d: %w", p.program, p.current, ErrDetached)
	}
	if b.Len == p.capacity {
		p.current++
		if p.current == len(p.buffers) {
			p.buffers = append(p.buffers, p.newBuffer())
		}
		b = p.buffers[p.current]
		if b == nil {
			return nil, fmt.Errorf("%s buffer %d: %w", p.program, p.current, ErrDetached)
		}
	}

	off := b.Len * p.stride
	b.Len++
	p.records++
	rec := b.Data[off : off+p.stride]
	clear(rec[p.layout.BlockLength():])
	return rec[:p.layout.BlockLength()], nil
}

// Write appends one record from values given in input order.
func (p *Pipeline) Write(values ...float32) error {
	if len(values) != p.layout.BlockLength() {
		return fmt.Errorf("%s: got %d values for %d inputs", p.program, len(values), p.layout.BlockLength())
	}
	rec, err := p.Append()
	if err != nil {
		return err
	}
	copy(rec, values)
	return nil
}

// Reset empties every buffer for a new run. Slots whose buffer was never
// returned by a worker get a fresh buffer.
func (p *Pipeline) Reset() {
	for i, b := range p.buffers {
		if b == nil {
			p.buffers[i] = p.newBuffer()
			continue
		}
		b.Len = 0
	}
	p.current = 0
	p.records = 0
}

// NumBuffers is the number of chained buffer slots.
func (p *Pipeline) NumBuffers() int { return len(p.buffers) }

// Buffer returns the buffer in slot i, nil while detached.
func (p *Pipeline) Buffer(i int) *Buffer { return p.buffers[i] }

// NonEmpty returns the indexes of attached buffers holding records.
func (p *Pipeline) NonEmpty() []int {
	var out []int
	for i, b := range p.buffers {
		if b != nil && b.Len > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Detach transfers ownership of buffer i to the caller. The slot stays empty
// until Attach or Reset, so the pipeline holds no alias to the buffer.
func (p *Pipeline) Detach(i int) (*Buffer, error) {
	b := p.buffers[i]
	if b == nil {
		return nil, fmt.Errorf("%s buffer %d: %w", p.program, i, ErrDetached)
	}
	p.buffers[i] = nil
	return b, nil
}

// Attach returns ownership of a buffer to slot i.
func (p *Pipeline) Attach(i int, b *Buffer) error {
	if i < 0 || i >= len(p.buffers) || p.buffers[i] != nil {
		return fmt.Errorf("%s: slot %d is not awaiting a buffer", p.program, i)
	}
	if len(b.Data) != p.capacity*p.stride {
		return fmt.Errorf("%s: buffer size %d does not match layout", p.program, len(b.Data))
	}
	p.buffers[i] = b
	return nil
}

// Detached reports whether any buffer is currently out with a worker.
func (p *Pipeline) Detached() bool {
	for _, b := range p.buffers {
		if b == nil {
			return true
		}
	}
	return false
}

// EachRecord calls fn with every written record of every attached buffer, in
// write order, until fn returns false.
func (p *Pipeline) EachRecord(fn func(rec []float32) bool) {
	for _, b := range p.buffers {
		if b == nil {
			continue
		}
		data := b.Records(p.stride)
		for off := 0; off < len(data); off += p.stride {
			if !fn(data[off : off+p.stride]) {
				return
			}
		}
	}
}
