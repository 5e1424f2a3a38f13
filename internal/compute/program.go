package compute

import (
	"fmt"

	"github.com/san-kum/particlesim/internal/pipeline"
)

// Kernel computes one record. in holds the record's inputs, globals the
// run's global values in layout order, and out receives the outputs.
type Kernel func(in, globals, out []float32)

// Program is one math program with its GPU sources and the equivalent
// per-record kernel used by workers and the software device.
type Program struct {
	Name           string
	Layout         pipeline.Layout
	VertexSource   string
	FragmentSource string
	Kernel         Kernel
}

func (p *Program) validate() error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrProgram)
	}
	if p.Kernel == nil {
		return fmt.Errorf("%w: %s has no kernel", ErrProgram, p.Name)
	}
	if p.Layout.BlockLength() == 0 || len(p.Layout.Outputs) == 0 {
		return fmt.Errorf("%w: %s needs inputs and outputs", ErrProgram, p.Name)
	}
	return nil
}

// runRecords applies k to the first length records of data.
func runRecords(k Kernel, data []float32, length, blockLength, stride int, globals []float32) {
	for i := 0; i < length; i++ {
		rec := data[i*stride : (i+1)*stride]
		k(rec[:blockLength], globals, rec[blockLength:])
	}
}
