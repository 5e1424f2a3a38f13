package compute

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/pipeline"
)

type Mode int

const (
	// ModeAuto uses a GPU device when one is available, workers otherwise.
	ModeAuto Mode = iota
	ModeGPU
	ModeWorkers
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeGPU:
		return "gpu"
	case ModeWorkers:
		return "workers"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the config names auto, gpu, emulated, cpu and workers.
// emulated selects ModeGPU on a SoftwareDevice.
func ParseMode(s string) (Mode, bool, error) {
	switch s {
	case "", "auto":
		return ModeAuto, false, nil
	case "gpu":
		return ModeGPU, false, nil
	case "emulated":
		return ModeGPU, true, nil
	case "cpu", "workers":
		return ModeWorkers, false, nil
	}
	return ModeAuto, false, fmt.Errorf("compute: unknown backend %q", s)
}

type Options struct {
	Mode Mode
	// Device is used in GPU mode. Nil means SelectDevice.
	Device Device
	// Workers pre-spawns this many workers; the pool grows on demand.
	Workers int
	Logger  *zap.Logger
}

type compiled struct {
	program *Program
	shader  Shader
}

type slotRef struct {
	pipe *pipeline.Pipeline
	slot int
}

// Executor runs pipelines through the device or the worker pool. It is
// driven from a single goroutine; only the workers run concurrently.
type Executor struct {
	log      *zap.Logger
	mode     Mode
	device   Device
	pool     *WorkerPool
	programs map[string]*compiled

	upload   DeviceBuffer
	feedback DeviceBuffer
	staging  []float32
	readback []float32

	gen     uint64
	active  int
	pending map[int]slotRef
	errs    error
	started time.Time
	last    time.Duration

	onComplete func(error)
	closed     bool
}

func NewExecutor(opts Options) (*Executor, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		log:      log,
		programs: make(map[string]*compiled),
		pending:  make(map[int]slotRef),
	}

	dev := opts.Device
	switch opts.Mode {
	case ModeAuto:
		if dev == nil {
			dev = SelectDevice()
		}
		if dev != nil && dev.Available() {
			e.mode = ModeGPU
		} else {
			e.mode = ModeWorkers
		}
	case ModeGPU:
		if dev == nil {
			dev = SelectDevice()
		}
		if dev == nil || !dev.Available() {
			return nil, ErrNoDevice
		}
		e.mode = ModeGPU
	case ModeWorkers:
		e.mode = ModeWorkers
	default:
		return nil, fmt.Errorf("compute: unknown mode %d", opts.Mode)
	}

	if e.mode == ModeGPU {
		e.device = dev
		var err error
		if e.upload, err = dev.NewBuffer(); err != nil {
			return nil, fmt.Errorf("create upload buffer: %w", err)
		}
		if e.feedback, err = dev.NewBuffer(); err != nil {
			return nil, fmt.Errorf("create feedback buffer: %w", err)
		}
		log.Info("executor ready", zap.String("mode", e.mode.String()), zap.String("device", dev.Name()))
	} else {
		e.pool = NewWorkerPool(opts.Workers, log)
		log.Info("executor ready", zap.String("mode", e.mode.String()), zap.Int("workers", opts.Workers))
	}
	return e, nil
}

func (e *Executor) Mode() Mode { return e.mode }

// Pool is nil in GPU mode.
func (e *Executor) Pool() *WorkerPool { return e.pool }

// LastDuration is the wall time of the last completed batch.
func (e *Executor) LastDuration() time.Duration { return e.last }

// OnComplete sets the callback fired once per batch with the batch error.
// In GPU mode it fires inside Execute; in worker mode inside Poll or Wait.
func (e *Executor) OnComplete(fn func(error)) {
	e.onComplete = fn
}

// Register compiles p for the device, or records its kernel for workers.
func (e *Executor) Register(p *Program) error {
	if err := p.validate(); err != nil {
		return err
	}
	if _, dup := e.programs[p.Name]; dup {
		return fmt.Errorf("%w: %s registered twice", ErrProgram, p.Name)
	}

	c := &compiled{program: p}
	if e.mode == ModeGPU {
		if em, ok := e.device.(Emulator); ok {
			em.Emulate(p)
		}
		s, err := e.device.Compile(p.VertexSource, p.FragmentSource, p.Layout.Outputs)
		if err != nil {
			return fmt.Errorf("compile %s: %w", p.Name, err)
		}
		c.shader = s
	}
	e.programs[p.Name] = c
	e.log.Debug("program registered", zap.String("program", p.Name))
	return nil
}

// Completed reports whether no batch is in flight.
func (e *Executor) Completed() bool { return e.active == 0 }

// Active is the number of outstanding worker replies.
func (e *Executor) Active() int { return e.active }

// Execute starts one batch over the given pipelines.
func (e *Executor) Execute(pipes ...*pipeline.Pipeline) error {
	if e.closed {
		return ErrClosed
	}
	if e.active > 0 {
		return ErrBusy
	}
	for _, p := range pipes {
		if _, ok := e.programs[p.Program()]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProgram, p.Program())
		}
	}

	e.started = time.Now()
	e.errs = nil
	if e.mode == ModeGPU {
		err := e.executeDevice(pipes)
		if err != nil {
			// A failed pass leaves no usable outputs.
			for _, p := range pipes {
				p.Reset()
			}
		}
		e.finish(err)
		return err
	}
	return e.executeWorkers(pipes)
}

func (e *Executor) executeDevice(pipes []*pipeline.Pipeline) error {
	e.staging = e.staging[:0]
	type pass struct {
		c        *compiled
		pipe     *pipeline.Pipeline
		offset   int
		feedback int
		count    int
	}
	var passes []pass
	outputs := 0

	for _, p := range pipes {
		if p.Records() == 0 {
			continue
		}
		c := e.programs[p.Program()]
		ps := pass{c: c, pipe: p, offset: len(e.staging), feedback: outputs, count: p.Records()}
		for _, i := range p.NonEmpty() {
			e.staging = append(e.staging, p.Buffer(i).Records(p.Stride())...)
		}
		outputs += ps.count * len(p.Layout().Outputs)
		passes = append(passes, ps)
	}
	if len(passes) == 0 {
		return nil
	}

	if err := e.upload.Upload(e.staging); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if cap(e.readback) < outputs {
		e.readback = make([]float32, outputs)
	}
	e.readback = e.readback[:outputs]
	clear(e.readback)
	if err := e.feedback.Upload(e.readback); err != nil {
		return fmt.Errorf("size feedback: %w", err)
	}

	for _, ps := range passes {
		layout := ps.pipe.Layout()
		err := ps.c.shader.Bind(Binding{
			Input:          e.upload,
			InputOffset:    ps.offset,
			Stride:         ps.pipe.Stride(),
			Attributes:     layout.Inputs,
			Feedback:       e.feedback,
			FeedbackOffset: ps.feedback,
			Outputs:        len(layout.Outputs),
		})
		if err != nil {
			return fmt.Errorf("bind %s: %w", ps.pipe.Program(), err)
		}
		for i, name := range layout.Globals {
			if err := ps.c.shader.SetUniform(name, ps.pipe.Globals()[i]); err != nil {
				return fmt.Errorf("uniform %s.%s: %w", ps.pipe.Program(), name, err)
			}
		}
		if err := e.device.Dispatch(ps.c.shader, Points, 0, ps.count); err != nil {
			return fmt.Errorf("dispatch %s: %w", ps.pipe.Program(), err)
		}
	}

	if err := e.feedback.ReadBack(e.readback); err != nil {
		return fmt.Errorf("read back: %w", err)
	}

	for _, ps := range passes {
		n := len(ps.pipe.Layout().Outputs)
		block := ps.pipe.Layout().BlockLength()
		src := e.readback[ps.feedback:]
		ps.pipe.EachRecord(func(rec []float32) bool {
			copy(rec[block:], src[:n])
			src = src[n:]
			return true
		})
	}
	return nil
}

func (e *Executor) executeWorkers(pipes []*pipeline.Pipeline) error {
	e.gen++
	clear(e.pending)

	var jobs []slotRef
	for _, p := range pipes {
		for _, i := range p.NonEmpty() {
			jobs = append(jobs, slotRef{pipe: p, slot: i})
		}
	}
	if len(jobs) == 0 {
		e.finish(nil)
		return nil
	}

	e.pool.Grow(len(jobs))
	for id, j := range jobs {
		buf, err := j.pipe.Detach(j.slot)
		if err != nil {
			e.Reset()
			return err
		}
		layout := j.pipe.Layout()
		globals := append([]float32(nil), j.pipe.Globals()...)
		e.pending[id] = j
		e.active++
		e.pool.send(id, request{
			gen:         e.gen,
			id:          id,
			kernel:      e.programs[j.pipe.Program()].program.Kernel,
			buf:         buf,
			length:      buf.Len,
			blockLength: layout.BlockLength(),
			stride:      layout.Stride(),
			globals:     globals,
		})
	}
	e.log.Debug("batch dispatched", zap.Int("buffers", len(jobs)), zap.Uint64("gen", e.gen))
	return nil
}

// Poll drains replies without blocking and reports whether the batch is
// complete.
func (e *Executor) Poll() bool {
	if e.pool == nil {
		return true
	}
	for e.active > 0 {
		select {
		case r := <-e.pool.replies:
			e.receive(r)
		default:
			return false
		}
	}
	return true
}

// Wait blocks until the batch completes or ctx is done.
func (e *Executor) Wait(ctx context.Context) error {
	if e.pool == nil {
		return nil
	}
	for e.active > 0 {
		select {
		case r := <-e.pool.replies:
			e.receive(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Executor) receive(r reply) {
	if r.gen != e.gen {
		e.log.Debug("stale reply dropped", zap.Int("worker", r.worker), zap.Uint64("gen", r.gen))
		return
	}
	ref, ok := e.pending[r.id]
	if !ok {
		return
	}
	delete(e.pending, r.id)
	e.pool.done(r.worker)

	if r.err != nil {
		e.log.Error("worker failed", zap.Int("worker", r.worker), zap.String("program", ref.pipe.Program()), zap.Error(r.err))
		e.errs = multierr.Append(e.errs, &WorkerError{Index: r.worker, Err: r.err})
		// Partial outputs are discarded.
		r.buf.Len = 0
	}
	if err := ref.pipe.Attach(ref.slot, r.buf); err != nil {
		e.errs = multierr.Append(e.errs, err)
	}

	e.active--
	if e.active == 0 {
		e.finish(e.errs)
	}
}

func (e *Executor) finish(err error) {
	e.last = time.Since(e.started)
	if e.onComplete != nil {
		e.onComplete(err)
	}
}

// Reset abandons the batch in flight. Busy workers are terminated and any
// late replies are dropped; the owning pipelines replace the lost buffers
// on their next Reset.
func (e *Executor) Reset() {
	if e.active == 0 {
		return
	}
	n := e.pool.TerminateBusy()
	e.gen++
	e.active = 0
	clear(e.pending)
	e.errs = nil
	e.log.Warn("batch preempted", zap.Int("terminated", n))
}

// Close releases device resources and stops the workers.
func (e *Executor) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.pool != nil {
		e.Reset()
		e.pool.Close()
	}
	if e.device != nil {
		e.upload.Release()
		e.feedback.Release()
		e.device.Release()
	}
}
