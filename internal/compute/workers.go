package compute

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/pipeline"
)

// request hands a buffer to a worker. The worker owns buf until it replies.
type request struct {
	gen         uint64
	id          int
	kernel      Kernel
	buf         *pipeline.Buffer
	length      int
	blockLength int
	stride      int
	globals     []float32
}

// reply returns the mutated buffer together with the request id.
type reply struct {
	gen    uint64
	id     int
	worker int
	buf    *pipeline.Buffer
	err    error
}

type handle struct {
	index int
	in    chan request
	quit  chan struct{}
	busy  bool
}

// WorkerPool is a persistent set of worker goroutines. Workers share no
// memory: each receives a buffer in a request and sends it back in its
// reply.
type WorkerPool struct {
	log     *zap.Logger
	workers []*handle
	replies chan reply
}

func NewWorkerPool(size int, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	p := &WorkerPool{
		log:     log,
		replies: make(chan reply, 64),
	}
	p.Grow(size)
	return p
}

// Size is the number of live workers.
func (p *WorkerPool) Size() int { return len(p.workers) }

// Busy is the number of workers holding a request.
func (p *WorkerPool) Busy() int {
	n := 0
	for _, h := range p.workers {
		if h.busy {
			n++
		}
	}
	return n
}

// Grow spawns workers until the pool has at least n.
func (p *WorkerPool) Grow(n int) {
	for len(p.workers) < n {
		p.workers = append(p.workers, p.spawn(len(p.workers)))
		p.log.Debug("worker spawned", zap.Int("worker", len(p.workers)-1))
	}
}

func (p *WorkerPool) spawn(index int) *handle {
	h := &handle{
		index: index,
		in:    make(chan request, 1),
		quit:  make(chan struct{}),
	}
	go work(h.index, h.in, h.quit, p.replies)
	return h
}

// send hands req to worker i.
func (p *WorkerPool) send(i int, req request) {
	h := p.workers[i]
	h.busy = true
	h.in <- req
}

// done marks worker i idle after its reply was received.
func (p *WorkerPool) done(i int) {
	if i < len(p.workers) {
		p.workers[i].busy = false
	}
}

// Terminate discards worker i and replaces it with a fresh one. A kernel
// already running cannot be interrupted; its reply is dropped.
func (p *WorkerPool) Terminate(i int) {
	close(p.workers[i].quit)
	p.workers[i] = p.spawn(i)
	p.log.Debug("worker terminated", zap.Int("worker", i))
}

// TerminateBusy discards every worker that still holds a request.
func (p *WorkerPool) TerminateBusy() int {
	n := 0
	for i, h := range p.workers {
		if h.busy {
			p.Terminate(i)
			n++
		}
	}
	return n
}

// Close stops every worker.
func (p *WorkerPool) Close() {
	for _, h := range p.workers {
		close(h.quit)
	}
	p.workers = nil
}

func work(index int, in <-chan request, quit <-chan struct{}, out chan<- reply) {
	for {
		select {
		case <-quit:
			return
		case req := <-in:
			r := reply{gen: req.gen, id: req.id, worker: index, buf: req.buf}
			r.err = run(req)
			select {
			case out <- r:
			case <-quit:
				return
			}
		}
	}
}

func run(req request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("kernel panic: %v", v)
		}
	}()
	if req.length*req.stride > len(req.buf.Data) {
		return fmt.Errorf("buffer holds %d floats, request needs %d", len(req.buf.Data), req.length*req.stride)
	}
	runRecords(req.kernel, req.buf.Data, req.length, req.blockLength, req.stride, req.globals)
	return nil
}
