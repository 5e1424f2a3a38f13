// Package world drives the simulation tick: it flattens the scene tree,
// writes every active particle into the gravity pipeline, executes the batch
// and reconciles the results onto the particles and the spatial grid.
package world

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/physics"
	"github.com/san-kum/particlesim/internal/pipeline"
	"github.com/san-kum/particlesim/internal/registry"
	"github.com/san-kum/particlesim/internal/scene"
)

type State uint8

const (
	Unstarted State = iota
	Started
	Disposed
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Started:
		return "started"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// World owns the scene tree, the particle registry, the grid and the
// executor. All methods must be called from one goroutine.
type World struct {
	cfg   Config
	log   *zap.Logger
	state State

	tree      *scene.Tree
	root      scene.Handle
	particles *registry.Store[*matter.Particle]
	layers    map[string]*Layer

	grid    *grid.Grid
	exec    *compute.Executor
	gravity *pipeline.Pipeline

	// active is the work list of the last flatten; batch holds the
	// particles written into the batch in flight.
	active []*matter.Particle
	batch  []*matter.Particle
	doomed []*matter.Particle

	onOutside func(*matter.Particle) bool
	observers []metrics.Metric
	ticks     uint64
	batchErr  error
}

func New(cfg Config) *World {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		cfg:       cfg,
		log:       log,
		tree:      scene.NewTree(64),
		particles: registry.New[*matter.Particle](64),
		layers:    make(map[string]*Layer),
	}
	w.root = w.tree.New(w)
	return w
}

func (w *World) Scope() scene.Scope { return scene.ScopeWorld }
func (w *World) IsContainer() bool  { return true }

func (w *World) State() State                { return w.state }
func (w *World) Tree() *scene.Tree           { return w.tree }
func (w *World) Root() scene.Handle          { return w.root }
func (w *World) Grid() *grid.Grid            { return w.grid }
func (w *World) Executor() *compute.Executor { return w.exec }
func (w *World) Ticks() uint64               { return w.ticks }
func (w *World) Config() Config              { return w.cfg }

// Len is the number of registered particles.
func (w *World) Len() int { return w.particles.Len() }

// Lookup returns the particle registered under id.
func (w *World) Lookup(id int) (*matter.Particle, bool) {
	return w.particles.Get(id)
}

// Particles returns the active work list of the last flatten.
func (w *World) Particles() []*matter.Particle { return w.active }

func (w *World) Layer(name string) (*Layer, bool) {
	l, ok := w.layers[name]
	return l, ok
}

// Layers returns the layers in no particular order.
func (w *World) Layers() []*Layer {
	out := make([]*Layer, 0, len(w.layers))
	for _, l := range w.layers {
		out = append(out, l)
	}
	return out
}

// OnOutsideGrid sets the handler for particles leaving the grid. Returning
// true keeps the particle; otherwise it is disposed after the tick.
func (w *World) OnOutsideGrid(fn func(*matter.Particle) bool) {
	w.onOutside = fn
}

// Observe registers metrics fed after every reconciled tick.
func (w *World) Observe(ms ...metrics.Metric) {
	w.observers = append(w.observers, ms...)
}

// AddLayer creates a layer under parent, or under the world when parent is
// nil. Layer names are unique.
func (w *World) AddLayer(name string, parent *Layer) (*Layer, error) {
	if w.state == Disposed {
		return nil, ErrDisposed
	}
	if _, dup := w.layers[name]; dup {
		return nil, fmt.Errorf("%w: duplicate layer %q", ErrConfig, name)
	}
	at := w.root
	if parent != nil {
		if parent.world != w {
			return nil, ErrForeign
		}
		at = parent.Node
	}

	l := &Layer{Name: name, world: w}
	l.Node = w.tree.New(l)
	if err := w.tree.Add(at, l.Node); err != nil {
		w.tree.Destroy(l.Node)
		return nil, err
	}
	w.layers[name] = l
	return l, nil
}

// Spawn registers p and attaches it under layer, or under the world when
// layer is nil. A started world places it in the grid at once.
func (w *World) Spawn(p *matter.Particle, layer *Layer) error {
	if w.state == Disposed {
		return ErrDisposed
	}
	if p.ID >= 0 || p.Disposed() {
		return fmt.Errorf("%w: particle %d already registered", ErrForeign, p.ID)
	}
	at := w.root
	if layer != nil {
		if layer.world != w {
			return ErrForeign
		}
		at = layer.Node
	}

	id, err := w.particles.Add(p)
	if err != nil {
		return fmt.Errorf("register particle: %w", err)
	}
	if id < 0 {
		return nil
	}
	p.ID = id
	p.Node = w.tree.New(p)
	if err := w.tree.Add(at, p.Node); err != nil {
		w.tree.Destroy(p.Node)
		w.particles.Remove(id)
		p.ID, p.Node = -1, scene.Nil
		return err
	}

	if w.state == Started {
		w.place(p)
		w.flushDoomed()
	}
	return nil
}

// Remove takes p out of the world. While the registry is locked or a batch
// is in flight, p is disposed at once but keeps its id and node until the
// batch has been reconciled, so no newcomer can reuse them.
func (w *World) Remove(p *matter.Particle) error {
	if p.ID < 0 || p.Disposed() {
		return nil
	}
	if cur, ok := w.particles.Get(p.ID); !ok || cur != p {
		return ErrForeign
	}
	if w.deferring() {
		p.Dispose()
		w.doomed = append(w.doomed, p)
		return nil
	}
	return w.release(p)
}

func (w *World) deferring() bool {
	return w.particles.Locked() || (w.exec != nil && !w.exec.Completed())
}

// release drops p from the registry first, then from the grid and the tree.
func (w *World) release(p *matter.Particle) error {
	if cur, ok := w.particles.Get(p.ID); !ok || cur != p {
		return ErrForeign
	}
	if _, err := w.particles.Remove(p.ID); err != nil {
		return err
	}
	if w.grid != nil {
		w.grid.Remove(p)
	}
	err := w.tree.Destroy(p.Node)
	w.log.Debug("particle removed", zap.Int("particle", p.ID))
	p.Dispose()
	p.ID, p.Node = -1, scene.Nil
	return err
}

// Startup validates the configuration, builds the grid and the executor,
// and runs the startup cascade. It may only be called once.
func (w *World) Startup() error {
	switch w.state {
	case Started:
		return ErrStarted
	case Disposed:
		return ErrDisposed
	}
	if w.tree.Parent(w.root) != scene.Nil {
		return ErrNotRoot
	}
	if err := w.cfg.validate(); err != nil {
		return err
	}

	g, err := grid.New(w.cfg.Bounds, w.cfg.PixelSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	g.OnOutside = w.outside
	w.grid = g

	if w.exec == nil {
		opts := w.cfg.Executor
		if opts.Logger == nil {
			opts.Logger = w.log
		}
		exec, err := compute.NewExecutor(opts)
		if err != nil {
			return fmt.Errorf("build executor: %w", err)
		}
		if err := exec.Register(physics.NewGravityProgram()); err != nil {
			exec.Close()
			return err
		}
		exec.OnComplete(w.reconcile)
		w.exec = exec
	}

	w.gravity, err = pipeline.New(physics.GravityProgram, physics.GravityLayout, w.cfg.Capacity)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	w.reflatten()
	if err := w.tree.StartupBelow(w.root); err != nil {
		return err
	}
	w.state = Started

	for _, p := range w.active {
		w.place(p)
	}
	w.flushDoomed()

	w.log.Info("world started",
		zap.Int("particles", w.particles.Len()),
		zap.Int("layers", len(w.layers)),
		zap.String("mode", w.exec.Mode().String()))
	return nil
}

// Update runs one tick. While a worker batch is still in flight it only
// drains replies and returns.
func (w *World) Update() error {
	switch w.state {
	case Unstarted:
		return ErrNotStarted
	case Disposed:
		return ErrDisposed
	}
	if !w.exec.Poll() {
		return nil
	}
	if err := w.takeBatchErr(); err != nil {
		return err
	}

	if w.tree.SubtreeChanged(w.root) {
		w.reflatten()
	}
	w.settleLayers()

	w.gravity.Reset()
	w.gravity.SetGlobal("G", float32(w.cfg.G))
	w.gravity.SetGlobal("maxForce", float32(w.cfg.MaxForce))
	w.gravity.SetGlobal("pixelSize", float32(w.cfg.PixelSize))

	w.batch = w.batch[:0]
	for _, p := range w.active {
		p.Snapshot()
		if p.Frozen() {
			continue
		}
		if err := w.writeRecords(p); err != nil {
			return err
		}
		w.batch = append(w.batch, p)
	}

	w.ticks++
	if err := w.exec.Execute(w.gravity); err != nil {
		w.batchErr = nil
		return fmt.Errorf("execute tick %d: %w", w.ticks, err)
	}
	return w.takeBatchErr()
}

// Wait blocks until the batch in flight has been reconciled.
func (w *World) Wait(ctx context.Context) error {
	if w.exec == nil {
		return nil
	}
	if err := w.exec.Wait(ctx); err != nil {
		return err
	}
	return w.takeBatchErr()
}

// Step runs one tick and waits for its reconciliation.
func (w *World) Step(ctx context.Context) error {
	if err := w.Update(); err != nil {
		return err
	}
	return w.Wait(ctx)
}

// Dispose stops the executor and releases every particle. The world cannot
// be restarted.
func (w *World) Dispose() {
	if w.state == Disposed {
		return
	}
	if w.exec != nil {
		w.exec.Close()
	}
	if w.grid != nil {
		w.grid.Clear()
	}
	w.particles.Each(func(_ int, p *matter.Particle) bool {
		p.Dispose()
		p.ID, p.Node = -1, scene.Nil
		return true
	})
	w.particles.Clear()
	w.tree.Destroy(w.root)
	w.active, w.batch, w.doomed = nil, nil, nil
	w.state = Disposed
	w.log.Info("world disposed", zap.Uint64("ticks", w.ticks))
}

func (w *World) takeBatchErr() error {
	err := w.batchErr
	w.batchErr = nil
	return err
}

func (w *World) reflatten() {
	w.active = w.active[:0]
	for _, h := range w.tree.Flatten(w.root, false) {
		if p, ok := w.tree.Payload(h).(*matter.Particle); ok {
			w.active = append(w.active, p)
		}
	}
}

// settleLayers aggregates composite values in flatten order, so each layer
// settles after all of its descendants have contributed.
func (w *World) settleLayers() {
	if len(w.layers) == 0 {
		return
	}
	for _, h := range w.tree.Flatten(w.root, false) {
		switch v := w.tree.Payload(h).(type) {
		case *matter.Particle:
			if l := w.layerOf(h); l != nil {
				l.pending.add(aggregate{mass: v.Mass, count: 1, moment: v.Kinematics.Position.Scale(v.Mass)})
			}
		case *Layer:
			a := v.settle()
			if parent := w.layerOf(v.Node); parent != nil {
				parent.pending.add(a)
			}
		}
	}
}

// layerOf returns the nearest layer strictly above h.
func (w *World) layerOf(h scene.Handle) *Layer {
	parent := w.tree.Parent(h)
	if parent == scene.Nil {
		return nil
	}
	l, _ := w.tree.Payload(w.tree.Layer(parent)).(*Layer)
	return l
}

// writeRecords writes one gravity record per source attracting p.
func (w *World) writeRecords(p *matter.Particle) error {
	emit := func(o *matter.Particle) error {
		if o == p || p.BoundTo(o) {
			return nil
		}
		return w.gravity.Write(
			float32(p.ID), float32(o.ID),
			float32(p.Kinematics.Position.X), float32(p.Kinematics.Position.Y), float32(p.Mass),
			float32(o.Kinematics.Position.X), float32(o.Kinematics.Position.Y), float32(o.Mass),
		)
	}

	if w.cfg.Radius <= 0 {
		for _, o := range w.active {
			if err := emit(o); err != nil {
				return err
			}
		}
		return nil
	}

	pl := p.Placement()
	if !pl.Placed {
		return nil
	}
	r2 := w.cfg.Radius * w.cfg.Radius
	reach := int(math.Ceil(w.cfg.Radius / w.cfg.PixelSize))
	for cx := pl.X - reach; cx <= pl.X+reach; cx++ {
		for cy := pl.Y - reach; cy <= pl.Y+reach; cy++ {
			for _, b := range w.grid.At(cx, cy) {
				o := b.(*matter.Particle)
				d := o.Kinematics.Position.Sub(p.Kinematics.Position)
				if d.X*d.X+d.Y*d.Y > r2 {
					continue
				}
				if err := emit(o); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// reconcile scatters the batch results by id and moves every particle that
// took part, resolving grid contacts on the way.
func (w *World) reconcile(err error) {
	if err != nil {
		w.log.Error("gravity batch failed", zap.Uint64("tick", w.ticks), zap.Error(err))
		w.batchErr = err
	}
	if w.state != Started {
		return
	}

	block := physics.GravityLayout.BlockLength()
	w.gravity.EachRecord(func(rec []float32) bool {
		out := rec[block:]
		p, ok := w.particles.Get(int(out[physics.OutID]))
		if !ok || p.Disposed() {
			return true
		}
		p.Velocity.X += float64(out[physics.OutDVX])
		p.Velocity.Y += float64(out[physics.OutDVY])
		return true
	})

	w.particles.Lock()
	for _, p := range w.batch {
		if p.Disposed() {
			continue
		}
		averageBound(p)
		p.Velocity = p.Velocity.Clamp(w.cfg.PixelSize)
		if !p.Velocity.IsValid() {
			p.Velocity = matter.Vec2{}
		}
		w.move(p)
	}
	w.particles.Unlock()
	w.flushDoomed()

	if w.tree.SubtreeChanged(w.root) {
		w.reflatten()
	}
	if len(w.observers) > 0 {
		s := metrics.Sample{Tick: w.ticks, Particles: w.active, Grid: w.grid, Batch: w.exec.LastDuration()}
		for _, m := range w.observers {
			m.Observe(s)
		}
	}
}

func (w *World) move(p *matter.Particle) {
	dx, dy := physics.Step(p.Velocity)
	if c := w.grid.Probe(p, dx, dy); c.Kind != grid.ContactNone {
		physics.Respond(p, c)
		p.Velocity = p.Velocity.Clamp(w.cfg.PixelSize)
	}

	p.Kinematics.Position = p.Kinematics.Position.Add(p.Velocity)
	if cx, cy, ok := w.grid.CellOf(p.Position()); ok && !p.Placement().At(cx, cy) && w.grid.Occupied(cx, cy, p) {
		p.Revert()
		return
	}
	w.place(p)
}

func (w *World) place(p *matter.Particle) grid.Move {
	return w.grid.Update(p)
}

func (w *World) outside(b grid.Body) {
	p := b.(*matter.Particle)
	if w.onOutside != nil && w.onOutside(p) {
		return
	}
	w.doomed = append(w.doomed, p)
}

func (w *World) flushDoomed() {
	if w.deferring() {
		return
	}
	for _, p := range w.doomed {
		if p.ID < 0 {
			continue
		}
		if err := w.release(p); err != nil {
			w.log.Warn("release particle", zap.Int("particle", p.ID), zap.Error(err))
		}
	}
	w.doomed = w.doomed[:0]
}

// averageBound gives p and every particle bound to it their mean velocity.
func averageBound(p *matter.Particle) {
	bound := p.Bindings()
	if len(bound) == 0 {
		return
	}
	sum := p.Velocity
	for _, o := range bound {
		sum = sum.Add(o.Velocity)
	}
	avg := sum.Scale(1 / float64(len(bound)+1))
	p.Velocity = avg
	for _, o := range bound {
		if !o.Frozen() {
			o.Velocity = avg
		}
	}
}
