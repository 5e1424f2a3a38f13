package world_test

import (
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/world"
)

func testConfig(opts compute.Options) world.Config {
	cfg := world.DefaultConfig()
	cfg.Bounds = grid.Bounds{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	cfg.PixelSize = 1
	cfg.G = 1
	cfg.MaxForce = 10
	cfg.Capacity = 8
	cfg.Executor = opts
	return cfg
}

var (
	workers = compute.Options{Mode: compute.ModeWorkers}
	gpu     = func() compute.Options {
		return compute.Options{Mode: compute.ModeGPU, Device: compute.NewSoftwareDevice()}
	}
)

func step(w *world.World) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	Expect(w.Step(ctx)).To(Succeed())
}

func spawn(w *world.World, x, y, mass float64) *matter.Particle {
	p := matter.New(x, y, mass)
	Expect(w.Spawn(p, nil)).To(Succeed())
	return p
}

// expectConsistentGrid checks that every placed particle is mirrored by its
// cell at its recorded slot and that no two particles share a slot.
func expectConsistentGrid(w *world.World) {
	type key struct{ x, y, slot int }
	seen := make(map[key]*matter.Particle)
	for _, p := range w.Particles() {
		pl := p.Placement()
		if !pl.Placed {
			continue
		}
		occ := w.Grid().At(pl.X, pl.Y)
		Expect(pl.Slot).To(BeNumerically("<", len(occ)))
		Expect(occ[pl.Slot]).To(BeIdenticalTo(p))
		k := key{pl.X, pl.Y, pl.Slot}
		Expect(seen).NotTo(HaveKey(k))
		seen[k] = p
	}
}

var _ = Describe("World", func() {
	var w *world.World

	AfterEach(func() {
		if w != nil {
			w.Dispose()
		}
	})

	Describe("Startup", func() {
		It("is terminal-once", func() {
			w = world.New(testConfig(workers))
			Expect(w.State()).To(Equal(world.Unstarted))
			Expect(w.Startup()).To(Succeed())
			Expect(w.State()).To(Equal(world.Started))
			Expect(w.Startup()).To(MatchError(world.ErrStarted))
		})

		It("rejects non-positive constants", func() {
			cfg := testConfig(workers)
			cfg.PixelSize = 0
			w = world.New(cfg)
			Expect(w.Startup()).To(MatchError(world.ErrConfig))
			Expect(w.State()).To(Equal(world.Unstarted))
		})

		It("rejects bounds that do not straddle the origin", func() {
			cfg := testConfig(workers)
			cfg.Bounds = grid.Bounds{MinX: 1, MinY: -10, MaxX: 10, MaxY: 10}
			w = world.New(cfg)
			err := w.Startup()
			Expect(err).To(MatchError(world.ErrConfig))
			Expect(err).To(MatchError(grid.ErrBounds))
		})

		It("requires the world to be root", func() {
			w = world.New(testConfig(workers))
			holder := w.Tree().New(nil)
			Expect(w.Tree().Add(holder, w.Root())).To(Succeed())
			Expect(w.Startup()).To(MatchError(world.ErrNotRoot))
		})

		It("places spawned particles in the grid", func() {
			w = world.New(testConfig(workers))
			p := spawn(w, 2.5, -3.5, 1)
			Expect(p.Placement().Placed).To(BeFalse())
			Expect(w.Startup()).To(Succeed())
			Expect(p.Placement().Placed).To(BeTrue())
			Expect(p.Placement().X).To(Equal(2))
			Expect(p.Placement().Y).To(Equal(-4))
		})

		It("starts nested layers without re-entering the world", func() {
			w = world.New(testConfig(workers))
			outer, err := w.AddLayer("outer", nil)
			Expect(err).NotTo(HaveOccurred())
			inner, err := w.AddLayer("inner", outer)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Spawn(matter.New(1, 1, 1), inner)).To(Succeed())
			outer.Mass, inner.Mass = 99, 99

			Expect(w.Startup()).To(Succeed())
			Expect(w.State()).To(Equal(world.Started))
			Expect(outer.Mass).To(BeZero())
			Expect(inner.Mass).To(BeZero())
		})

		It("refuses updates before startup", func() {
			w = world.New(testConfig(workers))
			Expect(w.Update()).To(MatchError(world.ErrNotStarted))
		})
	})

	DescribeTable("one gravity batch pulls the light particle toward the heavy one",
		func(opts func() compute.Options) {
			w = world.New(testConfig(opts()))
			a := spawn(w, 0, 0, 100)
			b := spawn(w, 5, 0, 1)
			Expect(w.Startup()).To(Succeed())

			step(w)

			Expect(b.Velocity.X).To(BeNumerically("<", 0))
			Expect(math.Abs(b.Velocity.X)).To(BeNumerically("<=", w.Config().PixelSize))
			Expect(b.Velocity.Y).To(BeZero())
			Expect(a.Velocity.X).To(BeNumerically(">", 0))
			Expect(b.Kinematics.Position.X).To(BeNumerically("<", 5))
			Expect(b.Prev.Position.X).To(Equal(5.0))
		},
		Entry("worker pool", func() compute.Options { return workers }),
		Entry("gpu device", gpu),
	)

	It("reports an outstanding batch until its workers reply", func() {
		w = world.New(testConfig(workers))
		spawn(w, 0, 0, 100)
		spawn(w, 5, 0, 1)
		Expect(w.Startup()).To(Succeed())

		Expect(w.Update()).To(Succeed())
		Expect(w.Executor().Completed()).To(BeFalse())
		Expect(w.Wait(context.Background())).To(Succeed())
		Expect(w.Executor().Completed()).To(BeTrue())
	})

	It("never moves a particle more than one pixel per axis", func() {
		cfg := testConfig(workers)
		cfg.G = 1e6
		cfg.MaxForce = 1e9
		w = world.New(cfg)
		spawn(w, -4, -4, 1e6)
		p := spawn(w, 4, 4, 1)
		Expect(w.Startup()).To(Succeed())

		for i := 0; i < 3; i++ {
			before := p.Kinematics.Position
			step(w)
			Expect(math.Abs(p.Kinematics.Position.X - before.X)).To(BeNumerically("<=", 1))
			Expect(math.Abs(p.Kinematics.Position.Y - before.Y)).To(BeNumerically("<=", 1))
		}
	})

	It("keeps particles heading for the same cell in distinct cells", func() {
		cfg := testConfig(gpu())
		cfg.G = 100
		w = world.New(cfg)
		left := spawn(w, 0.5, 0.5, 10)
		right := spawn(w, 2.5, 0.5, 10)
		Expect(w.Startup()).To(Succeed())

		for i := 0; i < 4; i++ {
			step(w)
			expectConsistentGrid(w)
			lp, rp := left.Placement(), right.Placement()
			Expect(lp.X == rp.X && lp.Y == rp.Y).To(BeFalse(), "tick %d: both in cell (%d,%d)", i, lp.X, lp.Y)
		}
	})

	It("moves a particle within a cell it shares", func() {
		cfg := testConfig(workers)
		cfg.G = 1e-9
		w = world.New(cfg)
		spawn(w, 0.2, 0.2, 1)
		p := matter.New(0.5, 0.5, 1)
		p.Velocity = matter.Vec2{X: 0.1}
		Expect(w.Spawn(p, nil)).To(Succeed())
		Expect(w.Startup()).To(Succeed())

		step(w)

		Expect(p.Kinematics.Position.X).To(BeNumerically("~", 0.6, 1e-6))
		Expect(p.Placement().X).To(Equal(0))
		Expect(p.Placement().Y).To(Equal(0))
		expectConsistentGrid(w)
	})

	Describe("removing particles", func() {
		It("defers release while a worker batch is in flight", func() {
			w = world.New(testConfig(workers))
			spawn(w, 0, 0, 100)
			b := spawn(w, 5, 0, 1)
			Expect(w.Startup()).To(Succeed())

			Expect(w.Update()).To(Succeed())
			Expect(w.Executor().Completed()).To(BeFalse())
			oldID := b.ID
			Expect(w.Remove(b)).To(Succeed())
			Expect(b.Disposed()).To(BeTrue())
			Expect(b.ID).To(Equal(oldID))

			c := spawn(w, -5, 0, 1)
			Expect(c.ID).NotTo(Equal(oldID))

			Expect(w.Wait(context.Background())).To(Succeed())
			Expect(c.Velocity).To(Equal(matter.Vec2{}))
			Expect(b.ID).To(Equal(-1))
			Expect(w.Len()).To(Equal(2))
			_, ok := w.Lookup(oldID)
			Expect(ok).To(BeFalse())
			expectConsistentGrid(w)
		})

		It("releases a particle removed from the outside handler", func() {
			w = world.New(testConfig(workers))
			var removeErr error
			w.OnOutsideGrid(func(p *matter.Particle) bool {
				removeErr = w.Remove(p)
				return true
			})
			p := matter.New(9.5, 0, 1)
			p.Velocity = matter.Vec2{X: 1}
			Expect(w.Spawn(p, nil)).To(Succeed())
			stay := spawn(w, -5, 0, 1)
			node := p.Node
			Expect(w.Startup()).To(Succeed())

			step(w)

			Expect(removeErr).NotTo(HaveOccurred())
			Expect(p.Disposed()).To(BeTrue())
			Expect(p.ID).To(Equal(-1))
			Expect(w.Tree().Exists(node)).To(BeFalse())
			Expect(w.Len()).To(Equal(1))
			Expect(w.Particles()).To(ConsistOf(stay))
			expectConsistentGrid(w)
		})
	})

	Describe("leaving the grid", func() {
		It("disposes the particle by default", func() {
			w = world.New(testConfig(workers))
			p := matter.New(9.5, 0, 1)
			p.Velocity = matter.Vec2{X: 1}
			Expect(w.Spawn(p, nil)).To(Succeed())
			Expect(w.Startup()).To(Succeed())

			step(w)

			Expect(p.Disposed()).To(BeTrue())
			Expect(w.Len()).To(Equal(0))
			Expect(w.Grid().Len()).To(Equal(0))
		})

		It("keeps the particle when the handler asks to", func() {
			w = world.New(testConfig(workers))
			var left []*matter.Particle
			w.OnOutsideGrid(func(p *matter.Particle) bool {
				left = append(left, p)
				return true
			})
			p := matter.New(9.5, 0, 1)
			p.Velocity = matter.Vec2{X: 1}
			Expect(w.Spawn(p, nil)).To(Succeed())
			Expect(w.Startup()).To(Succeed())

			step(w)

			Expect(left).To(ConsistOf(p))
			Expect(p.Disposed()).To(BeFalse())
			Expect(p.Placement().Placed).To(BeFalse())
			Expect(w.Len()).To(Equal(1))
		})
	})

	It("averages the velocities of bound particles and skips their mutual pull", func() {
		cfg := testConfig(workers)
		cfg.G = 1e-9
		w = world.New(cfg)
		a := matter.New(-5, 0, 1)
		a.Velocity = matter.Vec2{X: 1}
		b := matter.New(5, 0, 1)
		a.Bind(b)
		Expect(w.Spawn(a, nil)).To(Succeed())
		Expect(w.Spawn(b, nil)).To(Succeed())
		Expect(w.Startup()).To(Succeed())

		step(w)

		Expect(a.Velocity.X).To(BeNumerically("~", 0.5, 1e-9))
		Expect(b.Velocity.X).To(BeNumerically("~", 0.5, 1e-9))
		Expect(a.Kinematics.Position.X).To(BeNumerically("~", -4.5, 1e-9))
	})

	It("keeps frozen particles in place while they still attract", func() {
		w = world.New(testConfig(gpu()))
		anchor := matter.New(0, 0, 100)
		anchor.Static = true
		Expect(w.Spawn(anchor, nil)).To(Succeed())
		p := spawn(w, 0, 5, 1)
		Expect(w.Startup()).To(Succeed())

		step(w)

		Expect(anchor.Kinematics.Position).To(Equal(matter.Vec2{}))
		Expect(anchor.Velocity).To(Equal(matter.Vec2{}))
		Expect(p.Velocity.Y).To(BeNumerically("<", 0))
	})

	It("settles composite mass of nested layers", func() {
		w = world.New(testConfig(gpu()))
		galaxy, err := w.AddLayer("galaxy", nil)
		Expect(err).NotTo(HaveOccurred())
		stars, err := w.AddLayer("stars", galaxy)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.AddLayer("stars", nil)
		Expect(err).To(MatchError(world.ErrConfig))

		for _, spec := range []struct {
			x, m  float64
			layer *world.Layer
		}{{-4, 2, stars}, {4, 2, stars}, {0, 4, galaxy}} {
			p := matter.New(spec.x, 0, spec.m)
			p.Static = true
			Expect(w.Spawn(p, spec.layer)).To(Succeed())
		}
		Expect(w.Startup()).To(Succeed())
		step(w)

		Expect(stars.Mass).To(Equal(4.0))
		Expect(stars.Count).To(Equal(2))
		Expect(stars.Center).To(Equal(matter.Vec2{}))
		Expect(galaxy.Mass).To(Equal(8.0))
		Expect(galaxy.Count).To(Equal(3))
	})

	It("feeds registered metrics after each tick", func() {
		w = world.New(testConfig(workers))
		ke := metrics.NewKineticEnergy()
		w.Observe(ke)
		spawn(w, 0, 0, 100)
		spawn(w, 5, 0, 1)
		Expect(w.Startup()).To(Succeed())

		step(w)
		Expect(ke.Value()).To(BeNumerically(">", 0))
	})

	It("reflattens after particles are removed between ticks", func() {
		w = world.New(testConfig(workers))
		a := spawn(w, -3, 0, 1)
		spawn(w, 3, 0, 1)
		Expect(w.Startup()).To(Succeed())
		step(w)
		Expect(w.Particles()).To(HaveLen(2))

		Expect(w.Remove(a)).To(Succeed())
		step(w)
		Expect(w.Particles()).To(HaveLen(1))
		_, ok := w.Lookup(0)
		Expect(ok).To(BeFalse())
	})

	It("cannot be used after disposal", func() {
		w = world.New(testConfig(workers))
		p := spawn(w, 1, 1, 1)
		Expect(w.Startup()).To(Succeed())
		w.Dispose()

		Expect(w.State()).To(Equal(world.Disposed))
		Expect(p.Disposed()).To(BeTrue())
		Expect(w.Update()).To(MatchError(world.ErrDisposed))
		Expect(w.Startup()).To(MatchError(world.ErrDisposed))
		Expect(w.Spawn(matter.New(0, 0, 1), nil)).To(MatchError(world.ErrDisposed))
	})
})
