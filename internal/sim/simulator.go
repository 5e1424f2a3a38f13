package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/scenario"
	"github.com/san-kum/particlesim/internal/store"
	"github.com/san-kum/particlesim/internal/world"
)

// Build creates a world from cfg and populates it with the configured
// scenario. The world is returned unstarted.
func Build(cfg *config.Config, log *zap.Logger) (*world.World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wc, err := cfg.WorldConfig(log)
	if err != nil {
		return nil, err
	}
	scene, err := scenario.Build(cfg.Scenario, wc.Bounds, log)
	if err != nil {
		return nil, err
	}
	w := world.New(wc)
	if _, err := scene.Populate(w); err != nil {
		w.Dispose()
		return nil, fmt.Errorf("populate: %w", err)
	}
	return w, nil
}

// Simulator runs a world headless for a fixed number of ticks.
type Simulator struct {
	w         *world.World
	metrics   []metrics.Metric
	observers []Observer
	log       *zap.Logger
}

// New attaches ms to w. Metrics must be added before the world starts
// ticking so every tick is observed.
func New(w *world.World, log *zap.Logger, ms ...metrics.Metric) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	w.Observe(ms...)
	return &Simulator{w: w, metrics: ms, log: log}
}

func (s *Simulator) World() *world.World    { return s.w }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run starts the world if needed and steps it cfg.Ticks times. On
// cancellation the partial result is returned with the context error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if s.w.State() == world.Unstarted {
		if err := s.w.Startup(); err != nil {
			return nil, err
		}
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	start := s.w.Len()
	result := &Result{
		Series:  store.NewSeries(names(s.metrics)...),
		Metrics: make(map[string]float64),
	}
	every := max(cfg.Every, 1)

	var pace <-chan time.Time
	if cfg.Interval > 0 {
		t := time.NewTicker(cfg.Interval)
		defer t.Stop()
		pace = t.C
	}

	began := time.Now()
	defer func() {
		result.Elapsed = time.Since(began)
		result.Particles = s.w.Len()
		result.Lost = max(start-s.w.Len(), 0)
		for k, v := range metrics.Snapshot(s.metrics) {
			result.Metrics[k] = v
		}
	}()

	for i := 0; i < cfg.Ticks; i++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-pace:
			}
		}
		if err := s.step(ctx, cfg.Timeout); err != nil {
			return result, fmt.Errorf("tick %d: %w", s.w.Ticks(), err)
		}
		result.Ticks++

		values := metrics.Snapshot(s.metrics)
		if result.Ticks%every == 0 || i == cfg.Ticks-1 {
			result.Series.Append(s.w.Ticks(), values)
		}
		for _, o := range s.observers {
			if !o(s.w.Ticks(), values) {
				s.log.Debug("run stopped by observer", zap.Uint64("tick", s.w.Ticks()))
				return result, nil
			}
		}
	}
	return result, nil
}

func (s *Simulator) step(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.w.Step(ctx)
}

func validateConfig(cfg Config) error {
	if cfg.Ticks <= 0 {
		return fmt.Errorf("%w: ticks must be positive, got %d", ErrConfig, cfg.Ticks)
	}
	if cfg.Interval < 0 || cfg.Timeout < 0 || cfg.Every < 0 {
		return fmt.Errorf("%w: durations and sampling must not be negative", ErrConfig)
	}
	return nil
}
