package sim

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/metrics"
)

// Ensemble runs the same configuration over consecutive seeds, one world per
// seed, concurrently.
type Ensemble struct {
	base      *config.Config
	numRuns   int
	seedStart int64
	log       *zap.Logger
}

func NewEnsemble(base *config.Config, numRuns int, seedStart int64, log *zap.Logger) *Ensemble {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ensemble{base: base, numRuns: numRuns, seedStart: seedStart, log: log}
}

// Run returns one result per seed in seed order. Runs that fail leave a nil
// slot; their errors are combined.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfgCopy := *e.base
			cfgCopy.Scenario.Seed = e.seedStart + int64(idx)
			log := e.log.With(zap.Int64("seed", cfgCopy.Scenario.Seed))

			w, err := Build(&cfgCopy, log)
			if err != nil {
				errs[idx] = err
				return
			}
			defer w.Dispose()

			results[idx], errs[idx] = New(w, log, metrics.Standard()...).Run(ctx, cfg)
			if errs[idx] != nil {
				results[idx] = nil
			}
		}(i)
	}
	wg.Wait()

	return results, multierr.Combine(errs...)
}
