package sim

import (
	"errors"
	"time"

	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/store"
)

var ErrConfig = errors.New("sim: invalid run config")

type Config struct {
	Ticks int
	// Interval paces ticks in wall time. 0 runs as fast as batches complete.
	Interval time.Duration
	// Timeout bounds the wait for a single batch. 0 waits on ctx alone.
	Timeout time.Duration
	// Every records a series row every N ticks; 0 means every tick.
	Every int
}

// Observer is called after each reconciled tick with the metric values.
// Returning false stops the run early.
type Observer func(tick uint64, values map[string]float64) bool

type Result struct {
	Ticks     int
	Particles int
	Lost      int
	Elapsed   time.Duration
	Series    *store.Series
	Metrics   map[string]float64
}

// TicksPerSecond is the tick throughput of the run.
func (r *Result) TicksPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ticks) / r.Elapsed.Seconds()
}

func names(ms []metrics.Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name()
	}
	return out
}
