package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/sim"
	"github.com/san-kum/particlesim/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		ticks    int
		every    int
		realtime bool
		save     bool
		export   string
		svg      string
		plot     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cmd.Flags().Changed("ticks") {
				cfg.Run.Ticks = ticks
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			w, err := sim.Build(cfg, log)
			if err != nil {
				return err
			}
			defer w.Dispose()

			s := sim.New(w, log, metrics.Standard()...)
			if err := w.Startup(); err != nil {
				return err
			}
			runCfg := sim.Config{Ticks: cfg.Run.Ticks, Every: every, Timeout: 30 * time.Second}
			if realtime {
				runCfg.Interval = time.Duration(cfg.Run.TickMS) * time.Millisecond
			}

			fmt.Printf("running %s: %d particles, %d ticks, backend %s\n",
				scenarioName(cfg), w.Len(), runCfg.Ticks, w.Executor().Mode())
			result, err := s.Run(ctx, runCfg)
			if err != nil {
				if result != nil {
					log.Error("run failed", zap.Int("ticks", result.Ticks), zap.Error(err))
				}
				return err
			}

			fmt.Printf("completed %d ticks in %v (%.1f ticks/s)\n", result.Ticks, result.Elapsed.Round(time.Millisecond), result.TicksPerSecond())
			fmt.Printf("particles: %d (%d left the grid)\n", result.Particles, result.Lost)
			printMetrics(result.Metrics)

			if plot {
				if ke := result.Series.Column("kinetic_energy"); len(ke) > 1 {
					fmt.Println()
					fmt.Println(asciigraph.Plot(ke,
						asciigraph.Height(10),
						asciigraph.Width(80),
						asciigraph.Caption("kinetic energy"),
					))
				}
			}

			if save {
				st := store.New(dataDir)
				if err := st.Init(); err != nil {
					return err
				}
				runID, err := st.Save(store.RunMetadata{
					Scenario:  scenarioName(cfg),
					Backend:   w.Executor().Mode().String(),
					Seed:      cfg.Scenario.Seed,
					Particles: result.Particles,
					Ticks:     result.Ticks,
					Elapsed:   result.Elapsed.Seconds(),
					Metrics:   result.Metrics,
				}, result.Series)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
			}

			data := store.NewExport(w.Ticks(), w.Particles(), result.Metrics)
			if svg != "" {
				if err := store.ExportSVG(svg, data, w.Config().Bounds, 4); err != nil {
					return err
				}
			}
			switch export {
			case "":
			case "-":
				return store.ExportJSONStdout(data)
			default:
				return store.ExportJSON(export, data)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", config.DefaultTicks, "number of ticks")
	cmd.Flags().IntVar(&every, "every", 1, "record a metrics row every N ticks")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace ticks by run.tick_ms")
	cmd.Flags().BoolVar(&save, "save", true, "save the run to the data directory")
	cmd.Flags().StringVar(&export, "export", "", "write final particle state as JSON (- for stdout)")
	cmd.Flags().StringVar(&svg, "svg", "", "draw the final particle state as SVG")
	cmd.Flags().BoolVar(&plot, "plot", true, "plot kinetic energy after the run")
	return cmd
}

func printMetrics(values map[string]float64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("\nmetrics:")
	for _, k := range keys {
		fmt.Printf("  %s: %.6f\n", k, values[k])
	}
}

func newBenchCmd() *cobra.Command {
	var (
		ticks    int
		backends []string
		sizes    []int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "compare tick throughput across backends and particle counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			fmt.Printf("benchmarking %s, %d ticks per run\n\n", scenarioName(base), ticks)
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND\tPARTICLES\tTICKS\tTIME\tTICKS/SEC\tBATCH MS")

			for _, b := range backends {
				for _, n := range sizes {
					cfg := *base
					cfg.Compute.Backend = b
					cfg.Scenario.Particles = n
					cfg.Compute.Capacity = max(cfg.Compute.Capacity, n*4)

					res, err := benchOnce(cmd.Context(), &cfg, ticks, log)
					if err != nil {
						fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t%v\n", b, n, err)
						continue
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%.1f\t%.3f\n",
						b, n, res.Ticks,
						res.Elapsed.Round(time.Millisecond),
						res.TicksPerSecond(),
						res.Metrics["batch_ms"],
					)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 100, "ticks per run")
	cmd.Flags().StringSliceVar(&backends, "backends", []string{"emulated", "cpu"}, "backends to compare")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{50, 200, 500}, "particle counts")
	return cmd
}

func benchOnce(ctx context.Context, cfg *config.Config, ticks int, log *zap.Logger) (*sim.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, err := sim.Build(cfg, log)
	if err != nil {
		return nil, err
	}
	defer w.Dispose()
	return sim.New(w, log, metrics.NewBatchTime()).Run(ctx, sim.Config{Ticks: ticks, Timeout: time.Minute})
}

func newEnsembleCmd() *cobra.Command {
	var (
		runs  int
		ticks int
	)
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run consecutive seeds concurrently and compare final metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			first := cfg.Scenario.Seed
			results, err := sim.NewEnsemble(cfg, runs, first, log).Run(cmd.Context(), sim.Config{Ticks: ticks, Timeout: time.Minute})
			if err != nil {
				log.Warn("ensemble had failures", zap.Error(err))
			}

			cols := metrics.Standard()
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			header := []string{"SEED", "PARTICLES", "LOST"}
			for _, m := range cols {
				header = append(header, strings.ToUpper(m.Name()))
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for i, r := range results {
				if r == nil {
					fmt.Fprintf(tw, "%d\tfailed\n", first+int64(i))
					continue
				}
				row := []string{fmt.Sprint(first + int64(i)), fmt.Sprint(r.Particles), fmt.Sprint(r.Lost)}
				for _, m := range cols {
					row = append(row, fmt.Sprintf("%.4f", r.Metrics[m.Name()]))
				}
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 4, "number of seeds")
	cmd.Flags().IntVar(&ticks, "ticks", 200, "ticks per run")
	return cmd
}
