package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/sim"
	"github.com/san-kum/particlesim/internal/store"
	"github.com/san-kum/particlesim/internal/viz"
	"github.com/san-kum/particlesim/internal/world"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "run the simulation with live terminal visualization",
		RunE:  runWatch,
	}
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The TUI owns the terminal.
	if cfg.Logging.File == "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
		cfg.Logging.File = filepath.Join(dataDir, "watch.log")
	}
	cfg, log, err := setupWith(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	build := func() (*world.World, error) { return sim.Build(cfg, log) }
	interval := time.Duration(cfg.Run.TickMS) * time.Millisecond
	m, err := viz.NewModel(build, scenarioName(cfg), interval, log)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := store.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tBACKEND\tSEED\tPARTICLES\tTICKS\tELAPSED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.2fs\n",
					run.ID,
					run.Scenario,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Backend,
					run.Seed,
					run.Particles,
					run.Ticks,
					run.Elapsed,
				)
			}
			return w.Flush()
		},
	}
}

func newPlotCmd() *cobra.Command {
	var metricNames []string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot metrics of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			series, err := st.LoadSeries(args[0])
			if err != nil {
				return err
			}
			if len(series.Rows) == 0 {
				return fmt.Errorf("no data to plot")
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("scenario: %s (%s)\n", meta.Scenario, meta.Backend)
			fmt.Printf("samples: %d\n\n", len(series.Rows))

			names := metricNames
			if len(names) == 0 {
				names = series.Names
			}
			for _, name := range names {
				data := series.Column(name)
				if data == nil {
					return fmt.Errorf("run %s has no metric %q (have %s)", meta.ID, name, strings.Join(series.Names, ", "))
				}
				if len(data) < 2 {
					continue
				}
				fmt.Println(asciigraph.Plot(data,
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(name),
				))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&metricNames, "metric", nil, "metrics to plot (default all)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLAYOUT\tPARTICLES\tG\tRADIUS\tBOUNDS")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%g\t[%g,%g]x[%g,%g]\n",
					name,
					p.Scenario.Layout,
					p.Scenario.Particles,
					p.World.G,
					p.World.Radius,
					p.World.MinX, p.World.MaxX, p.World.MinY, p.World.MaxY,
				)
			}
			return w.Flush()
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the effective configuration to a yaml or toml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
}
