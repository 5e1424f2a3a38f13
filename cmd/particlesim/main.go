package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/logging"
)

var (
	dataDir    string
	configFile string
	preset     string
	backend    string
	particles  int
	seed       int64
	layout     string
	script     string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "particlesim",
		Short:        "2D particle simulator with GPU or worker gravity batches",
		SilenceUsage: true,
		RunE:         runWatch,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".particlesim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&backend, "backend", "", "compute backend: auto, gpu, emulated, cpu")
	pf.IntVar(&particles, "particles", 0, "number of generated particles")
	pf.Int64Var(&seed, "seed", 0, "scenario seed")
	pf.StringVar(&layout, "layout", "", "scenario layout: ring, rain, binary, random")
	pf.StringVar(&script, "script", "", "lua scenario script")
	pf.StringVar(&logLevel, "log-level", "", "log level")
	pf.StringVar(&logFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(
		newRunCmd(),
		newWatchCmd(),
		newBenchCmd(),
		newEnsembleCmd(),
		newListCmd(),
		newPlotCmd(),
		newPresetsCmd(),
		newInitConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: a config file wins over a preset,
// and explicitly set flags win over both.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Compute.Backend = backend
	}
	if flags.Changed("particles") {
		cfg.Scenario.Particles = particles
	}
	if flags.Changed("seed") {
		cfg.Scenario.Seed = seed
	}
	if flags.Changed("layout") {
		cfg.Scenario.Layout = layout
	}
	if flags.Changed("script") {
		cfg.Scenario.Script = script
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return setupWith(cfg)
}

func setupWith(cfg *config.Config) (*config.Config, *zap.Logger, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

// scenarioName labels a run in the store.
func scenarioName(cfg *config.Config) string {
	switch {
	case cfg.Scenario.Script != "":
		return strings.TrimSuffix(filepath.Base(cfg.Scenario.Script), filepath.Ext(cfg.Scenario.Script))
	case preset != "":
		return preset
	default:
		return cfg.Scenario.Layout
	}
}
