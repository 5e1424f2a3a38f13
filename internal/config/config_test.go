package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/particlesim/internal/compute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.World.PixelSize <= 0 {
		t.Error("pixel size should be positive")
	}
	if cfg.Compute.Backend != "auto" {
		t.Errorf("expected backend auto, got %s", cfg.Compute.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Config)
	}{
		{"bounds off origin", func(c *Config) { c.World.MinX = 5 }},
		{"inverted bounds", func(c *Config) { c.World.MinY, c.World.MaxY = 0, 0 }},
		{"zero pixel", func(c *Config) { c.World.PixelSize = 0 }},
		{"negative g", func(c *Config) { c.World.G = -1 }},
		{"zero force", func(c *Config) { c.World.MaxForce = 0 }},
		{"negative radius", func(c *Config) { c.World.Radius = -1 }},
		{"unknown backend", func(c *Config) { c.Compute.Backend = "tpu" }},
		{"zero capacity", func(c *Config) { c.Compute.Capacity = 0 }},
		{"negative ticks", func(c *Config) { c.Run.Ticks = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.tweak(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestSaveLoadFormats(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sim"+ext)
			cfg := DefaultConfig()
			cfg.World.G = 2.5
			cfg.Scenario.Layout = "ring"
			cfg.Compute.Backend = "cpu"

			if err := Save(path, cfg); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.World.G != 2.5 || got.Scenario.Layout != "ring" || got.Compute.Backend != "cpu" {
				t.Errorf("round trip lost values: %+v", got)
			}
		})
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	if err := os.WriteFile(path, []byte("[world]\ng = 3.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.G != 3 || cfg.World.MaxForce != DefaultMaxForce || cfg.Run.Ticks != DefaultTicks {
		t.Errorf("unexpected config %+v", cfg.World)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("expected read error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("world: [unclosed"), 0644)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestWorldConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compute.Backend = "emulated"
	wc, err := cfg.WorldConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if wc.Executor.Mode != compute.ModeGPU || wc.Executor.Device == nil {
		t.Error("emulated backend should select a software device")
	}
	if wc.Bounds.MaxX != DefaultExtent || wc.Capacity != DefaultCapacity {
		t.Errorf("unexpected world config %+v", wc)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("ring")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Scenario.Layout != "ring" {
		t.Errorf("expected ring layout, got %s", cfg.Scenario.Layout)
	}
	cfg.World.G = 99
	if Presets["ring"].World.G == 99 {
		t.Error("GetPreset should return a copy")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValidate(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}
