package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/particlesim/internal/compute"
	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/world"
)

var testBounds = grid.Bounds{MinX: -50, MinY: -50, MaxX: 50, MaxY: 50}

func TestGenerateLayouts(t *testing.T) {
	for _, layout := range Layouts {
		t.Run(layout, func(t *testing.T) {
			cfg := config.ScenarioConfig{Layout: layout, Particles: 40, Seed: 9, Mass: 1}
			s, err := Generate(cfg, testBounds)
			if err != nil {
				t.Fatal(err)
			}
			if len(s.Bodies) < cfg.Particles {
				t.Errorf("got %d bodies, want at least %d", len(s.Bodies), cfg.Particles)
			}
			for i, b := range s.Bodies {
				if !testBounds.Contains(b.X, b.Y) {
					t.Fatalf("body %d at (%v,%v) outside bounds", i, b.X, b.Y)
				}
				if b.Layer != "" && !s.hasLayer(b.Layer) {
					t.Fatalf("body %d references unknown layer %s", i, b.Layer)
				}
			}
		})
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := config.ScenarioConfig{Layout: "random", Particles: 10, Seed: 5}
	a, _ := Generate(cfg, testBounds)
	b, _ := Generate(cfg, testBounds)
	for i := range a.Bodies {
		if a.Bodies[i] != b.Bodies[i] {
			t.Fatalf("body %d differs between runs", i)
		}
	}
}

func TestGenerateUnknownLayout(t *testing.T) {
	_, err := Generate(config.ScenarioConfig{Layout: "spiral"}, testBounds)
	if !errors.Is(err, ErrUnknownLayout) {
		t.Errorf("expected ErrUnknownLayout, got %v", err)
	}
}

const testScript = `
layer("system")
layer("moons", "system")
local sun = particle{x=0, y=0, mass=500, static=true, layer="system"}
for i = 1, 3 do
  local m = particle{x=i*5, y=0, vy=0.5, layer="moons"}
  if i == 1 then bind(sun, m) end
end
particle{x=WORLD.max_x - 1, y=0, mass=PARTICLES}
`

func TestRunString(t *testing.T) {
	s, err := RunString(testScript, config.ScenarioConfig{Particles: 7}, testBounds, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Layers) != 2 || s.Layers[1].Parent != "system" {
		t.Errorf("layers = %+v", s.Layers)
	}
	if len(s.Bodies) != 5 {
		t.Fatalf("got %d bodies", len(s.Bodies))
	}
	if !s.Bodies[0].Static || s.Bodies[0].Mass != 500 {
		t.Errorf("sun = %+v", s.Bodies[0])
	}
	if s.Bodies[2].X != 10 || s.Bodies[2].VY != 0.5 || s.Bodies[2].Mass != 1 {
		t.Errorf("moon = %+v", s.Bodies[2])
	}
	if s.Bodies[4].X != 49 || s.Bodies[4].Mass != 7 {
		t.Errorf("globals not exposed: %+v", s.Bodies[4])
	}
	if len(s.Bonds) != 1 || s.Bonds[0] != [2]int{0, 1} {
		t.Errorf("bonds = %v", s.Bonds)
	}
}

func TestRunStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown layer", `particle{layer="nope"}`, "unknown layer"},
		{"bad mass", `particle{mass=0}`, "mass must be positive"},
		{"bad bind", `particle{} bind(1, 1)`, "invalid particle pair"},
		{"duplicate layer", `layer("a") layer("a")`, "duplicate layer"},
		{"syntax", `particle{`, "run script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunString(tt.src, config.ScenarioConfig{}, testBounds, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildFromFileAndPopulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.lua")
	if err := os.WriteFile(path, []byte(testScript), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Build(config.ScenarioConfig{Script: path, Particles: 2}, testBounds, nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := world.DefaultConfig()
	cfg.Bounds = testBounds
	cfg.Executor = compute.Options{Mode: compute.ModeWorkers}
	w := world.New(cfg)
	defer w.Dispose()

	ps, err := s.Populate(w)
	if err != nil {
		t.Fatal(err)
	}
	if w.Len() != 5 || len(ps) != 5 {
		t.Fatalf("world holds %d particles", w.Len())
	}
	if !ps[0].BoundTo(ps[1]) {
		t.Error("bond not applied")
	}
	system, _ := w.Layer("system")
	moons, _ := w.Layer("moons")
	if w.Tree().Parent(moons.Node) != system.Node {
		t.Error("moons should sit under system")
	}
	if err := w.Startup(); err != nil {
		t.Fatal(err)
	}
}
