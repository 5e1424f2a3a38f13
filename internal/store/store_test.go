package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/particlesim/internal/grid"
	"github.com/san-kum/particlesim/internal/matter"
)

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	series := NewSeries("kinetic_energy", "momentum")
	series.Append(1, map[string]float64{"kinetic_energy": 1.5, "momentum": 0.25})
	series.Append(2, map[string]float64{"kinetic_energy": 2})

	runID, err := st.Save(RunMetadata{
		Scenario:  "ring",
		Backend:   "workers",
		Seed:      42,
		Particles: 10,
		Ticks:     2,
		Metrics:   map[string]float64{"kinetic_energy": 2},
	}, series)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scenario != "ring" || meta.Seed != 42 || meta.Metrics["kinetic_energy"] != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	got, err := st.LoadSeries(runID)
	if err != nil {
		t.Fatalf("load series failed: %v", err)
	}
	if len(got.Rows) != 2 || got.Ticks[1] != 2 {
		t.Fatalf("unexpected series %+v", got)
	}
	ke := got.Column("kinetic_energy")
	if ke[0] != 1.5 || ke[1] != 2 {
		t.Errorf("kinetic energy column = %v", ke)
	}
	if m := got.Column("momentum"); m[1] != 0 {
		t.Errorf("missing values should be zero, got %v", m)
	}
	if got.Column("nope") != nil {
		t.Error("unknown column should be nil")
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	first, _ := st.Save(RunMetadata{Scenario: "a"}, nil)
	second, _ := st.Save(RunMetadata{Scenario: "b"}, nil)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs should be newest first: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	st.Init()

	runID, err := st.Save(RunMetadata{Scenario: "test"}, NewSeries("x"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	if _, err := os.Stat(filepath.Join(runDir, "metadata.json")); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}
	if _, err := os.Stat(filepath.Join(runDir, "metrics.csv")); os.IsNotExist(err) {
		t.Error("metrics.csv not created")
	}
}

func TestExport(t *testing.T) {
	a := matter.New(1, 2, 3)
	a.ID = 0
	b := matter.New(0, 0, 1)
	b.Dispose()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewExport(7, []*matter.Particle{a, b}, nil)); err != nil {
		t.Fatal(err)
	}
	var got ExportData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Tick != 7 || len(got.Particles) != 1 || got.Particles[0].Y != 2 || got.Particles[0].Phase != "liquid" {
		t.Errorf("unexpected export %+v", got)
	}
}

func TestWriteSVG(t *testing.T) {
	moving := matter.New(0, 0, 1)
	moving.Color = 0x3399ff80
	wall := matter.New(5, 5, 1)
	wall.Static = true
	far := matter.New(50, 0, 1)

	var buf bytes.Buffer
	bounds := grid.Bounds{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	if err := WriteSVG(&buf, NewExport(3, []*matter.Particle{moving, wall, far}, nil), bounds, 2); err != nil {
		t.Fatal(err)
	}
	svg := buf.String()

	if !strings.Contains(svg, `width="40" height="40"`) {
		t.Error("canvas should be bounds times scale")
	}
	if !strings.Contains(svg, `<circle cx="20.0" cy="20.0" r="0.8" fill="#3399ff" fill-opacity="0.50"/>`) {
		t.Errorf("missing centre particle:\n%s", svg)
	}
	if strings.Count(svg, "<rect x=") != 1 {
		t.Error("static particle should render as one square")
	}
	if strings.Count(svg, "<circle") != 1 {
		t.Error("particles outside the bounds should be skipped")
	}
	if !strings.Contains(svg, "tick 3") {
		t.Error("missing tick label")
	}
}
