package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Store keeps CLI run summaries on disk: one directory per run holding
// metadata.json and metrics.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Backend   string             `json:"backend"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Particles int                `json:"particles"`
	Ticks     int                `json:"ticks"`
	Elapsed   float64            `json:"elapsed_s"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Series is a per-tick table of metric values.
type Series struct {
	Names []string
	Ticks []uint64
	Rows  [][]float64
}

func NewSeries(names ...string) *Series {
	return &Series{Names: names}
}

func (s *Series) Append(tick uint64, values map[string]float64) {
	row := make([]float64, len(s.Names))
	for i, n := range s.Names {
		row[i] = values[n]
	}
	s.Ticks = append(s.Ticks, tick)
	s.Rows = append(s.Rows, row)
}

// Column returns the values recorded for name, nil when absent.
func (s *Series) Column(name string) []float64 {
	for i, n := range s.Names {
		if n != name {
			continue
		}
		out := make([]float64, len(s.Rows))
		for r, row := range s.Rows {
			out[r] = row[i]
		}
		return out
	}
	return nil
}

func (s *Store) Save(meta RunMetadata, series *Series) (string, error) {
	meta.Timestamp = time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Scenario, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if series == nil {
		return meta.ID, nil
	}

	csvFile, err := os.Create(filepath.Join(runDir, "metrics.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(append([]string{"tick"}, series.Names...)); err != nil {
		return "", err
	}
	for i, row := range series.Rows {
		rec := []string{strconv.FormatUint(series.Ticks[i], 10)}
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', 8, 64))
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return meta.ID, w.Error()
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "metrics.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", runID, err)
	}
	if len(records) == 0 {
		return &Series{}, nil
	}

	series := NewSeries(records[0][1:]...)
	for _, rec := range records[1:] {
		tick, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read series %s: %w", runID, err)
		}
		row := make([]float64, len(rec)-1)
		for i, v := range rec[1:] {
			if row[i], err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("read series %s: %w", runID, err)
			}
		}
		series.Ticks = append(series.Ticks, tick)
		series.Rows = append(series.Rows, row)
	}
	return series, nil
}
