package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/metrics"
	"github.com/san-kum/particlesim/internal/world"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
)

type TickMsg time.Time

// Factory builds a populated world. The model starts it when needed and
// calls the factory again on reset.
type Factory func() (*world.World, error)

// Model drives a world from the bubbletea event loop. Every frame calls
// Update once, so a worker batch that is still in flight only gets polled.
type Model struct {
	build    Factory
	w        *world.World
	interval time.Duration
	title    string
	log      *zap.Logger

	ke      *metrics.KineticEnergy
	mom     *metrics.Momentum
	load    *metrics.Occupancy
	batchMS *metrics.BatchTime

	canvas   *Canvas
	energy   []float64
	loads    []float64
	lastTick uint64
	running  bool
	bonds    bool
	showHelp bool
	err      error
}

// NewModel builds the first world through build and starts it.
func NewModel(build Factory, title string, interval time.Duration, log *zap.Logger) (Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second / 60
	}
	m := Model{
		build:    build,
		interval: interval,
		title:    title,
		log:      log,
		canvas:   NewCanvas(width, height),
		energy:   make([]float64, 0, historyCapacity),
		loads:    make([]float64, 0, historyCapacity),
		running:  true,
		bonds:    true,
	}
	if err := m.start(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// World returns the world currently shown.
func (m Model) World() *world.World { return m.w }

func (m *Model) start() error {
	w, err := m.build()
	if err != nil {
		return err
	}
	m.ke = metrics.NewKineticEnergy()
	m.mom = metrics.NewMomentum()
	m.load = metrics.NewOccupancy()
	m.batchMS = metrics.NewBatchTime()
	w.Observe(m.ke, m.mom, m.load, m.batchMS)
	if w.State() == world.Unstarted {
		if err := w.Startup(); err != nil {
			w.Dispose()
			return err
		}
	}
	m.w = w
	m.lastTick = 0
	m.energy = m.energy[:0]
	m.loads = m.loads[:0]
	m.err = nil
	m.draw()
	return nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.w.Dispose()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			if !m.running {
				m.advance()
			}
		case "r":
			m.reset()
		case "b":
			m.bonds = !m.bonds
		case "?":
			m.showHelp = !m.showHelp
		}
		m.draw()
	case TickMsg:
		if m.running && m.err == nil {
			m.advance()
		}
		m.draw()
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	if err := m.w.Update(); err != nil {
		m.log.Error("tick failed", zap.Uint64("tick", m.w.Ticks()), zap.Error(err))
		m.err = err
		m.running = false
		return
	}
	// Ticks only moves once a batch has been dispatched; metrics lag by the
	// batch in flight.
	if t := m.w.Ticks(); t != m.lastTick {
		m.lastTick = t
		m.energy = push(m.energy, m.ke.Value())
		m.loads = push(m.loads, m.load.Value())
	}
}

func (m *Model) reset() {
	old := m.w
	if err := m.start(); err != nil {
		m.log.Error("reset failed", zap.Error(err))
		m.err = err
		return
	}
	old.Dispose()
	m.running = true
}

func push(hist []float64, v float64) []float64 {
	if len(hist) == historyCapacity {
		copy(hist, hist[1:])
		hist = hist[:len(hist)-1]
	}
	return append(hist, v)
}

// draw renders bindings first, then particles. Frozen particles get a 2x2
// block so walls stand out from moving matter.
func (m *Model) draw() {
	m.canvas.Clear()
	proj := NewProjection(m.w.Config().Bounds, m.canvas)
	particles := m.w.Particles()

	if m.bonds {
		for _, p := range particles {
			x0, y0, ok := proj.Project(p.Position())
			if !ok {
				continue
			}
			for _, o := range p.Bindings() {
				// Each pair once.
				if o.ID < p.ID || o.Disposed() {
					continue
				}
				if x1, y1, ok := proj.Project(o.Position()); ok {
					m.canvas.DrawLine(x0, y0, x1, y1)
				}
			}
		}
	}

	for _, p := range particles {
		x, y, ok := proj.Project(p.Position())
		if !ok {
			continue
		}
		m.canvas.Set(x, y)
		if p.Frozen() {
			m.canvas.Set(x+1, y)
			m.canvas.Set(x, y+1)
			m.canvas.Set(x+1, y+1)
		}
	}
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(statusFailed.Render("FAILED") + "\n")
		s.WriteString(keyHint.Render(m.err.Error()) + "\n\n")
	case m.running:
		s.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	default:
		s.WriteString(statusPaused.Render("PAUSED") + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Tick", fmt.Sprintf("%d", m.w.Ticks()))
	row("Particles", fmt.Sprintf("%d", m.w.Len()))
	row("Layers", fmt.Sprintf("%d", len(m.w.Layers())))
	row("Backend", m.w.Executor().Mode().String())
	row("Energy", fmt.Sprintf("%.3f", m.ke.Value()))
	row("Peak", fmt.Sprintf("%.3f", m.ke.Peak()))
	row("Momentum", fmt.Sprintf("%.3f", m.mom.Value()))
	row("Batch", fmt.Sprintf("%.2fms", m.batchMS.Value()))

	cols, rows := m.w.Grid().Dims()
	fill := 0.0
	if cells := cols * rows; cells > 0 {
		fill = float64(m.w.Grid().Len()) / float64(cells)
	}
	s.WriteString(labelStyle.Render("Grid") + ProgressBar(fill, 16) + "\n")
	s.WriteString(labelStyle.Render("Cell load") + Sparkline(m.loads, 24) + "\n")

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy,
			asciigraph.Height(4),
			asciigraph.Width(30),
			asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString(keyHint.Render("\nSP:Pause S:Step R:Reset\nB:Bonds ?:Help Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top,
		canvasStyle.Render(strings.TrimSuffix(m.canvas.String(), "\n")),
		statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  S        - Single tick while paused ║
║  R        - Rebuild the scenario     ║
║  B        - Toggle binding lines     ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`
