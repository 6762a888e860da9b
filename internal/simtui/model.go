// Package simtui is the live dashboard for simulation runs: one collection
// cycle per tick, with charts of promotion and clearing activity.
package simtui

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mabhi256/gcscan/internal/sim"
	"github.com/mabhi256/gcscan/utils"
)

type TabType int

const (
	TabCharts TabType = iota
	TabCycles

	tabMax = TabCycles
)

func (t TabType) String() string {
	switch t {
	case TabCharts:
		return "Charts"
	case TabCycles:
		return "Cycles"
	default:
		return "Unknown"
	}
}

const tickInterval = 200 * time.Millisecond

type Model struct {
	cfg    *sim.Config
	runner *sim.Runner
	help   help.Model

	// UI state
	width     int
	height    int
	activeTab TabType

	// Run state
	cycles  []sim.CycleStats
	next    int
	paused  bool
	done    bool
	lastErr error

	promotedChart sparkline.Model
	clearedChart  sparkline.Model
	rescanChart   sparkline.Model

	startTime time.Time
}

func initialModel(cfg *sim.Config) (*Model, error) {
	runner, err := sim.NewRunner(cfg)
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:           cfg,
		runner:        runner,
		help:          help.New(),
		activeTab:     TabCharts,
		promotedChart: newChart(utils.GoodStyle),
		clearedChart:  newChart(utils.WarningStyle),
		rescanChart:   newChart(utils.InfoStyle),
		startTime:     time.Now(),
	}
	return m, nil
}

func newChart(style lipgloss.Style) sparkline.Model {
	return sparkline.New(40, 6, sparkline.WithStyle(style))
}

type TickMsg time.Time

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	return scheduleTick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeCharts()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		if !m.paused && !m.done {
			m.step()
		}
		return m, scheduleTick()
	}
	return m, nil
}

// step runs one collection cycle and feeds the charts.
func (m *Model) step() {
	stats, err := m.runner.RunCycle(m.next)
	if err != nil {
		m.lastErr = err
		m.done = true
		return
	}
	m.next++
	m.cycles = append(m.cycles, *stats)

	m.promotedChart.Push(float64(stats.Promoted))
	m.clearedChart.Push(float64(stats.WeakCleared + stats.ShortWeakCleared + stats.DependentCleared))
	m.rescanChart.Push(float64(stats.RescanPasses))

	if m.next >= m.cfg.Cycles {
		m.done = true
		return
	}
	m.runner.Advance()
}

// restart rebuilds the workload with a fresh seed and starts over.
func (m *Model) restart() {
	cfg := *m.cfg
	cfg.Seed++
	runner, err := sim.NewRunner(&cfg)
	if err != nil {
		m.lastErr = err
		return
	}
	m.cfg = &cfg
	m.runner = runner
	m.cycles = nil
	m.next = 0
	m.paused = false
	m.done = false
	m.lastErr = nil
	m.promotedChart.Clear()
	m.clearedChart.Clear()
	m.rescanChart.Clear()
	m.startTime = time.Now()
}

func (m *Model) resizeCharts() {
	w := m.width/2 - 6
	if w < 10 {
		w = 10
	}
	m.promotedChart.Resize(w, 6)
	m.clearedChart.Resize(w, 6)
	m.rescanChart.Resize(w, 6)
}
