package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/cargo-for-each/internal/state"
	"github.com/hochfrequenz/cargo-for-each/internal/tasks"
)

// Model is the live dashboard for one task: a completion matrix of
// targets against plan steps, re-read from the state store whenever the
// run makes progress.
type Model struct {
	task  tasks.Task
	state *state.Store

	rows       []targetRow
	stepsDone  int
	stepsTotal int

	// UI state
	width  int
	height int
	scroll int

	lastRefresh time.Time
}

// targetRow is one rendered line of the completion matrix.
type targetRow struct {
	dir      string
	steps    []bool
	complete bool
	// blocked marks an incomplete target whose in-set dependencies are
	// not fully complete yet.
	blocked bool
}

// ModelConfig holds the data sources for the TUI model.
type ModelConfig struct {
	Task  tasks.Task
	State *state.Store
}

// NewModel creates a TUI model and computes the initial matrix.
func NewModel(cfg ModelConfig) Model {
	m := Model{
		task:  cfg.Task,
		state: cfg.State,
	}
	m.refresh()
	return m
}

// refresh re-reads step completion from the state store.
func (m *Model) refresh() {
	matrix := m.state.CompletionMatrix(m.task.Name, m.task.Plan, m.task.Resolved)

	rows := make([]targetRow, len(m.task.Resolved.Targets))
	stepsDone := 0
	for i, target := range m.task.Resolved.Targets {
		row := targetRow{
			dir:      target.ManifestDir,
			steps:    matrix[i],
			complete: true,
		}
		for _, done := range matrix[i] {
			if done {
				stepsDone++
			} else {
				row.complete = false
			}
		}
		if !row.complete {
			row.blocked = !m.state.DependenciesSatisfied(m.task.Name, m.task.Plan, m.task.Resolved, i)
		}
		rows[i] = row
	}

	m.rows = rows
	m.stepsDone = stepsDone
	m.stepsTotal = len(m.task.Resolved.Targets) * len(m.task.Plan.Steps)
	m.lastRefresh = time.Now()
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg triggers a periodic refresh, a fallback for changes the
// filesystem watcher missed.
type TickMsg time.Time

// StateChangedMsg is sent by the state watcher when step state settled.
type StateChangedMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
