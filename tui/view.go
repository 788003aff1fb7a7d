package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" cargo-for-each │ Task: %s │ Targets: %d │ Steps done: %d/%d ",
		m.task.Name, len(m.rows), m.stepsDone, m.stepsTotal)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderPlan()))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderMatrix()))
	b.WriteString("\n")

	statusBar := fmt.Sprintf(" [j/k]scroll [g/G]top/bottom [r]efresh [q]uit │ refreshed %s ",
		m.lastRefresh.Format("15:04:05"))
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

// renderPlan lists the plan steps so matrix columns can be read.
func (m Model) renderPlan() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("PLAN"))
	b.WriteString("\n")

	if len(m.task.Plan.Steps) == 0 {
		b.WriteString(pendingStyle.Render("  The plan has no steps"))
		return b.String()
	}

	for i, step := range m.task.Plan.Steps {
		b.WriteString(fmt.Sprintf("  %d. %s", i+1, truncate(step.Describe(), 70)))
		if i < len(m.task.Plan.Steps)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderMatrix draws one line per target: a cell per step, then the
// target directory.
func (m Model) renderMatrix() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TARGETS"))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(pendingStyle.Render("  The resolved target set is empty"))
		return b.String()
	}

	// Column header with the 1-based step numbers.
	var head strings.Builder
	head.WriteString("  ")
	for i := range m.task.Plan.Steps {
		head.WriteString(fmt.Sprintf("%2d ", i+1))
	}
	b.WriteString(dimmedStyle.Render(head.String()))
	b.WriteString("\n")

	start, end := m.visibleWindow()
	if start > 0 {
		b.WriteString(dimmedStyle.Render(fmt.Sprintf("  ↑ %d more", start)))
		b.WriteString("\n")
	}

	for i := start; i < end; i++ {
		row := m.rows[i]

		var cells strings.Builder
		cells.WriteString("  ")
		for _, done := range row.steps {
			if done {
				cells.WriteString(doneStyle.Render(" ✓ "))
			} else {
				cells.WriteString(pendingStyle.Render(" · "))
			}
		}

		line := cells.String() + " " + row.dir
		switch {
		case row.complete:
			line += doneStyle.Render("  done")
		case row.blocked:
			line += blockedStyle.Render("  waiting on dependencies")
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	if end < len(m.rows) {
		b.WriteString("\n")
		b.WriteString(dimmedStyle.Render(fmt.Sprintf("  ↓ %d more", len(m.rows)-end)))
	}

	return b.String()
}

// visibleWindow clamps the scroll offset to the rows that fit on screen.
func (m Model) visibleWindow() (start, end int) {
	maxVisible := m.height - 10 - len(m.task.Plan.Steps)
	if maxVisible < 1 {
		maxVisible = 1
	}

	start = m.scroll
	if start > len(m.rows)-1 {
		start = len(m.rows) - 1
	}
	if start < 0 {
		start = 0
	}
	end = start + maxVisible
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return start, end
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
