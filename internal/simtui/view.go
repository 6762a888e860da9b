package simtui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mabhi256/gcscan/internal/sim"
	"github.com/mabhi256/gcscan/utils"
)

func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}

	header := m.renderHeader()
	tabBar := m.renderTabBar()

	var content string
	switch m.activeTab {
	case TabCharts:
		content = m.renderChartsTab()
	case TabCycles:
		content = m.renderCyclesTab()
	default:
		content = utils.CriticalStyle.Render("Unknown tab")
	}

	helpView := utils.HelpBarStyle.Render(m.help.View(keys))

	usedHeight := lipgloss.Height(header) + lipgloss.Height(tabBar) + lipgloss.Height(helpView) + 2
	contentHeight := m.height - usedHeight
	if contentHeight > 0 {
		content = lipgloss.NewStyle().Height(contentHeight).Render(content)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, content, helpView)
}

func (m *Model) renderHeader() string {
	title := fmt.Sprintf("🧹 gcscan - %d heap workers, seed %d", m.cfg.Heaps, m.cfg.Seed)

	var status string
	var statusStyle lipgloss.Style
	switch {
	case m.lastErr != nil:
		status = fmt.Sprintf("🔴 Error: %v", m.lastErr)
		statusStyle = utils.CriticalStyle
	case m.done:
		status = fmt.Sprintf("🟢 Finished %d cycles", len(m.cycles))
		statusStyle = utils.GoodStyle
	case m.paused:
		status = fmt.Sprintf("⏸️  Paused at cycle %d/%d", m.next, m.cfg.Cycles)
		statusStyle = utils.WarningStyle
	default:
		status = fmt.Sprintf("🟢 Cycle %d/%d", m.next, m.cfg.Cycles)
		statusStyle = utils.GoodStyle
	}

	elapsed := utils.FormatDuration(time.Since(m.startTime))

	titleStyle := utils.TitleStyle.Width(m.width / 3)
	statusStyled := statusStyle.Width(m.width / 3).Align(lipgloss.Center)
	elapsedStyle := utils.MutedStyle.Width(m.width / 3).Align(lipgloss.Right)

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(title),
		statusStyled.Render(status),
		elapsedStyle.Render(elapsed),
	)

	return utils.BoxStyle.Width(m.width).Render(headerRow)
}

func (m *Model) renderTabBar() string {
	var tabs []string
	for tab := TabCharts; tab <= tabMax; tab++ {
		if tab == m.activeTab {
			tabs = append(tabs, utils.TabActiveStyle.Render(tab.String()))
		} else {
			tabs = append(tabs, utils.TabInactiveStyle.Render(tab.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderChartsTab() string {
	m.promotedChart.Draw()
	m.clearedChart.Draw()
	m.rescanChart.Draw()

	promoted := m.renderChartBox("Promoted per cycle", m.promotedChart.View())
	cleared := m.renderChartBox("Weak handles cleared", m.clearedChart.View())
	rescans := m.renderChartBox("Dependent re-scan passes", m.rescanChart.View())

	top := lipgloss.JoinHorizontal(lipgloss.Top, promoted, cleared)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, rescans, m.renderStatsBox())
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (m *Model) renderChartBox(title, chart string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		utils.TextStyle.Bold(true).Render(title),
		chart,
	)
	return utils.BoxStyle.Render(body)
}

func (m *Model) renderStatsBox() string {
	const keyWidth = 18

	var lines []string
	lines = append(lines, utils.TextStyle.Bold(true).Render("Totals"))

	if len(m.cycles) == 0 {
		lines = append(lines, utils.MutedStyle.Render("waiting for first cycle"))
		return utils.BoxStyle.Render(strings.Join(lines, "\n"))
	}

	s := m.runner.Summarize(m.cycles)
	last := m.cycles[len(m.cycles)-1]

	lines = append(lines,
		utils.FormatKeyValue("Promoted", fmt.Sprintf("%d", s.TotalPromoted), keyWidth),
		utils.FormatKeyValue("Weak cleared", fmt.Sprintf("%d", s.TotalWeakCleared+s.TotalShortWeakCleared), keyWidth),
		utils.FormatKeyValue("Dependent cleared", fmt.Sprintf("%d", s.TotalDependentCleared), keyWidth),
		utils.FormatKeyValue("Rescan passes", fmt.Sprintf("%d", s.TotalRescanPasses), keyWidth),
		utils.FormatKeyValue("Overflows", fmt.Sprintf("%d", s.TotalOverflows), keyWidth),
		utils.FormatKeyValue("Live objects", fmt.Sprintf("%d (%s)", m.runner.LiveObjects(), m.runner.HeapSize()), keyWidth),
		utils.FormatKeyValue("Handles", fmt.Sprintf("%d", m.runner.HandleCount()), keyWidth),
		utils.FormatKeyValue("Last cycle", fmt.Sprintf("gen%d %s", last.Condemned, utils.FormatDuration(last.Duration)), keyWidth),
	)
	if s.DemotedCycles > 0 {
		lines = append(lines, utils.FormatKeyValue("Demoted cycles", fmt.Sprintf("%d", s.DemotedCycles), keyWidth))
	}

	return utils.BoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderCyclesTab() string {
	if len(m.cycles) == 0 {
		return utils.MutedStyle.Render("No cycles completed yet")
	}

	header := fmt.Sprintf("%-5s %-4s %-9s %-9s %-8s %-9s %-6s %-11s %-10s %-8s %s",
		"cycle", "gen", "outcome", "promoted", "rescans", "overflow", "weak", "short-weak", "dependent", "moved", "duration")
	lines := []string{utils.TextStyle.Bold(true).Render(header)}

	// Most recent first, capped to what fits comfortably.
	visible := m.height - 10
	if visible < 1 {
		visible = 1
	}
	for i := len(m.cycles) - 1; i >= 0 && len(lines) <= visible; i-- {
		c := m.cycles[i]
		outcome := "promoted"
		if c.Demoted {
			outcome = "demoted"
		}
		line := fmt.Sprintf("%-5d %-4d %-9s %-9d %-8d %-9d %-6d %-11d %-10d %-8d %s",
			c.Cycle, c.Condemned, outcome,
			c.Promoted, c.RescanPasses, c.Overflows,
			c.WeakCleared, c.ShortWeakCleared, c.DependentCleared,
			c.Moved, utils.FormatDuration(c.Duration))
		lines = append(lines, utils.TextStyle.Render(line))
	}

	return utils.BoxStyle.Render(strings.Join(lines, "\n"))
}

// Start runs the dashboard until the user quits.
func Start(cfg *sim.Config) error {
	model, err := initialModel(cfg)
	if err != nil {
		return err
	}

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
