package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-hackbench-load/internal/logging"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main summary dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Progress section
	sections = append(sections, m.renderProgress())

	// Stats sections (only if we have stats)
	if m.stats != nil {
		sections = append(sections, m.renderLifecycle())
		sections = append(sections, m.renderRunDurations())
		sections = append(sections, m.renderUnitHealth())
	}

	// Recent lifecycle events
	if m.events != nil && m.events.Len() > 0 {
		sections = append(sections, m.renderEvents())
	}

	// Footer
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders per-unit details.
func (m Model) renderDetailedView() string {
	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Per-unit table
	sections = append(sections, m.renderUnitTable())

	// Footer
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	backoff := 0
	if m.stats != nil {
		backoff = m.stats.BackoffUnits
	}
	runLabel := GetRunLabel(m.ActiveUnits(), m.targetUnits, backoff)

	header := fmt.Sprintf(
		" go-hackbench-load │ %s │ Units: %d/%d │ Elapsed: %s ",
		runLabel,
		m.ActiveUnits(),
		m.targetUnits,
		formatDuration(m.Elapsed()),
	)

	if remaining := m.Remaining(); remaining >= 0 {
		header += fmt.Sprintf("│ Remaining: %s ", formatDuration(remaining))
	}

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.RampProgress()

	// Progress bar
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	// Status text
	var status string
	if progress >= 1.0 {
		status = statusOK.Render("✓ All units running")
	} else {
		status = statusInfo.Render(fmt.Sprintf("Ramping up... %d/%d", m.ActiveUnits(), m.targetUnits))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Ramp Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Workload Lifecycle
// =============================================================================

func (m Model) renderLifecycle() string {
	s := m.stats

	// Respawn row carries the windowed rates: constant churn is the
	// whole point of this load, so the rate matters more than the count.
	respawnRates := fmt.Sprintf("1s %s · 30s %s · 5m %s",
		formatRate(m.respawns.Avg1s),
		formatRate(m.respawns.Avg30s),
		formatRate(m.respawns.Avg300s),
	)

	launchStyle := valueStyle
	if s.TotalLaunchFailures > 0 {
		launchStyle = valueBadStyle
	}

	exits := lipgloss.JoinHorizontal(lipgloss.Left,
		GetExitStyle("clean").Render(formatNumber(s.CleanExits)),
		mutedStyle.Render(" clean  "),
		GetExitStyle("error").Render(formatNumber(s.ErrorExits)),
		mutedStyle.Render(" error  "),
		GetExitStyle("signal").Render(formatNumber(s.SignalExits)),
		mutedStyle.Render(" signal"),
	)

	rows := []string{
		renderStatRow("Spawns", formatNumber(s.TotalSpawns), formatRate(s.SpawnRate)),
		renderStatRow("Respawns", formatNumber(s.TotalRespawns), respawnRates),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelWideStyle.Render("Launch Failures:"),
			launchStyle.Render(formatNumber(s.TotalLaunchFailures)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelWideStyle.Render("Exits:"),
			exits,
		),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Workload Lifecycle")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderStatRow(label, value, rate string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueStyle.Width(12).Render(value),
		mutedStyle.Render(" ("),
		valueStyle.Render(rate),
		mutedStyle.Render(")"),
	)
}

// =============================================================================
// Run Duration Statistics
// =============================================================================

func (m Model) renderRunDurations() string {
	s := m.stats

	if s.RunCount == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			sectionHeaderStyle.Render("Run Duration"),
			dimStyle.Render("No completed runs yet"),
		)
		return boxStyle.Width(m.width - 2).Render(content)
	}

	rows := []string{
		RenderKeyValue("Completed Runs", formatNumber(s.RunCount)),
		RenderKeyValue("P50 (median)", formatRunSeconds(s.RunP50)),
		RenderKeyValue("P90", formatRunSeconds(s.RunP90)),
		RenderKeyValue("P99", formatRunSeconds(s.RunP99)),
		RenderKeyValue("Min / Max", formatRunSeconds(s.MinRun)+" / "+formatRunSeconds(s.MaxRun)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Run Duration")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Unit Health
// =============================================================================

func (m Model) renderUnitHealth() string {
	s := m.stats

	runningStyle := valueStyle
	if s.RunningUnits >= m.targetUnits && m.targetUnits > 0 {
		runningStyle = valueGoodStyle
	}

	backoffStyle := valueStyle
	if s.BackoffUnits > 0 {
		backoffStyle = valueWarnStyle
	}

	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Running:"),
			runningStyle.Render(fmt.Sprintf("%d", s.RunningUnits)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("In Backoff:"),
			backoffStyle.Render(fmt.Sprintf("%d", s.BackoffUnits)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Stopped:"),
			dimStyle.Render(fmt.Sprintf("%d", s.StoppedUnits)),
		),
	}

	if s.AvgUptime > 0 {
		rows = append(rows, RenderKeyValue("Avg Uptime", formatDuration(s.AvgUptime)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Units")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recent Events
// =============================================================================

func (m Model) renderEvents() string {
	recent := m.events.Recent(6)

	rows := make([]string, 0, len(recent))
	for _, e := range recent {
		style := dimStyle
		switch e.Kind {
		case logging.EventLaunchRetry:
			style = statusWarning
		case logging.EventStopRequested:
			style = statusInfo
		}
		rows = append(rows, style.Render(e.String()))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Events")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Unit Table (Detailed View)
// =============================================================================

func (m Model) renderUnitTable() string {
	if m.stats == nil || len(m.stats.PerUnitSummaries) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No per-unit data available. Press 'd' to toggle."),
		)
	}

	// Table header
	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-5s %-9s %-8s %-8s %-9s %-10s %-9s %-8s",
			"ID", "State", "PID", "Spawns", "Respawns", "Uptime", "LastExit", "AvgRun"),
	)

	// Table rows (limit to fit screen)
	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}

	var rows []string
	for i, unit := range m.stats.PerUnitSummaries {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more units", len(m.stats.PerUnitSummaries)-maxRows)))
			break
		}

		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}

		row := fmt.Sprintf("%-5d %-9s %-8d %-8s %-9s %-10s %-9d %-8s",
			unit.UnitID,
			GetStateLabel(unit.State),
			unit.Pid,
			formatNumber(unit.Spawns),
			formatNumber(unit.Respawns),
			formatDuration(unit.Uptime),
			unit.LastExitCode,
			formatRunSeconds(unit.AvgRuntime),
		)
		rows = append(rows, rowStyle.Render(row))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Per-Unit Statistics"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	// Keyboard shortcuts
	shortcuts := []string{
		"q: quit",
		"d: toggle details",
		"r: refresh",
	}

	// Workload command (truncated if needed)
	workload := m.workload
	maxLen := m.width - 60
	if len(workload) > maxLen && maxLen > 10 {
		workload = workload[:maxLen-3] + "..."
	}

	right := "Workload: " + workload
	if m.metricsAddr != "" {
		right += " │ Metrics: " + m.metricsAddr
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	rightRendered := dimStyle.Render(right)

	// Pad to fill width
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightRendered) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			rightRendered,
		),
	)
}
