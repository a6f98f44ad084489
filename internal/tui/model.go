package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-hackbench-load/internal/logging"
	"github.com/randomizedcoder/go-hackbench-load/internal/stats"
	"github.com/randomizedcoder/go-hackbench-load/internal/timeseries"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries updated statistics.
type StatsMsg struct {
	Stats    *stats.AggregatedStats
	Respawns timeseries.RateStats
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	targetUnits int
	workload    string
	metricsAddr string
	runDuration time.Duration

	// Current state
	stats        *stats.AggregatedStats
	respawns     timeseries.RateStats
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	// Stats source (for fetching updates)
	statsSource StatsSource

	// Recent lifecycle events (optional)
	events *logging.EventRing

	// Quit flag
	quitting bool
}

// StatsSource provides aggregated statistics.
type StatsSource interface {
	Aggregate() *stats.AggregatedStats
	RespawnRates() timeseries.RateStats
}

// Config holds TUI configuration.
type Config struct {
	TargetUnits int
	Workload    string
	MetricsAddr string
	RunDuration time.Duration
	StatsSource StatsSource
	Events      *logging.EventRing
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		targetUnits: cfg.TargetUnits,
		workload:    cfg.Workload,
		metricsAddr: cfg.MetricsAddr,
		runDuration: cfg.RunDuration,
		statsSource: cfg.StatsSource,
		events:      cfg.Events,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// Note: tea.WithAltScreen() is passed when creating the program,
	// so we don't need tea.EnterAltScreen here.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		// Fetch latest stats
		if m.statsSource != nil {
			m.stats = m.statsSource.Aggregate()
			m.respawns = m.statsSource.RespawnRates()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatsMsg:
		m.stats = msg.Stats
		m.respawns = msg.Respawns
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.stats != nil && len(m.stats.PerUnitSummaries) > 0 {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Remaining returns the time left in a bounded run, or -1 when the run
// has no configured duration.
func (m Model) Remaining() time.Duration {
	if m.runDuration <= 0 {
		return -1
	}
	left := m.runDuration - m.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// ActiveUnits returns the current running unit count.
func (m Model) ActiveUnits() int {
	if m.stats == nil {
		return 0
	}
	return m.stats.RunningUnits
}

// TargetUnits returns the target unit count.
func (m Model) TargetUnits() int {
	return m.targetUnits
}

// RampProgress returns the ramp-up progress (0.0 to 1.0).
func (m Model) RampProgress() float64 {
	if m.targetUnits == 0 {
		return 0
	}
	return float64(m.ActiveUnits()) / float64(m.targetUnits)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a stats update to the TUI.
func SendStats(p *tea.Program, s *stats.AggregatedStats, r timeseries.RateStats) {
	if p != nil {
		p.Send(StatsMsg{Stats: s, Respawns: r})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// formatRunSeconds formats a workload run duration. hackbench runs land
// in the hundreds of milliseconds to tens of seconds.
func formatRunSeconds(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
