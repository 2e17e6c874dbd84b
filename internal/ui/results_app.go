// Package ui holds the interactive terminal front end: a tabbed browser
// for finished analysis envelopes and a staged progress view for bundle
// runs. Both are bubbletea models; the CLI decides when a TTY gets them.
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/formatter"
)

// Tabs of the results browser.
const (
	tabSummary = iota
	tabComponents
	tabEvents
	tabRecommendations
	tabCount
)

var tabLabels = []string{"Summary", "Components", "Events", "Recommendations"}

// ResultsModel browses one finished analysis envelope.
type ResultsModel struct {
	output *common.StandardizedOutput
	styles *Styles

	// Rows are extracted once; the envelope is immutable here.
	components []formatter.ComponentRow
	issues     []formatter.IssueRow
	events     []formatter.EventRow
	corr       *formatter.CorrelationBlock

	width    int
	height   int
	ready    bool
	quitting bool

	activeTab     int
	selectedIndex int
	maxIndex      int
}

// NewResultsModel creates a results browser for one envelope.
func NewResultsModel(output *common.StandardizedOutput) *ResultsModel {
	return &ResultsModel{
		output:     output,
		styles:     GetStyles(),
		components: formatter.ComponentRows(output.Details),
		issues:     formatter.IssueRows(output.Details),
		events:     formatter.EventRows(output),
		corr:       formatter.Correlations(output.Details),
	}
}

// Init initializes the results model
func (m *ResultsModel) Init() tea.Cmd {
	return tea.EnterAltScreen
}

// Update handles messages and navigation
func (m *ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

// handleKeyPress handles keyboard input
func (m *ResultsModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.setTab(tabSummary)
	case "tab", "right", "l":
		m.setTab((m.activeTab + 1) % tabCount)
	case "shift+tab", "left", "h":
		m.setTab((m.activeTab + tabCount - 1) % tabCount)
	case "1", "2", "3", "4":
		m.setTab(int(msg.String()[0] - '1'))
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case "down", "j":
		if m.selectedIndex < m.maxIndex {
			m.selectedIndex++
		}
	}
	return m, nil
}

func (m *ResultsModel) setTab(tab int) {
	m.activeTab = tab
	m.selectedIndex = 0
	m.updateMaxIndex()
}

// updateMaxIndex updates the maximum selectable index for the active tab
func (m *ResultsModel) updateMaxIndex() {
	switch m.activeTab {
	case tabComponents:
		m.maxIndex = max(0, len(m.components)-1)
	case tabEvents:
		m.maxIndex = max(0, len(m.events)-1)
	case tabRecommendations:
		m.maxIndex = max(0, len(m.output.Recommendations)-1)
	default:
		m.maxIndex = 0
	}
}

// View renders the results model
func (m *ResultsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.quitting {
		return ""
	}

	var content string
	switch m.activeTab {
	case tabComponents:
		content = m.renderComponentsTab()
	case tabEvents:
		content = m.renderEventsTab()
	case tabRecommendations:
		content = m.renderRecommendationsTab()
	default:
		content = m.renderSummaryTab()
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderTabs(),
		"",
		content,
		"",
		m.styles.Help.Render("←→ Tabs • ↑↓ Navigate • 1-4 Jump • q Quit"),
	)

	box := m.styles.Box.Width(min(m.width-4, 110))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box.Render(body))
}

func (m *ResultsModel) renderHeader() string {
	badge := m.styles.SeverityStyle(m.output.Severity).
		Render(strings.ToUpper(m.output.Severity))

	title := m.styles.Title.Render("Diagnostic Analysis")
	subtitle := m.styles.Subtitle.Render(
		fmt.Sprintf("%s • %s • ", m.output.AnalysisType, m.output.Status))

	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", subtitle, badge)
}

func (m *ResultsModel) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for i, label := range tabLabels {
		if i == m.activeTab {
			tabs = append(tabs, m.styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.styles.TabIdle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
}

func (m *ResultsModel) renderSummaryTab() string {
	stats := m.output.Statistics
	lines := []string{
		m.styles.Body.Render(m.output.Summary),
		"",
		m.statLine("Total Lines", fmt.Sprintf("%d", statInt(stats, "total_lines"))),
		m.statLine("Parsed Lines", fmt.Sprintf("%d", statInt(stats, "parsed_lines"))),
	}

	if logType, ok := m.output.Details["log_type"].(string); ok && logType != "" {
		lines = append(lines, m.statLine("Log Type", logType))
	}
	if _, ok := stats["members"]; ok {
		lines = append(lines, m.statLine("Bundle Members",
			fmt.Sprintf("%d analyzed, %d skipped", statInt(stats, "routed"), statInt(stats, "skipped"))))
	}
	if _, ok := stats["duration_ms"]; ok {
		lines = append(lines, m.statLine("Duration", fmt.Sprintf("%dms", statInt(stats, "duration_ms"))))
	}
	if m.corr != nil {
		lines = append(lines, m.statLine("Correlation Score", fmt.Sprintf("%d/100", m.corr.Score)))
	}

	if len(m.issues) > 0 {
		lines = append(lines, "", m.styles.Subtitle.Render("Known Issues"))
		for _, issue := range m.issues {
			text := fmt.Sprintf("%s (%d occurrences, %.0f%% confidence)",
				issue.IssueType, issue.Occurrences, issue.Confidence*100)
			lines = append(lines, "  "+m.styles.SeverityStyle(issue.Severity).Render(text))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *ResultsModel) renderComponentsTab() string {
	if len(m.components) == 0 {
		return m.styles.Muted.Render("No components identified")
	}

	start, end := window(len(m.components), m.selectedIndex, m.visibleRows())
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		row := m.components[i]
		text := fmt.Sprintf("%s %3.0f/100  %d errors, %d warnings  %s",
			m.healthBar(row.Health), row.Health, row.Errors, row.Warning, row.Name)

		if i == m.selectedIndex {
			rows = append(rows, m.styles.Selected.Render("▶ "+text))
		} else {
			rows = append(rows, "  "+text)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *ResultsModel) renderEventsTab() string {
	if len(m.events) == 0 {
		return m.styles.Muted.Render("No notable events retained")
	}

	start, end := window(len(m.events), m.selectedIndex, m.visibleRows())
	rows := make([]string, 0, (end-start)*2)
	for i := start; i < end; i++ {
		event := m.events[i]

		message := event.Message
		if len(message) > 90 {
			message = message[:87] + "..."
		}
		text := fmt.Sprintf("[%s] %s:%d %s", event.Severity, event.Component, event.Line, message)

		if i == m.selectedIndex {
			rows = append(rows, m.styles.Selected.Render("▶ "+text))
			rows = append(rows, m.styles.Muted.Render(m.eventDetails(event)))
		} else {
			rows = append(rows, "  "+m.styles.SeverityStyle(event.Severity).Render(text))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// eventDetails renders the detail block under the selected event
func (m *ResultsModel) eventDetails(event formatter.EventRow) string {
	details := "    timestamp: " + orDash(event.Timestamp)
	details += "\n    source: " + orDash(event.Source)
	if event.KnownIssue != "" {
		details += "\n    known issue: " + event.KnownIssue
	}
	return details
}

func (m *ResultsModel) renderRecommendationsTab() string {
	if len(m.output.Recommendations) == 0 {
		return m.styles.Muted.Render("No recommendations")
	}

	start, end := window(len(m.output.Recommendations), m.selectedIndex, m.visibleRows())
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		text := fmt.Sprintf("%d. %s", i+1, m.output.Recommendations[i])
		if i == m.selectedIndex {
			rows = append(rows, m.styles.Selected.Render("▶ "+text))
		} else {
			rows = append(rows, "  "+m.styles.Body.Render(text))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *ResultsModel) statLine(label, value string) string {
	return m.styles.Muted.Render(label+": ") + m.styles.Body.Render(value)
}

// healthBar renders a ten-segment health bar colored by score
func (m *ResultsModel) healthBar(health float64) string {
	filled := int(health / 10)
	if filled > 10 {
		filled = 10
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)

	switch {
	case health >= 80:
		return m.styles.Success.Render(bar)
	case health >= 50:
		return m.styles.Warning.Render(bar)
	default:
		return m.styles.Error.Render(bar)
	}
}

// visibleRows bounds list length to what fits in the frame
func (m *ResultsModel) visibleRows() int {
	rows := m.height - 12
	if rows < 5 {
		rows = 5
	}
	return rows
}

// window keeps the selected index inside the visible slice
func window(total, selected, visible int) (int, int) {
	if total <= visible {
		return 0, total
	}
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	end := start + visible
	if end > total {
		end = total
	}
	return start, end
}

func statInt(stats map[string]any, key string) int {
	switch n := stats[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ShowResults opens the interactive results browser for one envelope.
func ShowResults(output *common.StandardizedOutput) error {
	model := NewResultsModel(output)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
