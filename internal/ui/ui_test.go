package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dstriage/dstriage/internal/common"
)

func testEnvelope() *common.StandardizedOutput {
	return &common.StandardizedOutput{
		AnalysisType: "agent_log",
		Status:       common.StatusCompleted,
		Timestamp:    "2025-06-01T10:00:00Z",
		Summary:      "Parsed 40 of 42 lines: 0 critical, 3 errors, 2 warnings.",
		Details: map[string]any{
			"log_type": "agent_log",
			"component_analysis": map[string]any{
				"network": map[string]any{"total_entries": 12, "errors": 3, "warnings": 1, "health_score": 68.0},
				"scanner": map[string]any{"total_entries": 20, "errors": 0, "warnings": 1, "health_score": 98.0},
				"updater": map[string]any{"total_entries": 8, "errors": 0, "warnings": 0, "health_score": 100.0},
			},
		},
		Recommendations: []string{"Address 3 error(s) found in the logs"},
		Severity:        common.RollupMedium,
		Statistics:      map[string]any{"total_lines": 42, "parsed_lines": 40},
		RawData: map[string]any{
			"events": []any{
				map[string]any{
					"severity": "error", "component": "network",
					"message": "Connection timed out", "line": 7, "source": "agent_log",
				},
			},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func updateResults(t *testing.T, m *ResultsModel, msg tea.Msg) *ResultsModel {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(*ResultsModel)
	if !ok {
		t.Fatalf("Expected *ResultsModel, got %T", updated)
	}
	return model
}

func TestResultsModelTabNavigation(t *testing.T) {
	m := NewResultsModel(testEnvelope())
	m = updateResults(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m = updateResults(t, m, key("tab"))
	if m.activeTab != tabComponents {
		t.Errorf("Expected components tab after tab key, got %d", m.activeTab)
	}

	m = updateResults(t, m, key("4"))
	if m.activeTab != tabRecommendations {
		t.Errorf("Expected recommendations tab after 4 key, got %d", m.activeTab)
	}

	m = updateResults(t, m, key("left"))
	if m.activeTab != tabEvents {
		t.Errorf("Expected events tab after left key, got %d", m.activeTab)
	}

	m = updateResults(t, m, key("esc"))
	if m.activeTab != tabSummary {
		t.Errorf("Expected summary tab after esc, got %d", m.activeTab)
	}

	m = updateResults(t, m, key("tab"))
	m = updateResults(t, m, key("tab"))
	m = updateResults(t, m, key("tab"))
	m = updateResults(t, m, key("tab"))
	if m.activeTab != tabSummary {
		t.Errorf("Expected tab key to wrap around, got %d", m.activeTab)
	}
}

func TestResultsModelSelectionBounds(t *testing.T) {
	m := NewResultsModel(testEnvelope())
	m = updateResults(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updateResults(t, m, key("2"))

	if m.maxIndex != 2 {
		t.Fatalf("Expected max index 2 for 3 components, got %d", m.maxIndex)
	}

	for i := 0; i < 5; i++ {
		m = updateResults(t, m, key("down"))
	}
	if m.selectedIndex != 2 {
		t.Errorf("Expected selection capped at 2, got %d", m.selectedIndex)
	}

	for i := 0; i < 5; i++ {
		m = updateResults(t, m, key("up"))
	}
	if m.selectedIndex != 0 {
		t.Errorf("Expected selection floored at 0, got %d", m.selectedIndex)
	}
}

func TestResultsModelQuit(t *testing.T) {
	m := NewResultsModel(testEnvelope())
	m = updateResults(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	updated, cmd := m.Update(key("q"))
	model := updated.(*ResultsModel)
	if !model.quitting {
		t.Errorf("Expected quitting state after q")
	}
	if cmd == nil {
		t.Errorf("Expected quit command after q")
	}
}

func TestResultsModelViewRendersTabs(t *testing.T) {
	m := NewResultsModel(testEnvelope())
	m = updateResults(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	view := m.View()
	for _, label := range tabLabels {
		if !strings.Contains(view, label) {
			t.Errorf("Expected view to contain tab label %q", label)
		}
	}
	if !strings.Contains(view, "Parsed 40 of 42 lines") {
		t.Errorf("Expected summary text in default view")
	}

	m = updateResults(t, m, key("2"))
	view = m.View()
	if !strings.Contains(view, "network") {
		t.Errorf("Expected component name in components view")
	}
}

func TestWindowKeepsSelectionVisible(t *testing.T) {
	tests := []struct {
		total, selected, visible int
		wantStart, wantEnd       int
	}{
		{3, 0, 10, 0, 3},
		{20, 0, 5, 0, 5},
		{20, 7, 5, 3, 8},
		{20, 19, 5, 15, 20},
	}

	for _, tt := range tests {
		start, end := window(tt.total, tt.selected, tt.visible)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("window(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.total, tt.selected, tt.visible, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestProgressModelAdvancesStages(t *testing.T) {
	stages := []string{"extract", "analyze", "correlate", "standardize", "done"}
	m := NewProgressModel("Analyzing bundle", stages, nil)

	updated, _ := m.Update(progressMsg{stage: "correlate", message: "cross-log correlation", percent: 85})
	model := updated.(*ProgressModel)

	if model.states[0] != stageDone || model.states[1] != stageDone {
		t.Errorf("Expected stages before the reported one marked done, got %v", model.states)
	}
	if model.states[2] != stageActive {
		t.Errorf("Expected reported stage active, got %v", model.states[2])
	}
	if model.states[3] != stagePending {
		t.Errorf("Expected later stage pending, got %v", model.states[3])
	}
	if model.message != "cross-log correlation" || model.percent != 85 {
		t.Errorf("Expected message and percent recorded, got %q %d", model.message, model.percent)
	}

	updated, _ = model.Update(progressMsg{stage: "done", message: "finished", percent: 100})
	model = updated.(*ProgressModel)
	for i, state := range model.states {
		if state != stageDone {
			t.Errorf("Expected stage %d done at 100%%, got %v", i, state)
		}
	}
}

func TestProgressModelResult(t *testing.T) {
	m := NewProgressModel("Analyzing bundle", []string{"analyze", "done"}, nil)

	envelope := testEnvelope()
	updated, cmd := m.Update(resultMsg{output: envelope})
	model := updated.(*ProgressModel)

	if !model.done {
		t.Errorf("Expected done after result message")
	}
	if model.output != envelope {
		t.Errorf("Expected result envelope stored")
	}
	if cmd == nil {
		t.Errorf("Expected quit command after result")
	}
}

func TestChanSinkNeverBlocks(t *testing.T) {
	sink := chanSink{events: make(chan progressMsg, 1)}

	sink.Report("analyze", "first", 10)
	sink.Report("analyze", "second", 20) // dropped, must not block

	got := <-sink.events
	if got.message != "first" {
		t.Errorf("Expected first report kept, got %q", got.message)
	}
	select {
	case extra := <-sink.events:
		t.Errorf("Expected overflow report dropped, got %q", extra.message)
	default:
	}
}

func TestSetThemeByName(t *testing.T) {
	defer SetThemeByName("default")

	if !SetThemeByName("high-contrast") {
		t.Errorf("Expected high-contrast theme to exist")
	}
	if GetTheme().Name != "high-contrast" {
		t.Errorf("Expected active theme high-contrast, got %s", GetTheme().Name)
	}
	if SetThemeByName("neon") {
		t.Errorf("Expected unknown theme to be rejected")
	}
}
