package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dstriage/dstriage/internal/common"
)

// ProgressSink is the progress shape the background run reports through.
type ProgressSink interface {
	Report(stage, message string, percent int)
}

// chanSink forwards progress reports into the UI event channel. Sends
// never block, so a stalled repaint cannot slow the analysis down.
type chanSink struct {
	events chan progressMsg
}

func (s chanSink) Report(stage, message string, percent int) {
	select {
	case s.events <- progressMsg{stage: stage, message: message, percent: percent}:
	default:
	}
}

// stageState tracks one pipeline stage in the progress view.
type stageState int

const (
	stagePending stageState = iota
	stageActive
	stageDone
)

// ProgressModel shows staged pipeline progress while an analysis runs in
// the background.
type ProgressModel struct {
	styles *Styles
	title  string
	stages []string
	states []stageState

	events chan progressMsg
	run    func(ProgressSink) (*common.StandardizedOutput, error)

	message      string
	percent      int
	spinnerFrame int
	width        int
	done         bool
	canceled     bool

	output *common.StandardizedOutput
	err    error
}

// NewProgressModel creates a staged progress view around a background run.
func NewProgressModel(title string, stages []string, run func(ProgressSink) (*common.StandardizedOutput, error)) *ProgressModel {
	return &ProgressModel{
		styles: GetStyles(),
		title:  title,
		stages: stages,
		states: make([]stageState, len(stages)),
		events: make(chan progressMsg, 16),
		run:    run,
	}
}

// Init initializes the progress model
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.start(), m.nextEvent())
}

// start runs the analysis. Commands run on their own goroutines, so
// blocking until the run finishes is fine. The channel is closed before
// the result message so the pending event reader always wakes up.
func (m *ProgressModel) start() tea.Cmd {
	return func() tea.Msg {
		output, err := m.run(chanSink{events: m.events})
		close(m.events)
		return resultMsg{output: output, err: err}
	}
}

// nextEvent waits for the next progress report
func (m *ProgressModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Update handles messages
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.canceled = true
			m.done = true
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerChars)
		return m, tick()

	case progressMsg:
		// The zero message means the channel closed under us.
		if msg.stage != "" {
			m.applyProgress(msg)
		}
		if m.done {
			return m, nil
		}
		return m, m.nextEvent()

	case resultMsg:
		m.output = msg.output
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// applyProgress advances the stage checklist to the reported stage
func (m *ProgressModel) applyProgress(msg progressMsg) {
	m.message = msg.message
	m.percent = msg.percent

	for i, stage := range m.stages {
		switch {
		case stage == msg.stage:
			m.states[i] = stageActive
		case m.states[i] != stageDone && stageBefore(m.stages, stage, msg.stage):
			m.states[i] = stageDone
		}
	}
	if msg.percent >= 100 {
		for i := range m.states {
			m.states[i] = stageDone
		}
	}
}

// stageBefore reports whether a comes before b in the stage order
func stageBefore(stages []string, a, b string) bool {
	ai, bi := -1, -1
	for i, stage := range stages {
		if stage == a {
			ai = i
		}
		if stage == b {
			bi = i
		}
	}
	return ai >= 0 && bi >= 0 && ai < bi
}

// View renders the progress model
func (m *ProgressModel) View() string {
	if m.done {
		return ""
	}

	spinner := m.styles.Info.Render(spinnerChars[m.spinnerFrame])

	lines := []string{
		m.styles.Title.Render(m.title),
		"",
		fmt.Sprintf("%s %s", spinner, m.styles.Body.Render(m.message)),
		"",
	}

	for i, stage := range m.stages {
		switch m.states[i] {
		case stageDone:
			lines = append(lines, m.styles.Success.Render("  ✓ "+stage))
		case stageActive:
			lines = append(lines, m.styles.Info.Render("  "+spinnerChars[m.spinnerFrame]+" "+stage))
		default:
			lines = append(lines, m.styles.Muted.Render("  • "+stage))
		}
	}

	lines = append(lines, "", m.renderBar(), "", m.styles.Help.Render("q cancel"))

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return m.styles.Box.Render(content) + "\n"
}

// renderBar renders the overall percent bar
func (m *ProgressModel) renderBar() string {
	const width = 30

	filled := m.percent * width / 100
	if filled > width {
		filled = width
	}

	bar := m.styles.Success.Render(strings.Repeat("█", filled)) +
		m.styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("[%s] %d%%", bar, m.percent)
}

// RunStaged shows the staged progress view while fn runs and returns its
// result. Canceling from the keyboard abandons the run.
func RunStaged(title string, stages []string, fn func(ProgressSink) (*common.StandardizedOutput, error)) (*common.StandardizedOutput, error) {
	model := NewProgressModel(title, stages, fn)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return nil, err
	}
	if model.canceled {
		return nil, fmt.Errorf("analysis canceled")
	}
	return model.output, model.err
}
