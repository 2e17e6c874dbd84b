package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dstriage/dstriage/internal/common"
)

// Message types shared across UI models
type progressMsg struct {
	stage   string
	message string
	percent int
}

type resultMsg struct {
	output *common.StandardizedOutput
	err    error
}

// Animation message
type tickMsg time.Time

// Animation command
func tick() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
