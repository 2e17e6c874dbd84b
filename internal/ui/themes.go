package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/dstriage/dstriage/internal/common"
)

// Theme represents a color theme for the TUI
type Theme struct {
	Name string

	// Primary colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor

	// Semantic colors
	Critical lipgloss.AdaptiveColor
	Error    lipgloss.AdaptiveColor
	Warning  lipgloss.AdaptiveColor
	Info     lipgloss.AdaptiveColor
	Success  lipgloss.AdaptiveColor

	// UI colors
	Border   lipgloss.AdaptiveColor
	Muted    lipgloss.AdaptiveColor
	Selected lipgloss.AdaptiveColor
}

// buildTheme creates a theme with the given colors
func buildTheme(name string, primary, secondary, critical, errorColor, warning, info, success, border, muted, selected [2]string) Theme {
	return Theme{
		Name:      name,
		Primary:   lipgloss.AdaptiveColor{Light: primary[0], Dark: primary[1]},
		Secondary: lipgloss.AdaptiveColor{Light: secondary[0], Dark: secondary[1]},
		Critical:  lipgloss.AdaptiveColor{Light: critical[0], Dark: critical[1]},
		Error:     lipgloss.AdaptiveColor{Light: errorColor[0], Dark: errorColor[1]},
		Warning:   lipgloss.AdaptiveColor{Light: warning[0], Dark: warning[1]},
		Info:      lipgloss.AdaptiveColor{Light: info[0], Dark: info[1]},
		Success:   lipgloss.AdaptiveColor{Light: success[0], Dark: success[1]},
		Border:    lipgloss.AdaptiveColor{Light: border[0], Dark: border[1]},
		Muted:     lipgloss.AdaptiveColor{Light: muted[0], Dark: muted[1]},
		Selected:  lipgloss.AdaptiveColor{Light: selected[0], Dark: selected[1]},
	}
}

// Available themes
var (
	DefaultTheme = buildTheme("default",
		[2]string{"#1E40AF", "#3B82F6"}, [2]string{"#6B7280", "#9CA3AF"},
		[2]string{"#991B1B", "#F87171"}, [2]string{"#DC2626", "#EF4444"},
		[2]string{"#D97706", "#F59E0B"}, [2]string{"#0891B2", "#06B6D4"},
		[2]string{"#059669", "#10B981"}, [2]string{"#D1D5DB", "#374151"},
		[2]string{"#6B7280", "#9CA3AF"}, [2]string{"#DBEAFE", "#1E3A8A"})

	HighContrastTheme = buildTheme("high-contrast",
		[2]string{"#000000", "#FFFFFF"}, [2]string{"#666666", "#BBBBBB"},
		[2]string{"#990000", "#FF6666"}, [2]string{"#CC0000", "#FF4444"},
		[2]string{"#CC6600", "#FFAA00"}, [2]string{"#0066CC", "#4499FF"},
		[2]string{"#006600", "#00FF00"}, [2]string{"#000000", "#FFFFFF"},
		[2]string{"#666666", "#BBBBBB"}, [2]string{"#CCCCCC", "#333333"})

	MinimalTheme = buildTheme("minimal",
		[2]string{"#2D3748", "#E2E8F0"}, [2]string{"#718096", "#A0AEC0"},
		[2]string{"#9B2C2C", "#FC8181"}, [2]string{"#C53030", "#FC8181"},
		[2]string{"#C05621", "#F6AD55"}, [2]string{"#2B6CB0", "#63B3ED"},
		[2]string{"#2F855A", "#68D391"}, [2]string{"#E2E8F0", "#2D3748"},
		[2]string{"#A0AEC0", "#718096"}, [2]string{"#EDF2F7", "#2D3748"})
)

// Current active theme
var currentTheme = DefaultTheme

// GetTheme returns the current active theme
func GetTheme() Theme {
	return currentTheme
}

// SetThemeByName sets the theme by name
func SetThemeByName(name string) bool {
	switch name {
	case "default":
		currentTheme = DefaultTheme
		return true
	case "high-contrast":
		currentTheme = HighContrastTheme
		return true
	case "minimal":
		currentTheme = MinimalTheme
		return true
	default:
		return false
	}
}

// GetAvailableThemes returns the list of available theme names
func GetAvailableThemes() []string {
	return []string{"default", "high-contrast", "minimal"}
}

// IsColorDisabled checks if colors should be disabled
func IsColorDisabled() bool {
	return os.Getenv("NO_COLOR") != ""
}

// Styles contains the styled components the views render with
type Styles struct {
	Theme Theme

	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Help      lipgloss.Style
	Selected  lipgloss.Style
	Box       lipgloss.Style
	TabActive lipgloss.Style
	TabIdle   lipgloss.Style

	Critical lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Success  lipgloss.Style
}

// GetStyles builds the styles for the current theme
func GetStyles() *Styles {
	theme := GetTheme()

	return &Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Padding(0, 1),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Bold(true),

		Body: lipgloss.NewStyle(),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Background(theme.Selected).
			Foreground(theme.Primary).
			Bold(true),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(1, 2),

		TabActive: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Underline(true).
			Padding(0, 1),

		TabIdle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Critical: lipgloss.NewStyle().
			Foreground(theme.Critical).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(theme.Info),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success).
			Bold(true),
	}
}

// SeverityStyle maps an event or rollup severity name to its style.
func (s *Styles) SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical":
		return s.Critical
	case "error", common.RollupHigh:
		return s.Error
	case "warning", common.RollupMedium:
		return s.Warning
	case "info", common.RollupLow:
		return s.Info
	default:
		return s.Muted
	}
}
