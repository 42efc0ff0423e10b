// Package ui provides shared styles and key bindings for the terminal views.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors (Catppuccin inspired).
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#cba6f7"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
	ColorText      = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"}
)

// DefaultProgressBarWidth is the width of the overall progress bar.
const DefaultProgressBarWidth = 40

// Styles contains reusable lipgloss styles.
type Styles struct {
	App      lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Text     lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	Help        lipgloss.Style
	ProgressBar lipgloss.Style
	Spinner     lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(ColorSecondary),

		Text: lipgloss.NewStyle().
			Foreground(ColorText),

		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Error: lipgloss.NewStyle().
			Foreground(ColorError),

		Info: lipgloss.NewStyle().
			Foreground(ColorPrimary),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),

		ProgressBar: lipgloss.NewStyle().
			Foreground(ColorPrimary),

		Spinner: lipgloss.NewStyle().
			Foreground(ColorPrimary),
	}
}

// WithWidth returns styles adapted for a terminal width.
func (s Styles) WithWidth(width int) Styles {
	s.App = s.App.Width(width)
	return s
}
