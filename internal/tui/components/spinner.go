// Package components provides small reusable Bubble Tea views.
package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/kostore/internal/tui/ui"
)

// Spinner displays an animated spinner with an optional message.
type Spinner struct {
	spinner spinner.Model
	message string
}

// NewSpinner creates a spinner in the theme color.
func NewSpinner() Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.DefaultStyles().Spinner
	return Spinner{spinner: s}
}

// Message returns the current message.
func (s Spinner) Message() string {
	return s.message
}

// SetMessage sets the spinner message.
func (s Spinner) SetMessage(message string) Spinner {
	s.message = message
	return s
}

// Tick returns the command that starts the animation.
func (s Spinner) Tick() tea.Cmd {
	return s.spinner.Tick
}

// Update advances the animation.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner frame and message.
func (s Spinner) View() string {
	if s.message != "" {
		return fmt.Sprintf("%s %s", s.spinner.View(), s.message)
	}
	return s.spinner.View()
}
