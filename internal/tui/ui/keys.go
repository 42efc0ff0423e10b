package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the bindings the install view reacts to.
type KeyMap struct {
	Detach key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Detach: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q/ctrl+c", "hide progress"),
		),
	}
}
