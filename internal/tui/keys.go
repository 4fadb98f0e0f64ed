package tui

import "github.com/charmbracelet/bubbles/key"

// batchKeys holds key bindings while a batch runs.
type batchKeys struct {
	Quit key.Binding
}

// ShortHelp returns the batch bindings for the help bar.
func (k batchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns the batch bindings grouped for expanded help.
func (k batchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// BatchKeyMap returns the key bindings for a running batch.
func BatchKeyMap() batchKeys {
	return batchKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "cancel queued"),
		),
	}
}

// AbortingKeyMap returns the key bindings once cancellation was requested.
func AbortingKeyMap() batchKeys {
	return batchKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "force quit"),
		),
	}
}
