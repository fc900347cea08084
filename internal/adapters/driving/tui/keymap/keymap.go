// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit shuts the session down and exits.
	Quit key.Binding

	// Help toggles the full help.
	Help key.Binding

	// Connect starts a session from idle or terminated.
	Connect key.Binding

	// Stop closes the connection and returns to idle.
	Stop key.Binding

	// Emit invokes the hub Emit method.
	Emit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c", "enter"),
			key.WithHelp("c", "connect"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Emit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "emit"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// IdleHelp returns the keybindings offered when no session is running.
func (k *KeyMap) IdleHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Quit, k.Help}
}

// ConnectedHelp returns the keybindings offered while connected.
func (k *KeyMap) ConnectedHelp() []key.Binding {
	return []key.Binding{k.Emit, k.Stop, k.Quit}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Stop, k.Emit},
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
