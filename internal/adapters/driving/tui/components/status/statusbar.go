// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/hublink/internal/core/domain"
)

// Bar displays the session phase and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	phase   domain.Phase
	message string
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		phase:  domain.PhaseIdle,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	label := s.styles.Phase(s.phase).Render(s.phase.String())
	if s.message == "" {
		return label
	}
	return label + s.styles.Muted.Render(" · "+s.message)
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	switch {
	case s.phase.CanStart():
		bindings = s.keymap.IdleHelp()
	case s.phase == domain.PhaseConnected:
		bindings = s.keymap.ConnectedHelp()
	default:
		bindings = append([]key.Binding{s.keymap.Stop}, s.keymap.ShortHelp()...)
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetPhase sets the phase shown on the left.
func (s *Bar) SetPhase(phase domain.Phase) {
	s.phase = phase
}

// Phase returns the current phase.
func (s *Bar) Phase() domain.Phase {
	return s.phase
}

// SetMessage sets a short message shown next to the phase.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
