package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
)

// Ensure Observer implements the interface.
var _ driven.SessionObserver = (*Observer)(nil)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards supervisor events into the TUI as messages. The
// session is created before the program, so the sender is attached later;
// events arriving before that are dropped.
type Observer struct {
	mu     sync.RWMutex
	sender Sender
}

// NewObserver creates an observer with no sender attached.
func NewObserver() *Observer {
	return &Observer{}
}

// Attach sets the program that receives events.
func (o *Observer) Attach(sender Sender) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sender = sender
}

// OnNotice implements driven.SessionObserver.
func (o *Observer) OnNotice(notice domain.Notice) {
	o.send(messages.NoticeReceived{Notice: notice})
}

// OnPhaseChange implements driven.SessionObserver.
func (o *Observer) OnPhaseChange(change domain.PhaseChange) {
	o.send(messages.PhaseChanged{Change: change})
}

func (o *Observer) send(msg tea.Msg) {
	o.mu.RLock()
	sender := o.sender
	o.mu.RUnlock()
	if sender != nil {
		sender.Send(msg)
	}
}
