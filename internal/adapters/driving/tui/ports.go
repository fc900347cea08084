// Package tui provides an interactive terminal view of a hub session.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Session is the supervisor driving the connection.
	Session driving.SessionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Session == nil {
		return ErrMissingSessionService
	}
	return nil
}
