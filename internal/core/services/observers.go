package services

import (
	"sync"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
)

// Ensure ObserverGroup implements the interface.
var _ driven.SessionObserver = (*ObserverGroup)(nil)

// ObserverGroup fans supervisor events out to several observers in the order
// they were added. Observers can be added while events are flowing.
type ObserverGroup struct {
	mu        sync.RWMutex
	observers []driven.SessionObserver
}

// NewObserverGroup creates a group. Nil observers are skipped.
func NewObserverGroup(observers ...driven.SessionObserver) *ObserverGroup {
	g := &ObserverGroup{}
	for _, o := range observers {
		g.Add(o)
	}
	return g
}

// Add registers another observer.
func (g *ObserverGroup) Add(o driven.SessionObserver) {
	if o == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, o)
}

func (g *ObserverGroup) snapshot() []driven.SessionObserver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]driven.SessionObserver(nil), g.observers...)
}

// OnNotice forwards the notice to every observer.
func (g *ObserverGroup) OnNotice(n domain.Notice) {
	for _, o := range g.snapshot() {
		o.OnNotice(n)
	}
}

// OnPhaseChange forwards the change to every observer.
func (g *ObserverGroup) OnPhaseChange(c domain.PhaseChange) {
	for _, o := range g.snapshot() {
		o.OnPhaseChange(c)
	}
}
