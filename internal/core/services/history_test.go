package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hublink/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hublink/internal/core/domain"
)

func TestHistoryRecorder_RecordsEvents(t *testing.T) {
	store := memory.NewEventStore()
	recorder := NewHistoryRecorder(store, "session-1")
	at := time.Now()

	recorder.OnPhaseChange(domain.PhaseChange{
		From: domain.PhaseConnecting, To: domain.PhaseTerminated,
		Terminal: domain.TerminalForbidden, At: at,
	})
	recorder.OnNotice(domain.NewNotice(domain.NoticeForbidden, errors.New("hub returned 403"), at))
	recorder.OnNotice(domain.NewNotice(domain.NoticeSuccess, nil, at))

	events, err := store.ListSession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, domain.EventPhaseChange, events[0].Type)
	assert.Equal(t, domain.PhaseTerminated, events[0].ToPhase)
	assert.Equal(t, domain.TerminalForbidden, events[0].Terminal)
	assert.NotEmpty(t, events[0].ID)

	assert.Equal(t, domain.NoticeForbidden, events[1].Notice)
	assert.Equal(t, "hub returned 403", events[1].Message)
	assert.Equal(t, domain.NoticeSuccess.DefaultText(), events[2].Message)
	assert.NotEqual(t, events[1].ID, events[2].ID)
}

func TestHistoryRecorder_WiredToSupervisor(t *testing.T) {
	h := newHarness(t)
	store := memory.NewEventStore()
	h.sup.observer = NewObserverGroup(h.observer, NewHistoryRecorder(store, h.sup.SessionID()))

	h.connected(t)

	events, err := store.ListSession(context.Background(), h.sup.SessionID())
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "idle -> authenticating", events[0].Summary())
	assert.Equal(t, "connecting -> connected", events[2].Summary())
	assert.Equal(t, domain.EventNotice, events[3].Type)
}

func TestHistoryService(t *testing.T) {
	store := memory.NewEventStore()
	service := NewHistoryService(store)
	ctx := context.Background()
	NewHistoryRecorder(store, "s1").OnNotice(domain.NewNotice(domain.NoticeSuccess, nil, time.Now()))
	NewHistoryRecorder(store, "s2").OnNotice(domain.NewNotice(domain.NoticeDenied, nil, time.Now()))

	recent, err := service.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "s2", recent[0].SessionID)

	events, err := service.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = service.Session(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = service.Session(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestObserverGroup_FansOut(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	group := NewObserverGroup(a, nil)
	group.Add(b)

	group.OnPhaseChange(domain.PhaseChange{To: domain.PhaseConnected})
	group.OnNotice(domain.NewNotice(domain.NoticeSuccess, nil, time.Now()))

	assert.Equal(t, []domain.Phase{domain.PhaseConnected}, a.phases())
	assert.Equal(t, []domain.Phase{domain.PhaseConnected}, b.phases())
	assert.Equal(t, []domain.NoticeKind{domain.NoticeSuccess}, b.noticeKinds())
}
