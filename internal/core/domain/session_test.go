package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhase_CanStart(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseIdle, true},
		{PhaseTerminated, true},
		{PhaseAuthenticating, false},
		{PhaseConnecting, false},
		{PhaseConnected, false},
		{PhaseReconnecting, false},
		{PhaseReAuthenticating, false},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.CanStart())
			assert.Equal(t, !tt.want, tt.phase.IsActive())
		})
	}
}

func TestTerminalReason_RequiresUserAction(t *testing.T) {
	assert.True(t, TerminalForbidden.RequiresUserAction())
	assert.True(t, TerminalExhaustedReauth.RequiresUserAction())
	assert.False(t, TerminalShutdown.RequiresUserAction())
	assert.False(t, TerminalNone.RequiresUserAction())
}

func TestCloseCause_IsClean(t *testing.T) {
	assert.True(t, CloseCause{Requested: true}.IsClean())
	assert.False(t, CloseCause{Err: errors.New("reset by peer")}.IsClean())
	assert.False(t, CloseCause{}.IsClean())
}

func TestCredentialState(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := CredentialState{
		AccessToken:        "at",
		AccessTokenExpiry:  exp,
		RefreshToken:       "rt",
		RefreshTokenExpiry: exp.Add(time.Hour),
	}

	assert.False(t, cred.IsEmpty())
	assert.True(t, cred.HasRefreshToken())
	assert.True(t, cred.RefreshExpiryKnown())
	assert.True(t, CredentialState{}.IsEmpty())
	assert.False(t, CredentialState{RefreshToken: "rt"}.RefreshExpiryKnown())

	noAccess := cred.WithoutAccessToken()
	assert.Empty(t, noAccess.AccessToken)
	assert.True(t, noAccess.AccessTokenExpiry.IsZero())
	assert.Equal(t, "rt", noAccess.RefreshToken)
	assert.Equal(t, exp.Add(time.Hour), noAccess.RefreshTokenExpiry)

	noRefresh := cred.WithoutRefreshToken()
	assert.Equal(t, "at", noRefresh.AccessToken)
	assert.Equal(t, exp, noRefresh.AccessTokenExpiry)
	assert.False(t, noRefresh.HasRefreshToken())
	assert.False(t, noRefresh.RefreshExpiryKnown())

	// the original is untouched
	assert.Equal(t, "at", cred.AccessToken)
	assert.Equal(t, "rt", cred.RefreshToken)
}

func TestNotice_KindsHaveText(t *testing.T) {
	kinds := []NoticeKind{
		NoticeSuccess, NoticeTimedOut, NoticeDenied, NoticeServerError,
		NoticeForbidden, NoticeFailure, NoticeReauthRequired,
	}
	for _, k := range kinds {
		t.Run(string(k), func(t *testing.T) {
			assert.NotEmpty(t, k.Title())
			assert.NotEmpty(t, k.DefaultText())
		})
	}
}

func TestNotice_Severity(t *testing.T) {
	assert.Equal(t, SeverityInfo, NoticeSuccess.Severity())
	assert.Equal(t, SeverityError, NoticeForbidden.Severity())
	assert.Equal(t, SeverityError, NoticeFailure.Severity())
	assert.Equal(t, SeverityWarning, NoticeTimedOut.Severity())
	assert.Equal(t, SeverityWarning, NoticeReauthRequired.Severity())
}

func TestNewNotice(t *testing.T) {
	at := time.Now()
	err := errors.New("boom")

	n := NewNotice(NoticeDenied, err, at)

	assert.Equal(t, NoticeDenied, n.Kind)
	assert.Equal(t, NoticeDenied.DefaultText(), n.Text)
	assert.Equal(t, err, n.Err)
	assert.Equal(t, at, n.At)
}

func TestSessionEvent_Summary(t *testing.T) {
	tests := []struct {
		name  string
		event SessionEvent
		want  string
	}{
		{
			name:  "phase change",
			event: SessionEvent{Type: EventPhaseChange, FromPhase: PhaseConnected, ToPhase: PhaseReconnecting},
			want:  "connected -> reconnecting",
		},
		{
			name: "terminal",
			event: SessionEvent{
				Type: EventPhaseChange, FromPhase: PhaseConnecting,
				ToPhase: PhaseTerminated, Terminal: TerminalForbidden,
			},
			want: "connecting -> terminated (forbidden)",
		},
		{
			name:  "notice with message",
			event: SessionEvent{Type: EventNotice, Notice: NoticeDenied, Message: "nope"},
			want:  "denied: nope",
		},
		{
			name:  "notice without message",
			event: SessionEvent{Type: EventNotice, Notice: NoticeSuccess},
			want:  "success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Summary())
		})
	}
}
