package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrDenied", ErrDenied},
		{"ErrServerError", ErrServerError},
		{"ErrTimedOut", ErrTimedOut},
		{"ErrInvalidGrant", ErrInvalidGrant},
		{"ErrForbidden", ErrForbidden},
		{"ErrUnauthorized", ErrUnauthorized},
		{"ErrTransientConnection", ErrTransientConnection},
		{"ErrConnectionClosed", ErrConnectionClosed},
		{"ErrAuthInProgress", ErrAuthInProgress},
		{"ErrSessionBusy", ErrSessionBusy},
		{"ErrSupervisorClosed", ErrSupervisorClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Distinct(t *testing.T) {
	assert.False(t, errors.Is(ErrForbidden, ErrUnauthorized))
	assert.False(t, errors.Is(ErrDenied, ErrServerError))
	assert.False(t, errors.Is(ErrInvalidGrant, ErrDenied))
}

func TestClassifyAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want NoticeKind
	}{
		{"nil", nil, NoticeSuccess},
		{"timed out", ErrTimedOut, NoticeTimedOut},
		{"wrapped timeout", fmt.Errorf("waiting for callback: %w", ErrTimedOut), NoticeTimedOut},
		{"deadline", context.DeadlineExceeded, NoticeTimedOut},
		{"cancelled", context.Canceled, NoticeTimedOut},
		{"denied", fmt.Errorf("authority: %w", ErrDenied), NoticeDenied},
		{"server error", fmt.Errorf("authority: %w", ErrServerError), NoticeServerError},
		{"anything else", errors.New("browser exploded"), NoticeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAuthError(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrForbidden))
	assert.False(t, IsRetryable(fmt.Errorf("open: %w", ErrForbidden)))
	assert.True(t, IsRetryable(ErrTransientConnection))
	assert.True(t, IsRetryable(ErrUnauthorized))
	assert.True(t, IsRetryable(errors.New("connection refused")))
}
