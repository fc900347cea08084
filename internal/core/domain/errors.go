package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// Adapters wrap these with %w so the supervisor can classify with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Authentication Errors.

	// ErrDenied indicates the user or the authority refused authorization.
	ErrDenied = errors.New("authorization denied")

	// ErrServerError indicates an authority-side failure or an invalid request.
	ErrServerError = errors.New("authorization server error")

	// ErrTimedOut indicates a bounded operation exceeded its deadline.
	ErrTimedOut = errors.New("operation timed out")

	// ErrInvalidGrant indicates the refresh token was rejected as expired or revoked.
	ErrInvalidGrant = errors.New("invalid grant")

	// Connection Errors.

	// ErrForbidden indicates the user is authenticated but lacks the role
	// required by the streaming endpoint. Retrying with the same credential
	// cannot succeed.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized indicates the server rejected the access token itself.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransientConnection indicates a retryable network or open failure.
	ErrTransientConnection = errors.New("transient connection failure")

	// ErrConnectionClosed indicates an operation on a closed stream handle.
	ErrConnectionClosed = errors.New("connection closed")

	// Session Errors.

	// ErrAuthInProgress indicates an interactive authentication is already running.
	ErrAuthInProgress = errors.New("authentication already in progress")

	// ErrSessionBusy indicates the session is connected or reconnecting and
	// cannot be restarted.
	ErrSessionBusy = errors.New("session is active")

	// ErrSessionStopped indicates a stop or shutdown overtook the operation.
	ErrSessionStopped = errors.New("session stopped")

	// ErrSupervisorClosed indicates the supervisor has been shut down.
	ErrSupervisorClosed = errors.New("session supervisor closed")
)

// ClassifyAuthError maps an interactive authentication failure to the notice
// shown to the user.
func ClassifyAuthError(err error) NoticeKind {
	switch {
	case err == nil:
		return NoticeSuccess
	case errors.Is(err, ErrTimedOut),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return NoticeTimedOut
	case errors.Is(err, ErrDenied):
		return NoticeDenied
	case errors.Is(err, ErrServerError):
		return NoticeServerError
	default:
		return NoticeFailure
	}
}

// IsRetryable returns true for connection failures the reconnect loop should
// retry. Everything except a forbidden result is retried.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrForbidden)
}
