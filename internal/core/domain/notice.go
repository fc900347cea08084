package domain

import "time"

// NoticeKind identifies a user-visible notification.
type NoticeKind string

// Notice kinds rendered by the presentation layer.
const (
	NoticeSuccess        NoticeKind = "success"
	NoticeTimedOut       NoticeKind = "timed_out"
	NoticeDenied         NoticeKind = "denied"
	NoticeServerError    NoticeKind = "server_error"
	NoticeForbidden      NoticeKind = "forbidden"
	NoticeFailure        NoticeKind = "failure"
	NoticeReauthRequired NoticeKind = "reauth_required"
)

// Severity returns how prominently the notice should be shown.
func (k NoticeKind) Severity() Severity {
	switch k {
	case NoticeSuccess:
		return SeverityInfo
	case NoticeFailure, NoticeForbidden:
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Title returns the heading used when the notice is displayed.
func (k NoticeKind) Title() string {
	switch k {
	case NoticeSuccess:
		return "Authentication successful"
	case NoticeTimedOut:
		return "Authentication timed out"
	case NoticeDenied:
		return "Authorization denied"
	case NoticeServerError:
		return "Invalid request"
	case NoticeForbidden:
		return "Access forbidden"
	case NoticeReauthRequired:
		return "Sign-in required"
	default:
		return "Authentication failed"
	}
}

// DefaultText returns the body text used when no specific message is given.
func (k NoticeKind) DefaultText() string {
	switch k {
	case NoticeSuccess:
		return "Authentication successful. Token is hidden."
	case NoticeTimedOut:
		return "The authentication process was aborted."
	case NoticeDenied:
		return "The authorization was denied by the end user."
	case NoticeServerError:
		return "The authentication request was invalid."
	case NoticeForbidden:
		return "Your account does not have the role required for this hub."
	case NoticeReauthRequired:
		return "Your session has expired. Sign in again to reconnect."
	default:
		return "An error occurred while trying to authenticate the user."
	}
}

// Severity is the display level of a notice.
type Severity int

const (
	// SeverityInfo is used for positive outcomes.
	SeverityInfo Severity = iota
	// SeverityWarning is used for recoverable problems.
	SeverityWarning
	// SeverityError is used for failures.
	SeverityError
)

// Notice is a user-visible notification emitted by the supervisor.
type Notice struct {
	Kind NoticeKind
	Text string
	Err  error
	At   time.Time
}

// NewNotice creates a notice with the kind's default text.
func NewNotice(kind NoticeKind, err error, at time.Time) Notice {
	return Notice{
		Kind: kind,
		Text: kind.DefaultText(),
		Err:  err,
		At:   at,
	}
}
