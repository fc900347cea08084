package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/hublink/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/hublink/internal/core/domain"
)

// maxNotices is how many notices the log keeps on screen.
const maxNotices = 8

// emitTarget is the hub method invoked by the emit key.
const emitTarget = "Emit"

// App is the session view following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	spinner   spinner.Model
	help      help.Model
	statusBar *status.Bar

	phase    domain.Phase
	terminal domain.TerminalReason
	notices  []domain.Notice

	// emitOnConnect invokes Emit the first time the session connects.
	emitOnConnect bool
	emitted       bool
	lastEmit      string

	err      error
	showHelp bool
	width    int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the session view for the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	return &App{
		ports:     ports,
		ctx:       context.Background(),
		styles:    s,
		keymap:    km,
		spinner:   sp,
		help:      help.New(),
		statusBar: status.NewBar(s, km),
		phase:     domain.PhaseIdle,
	}, nil
}

// WithContext sets the context passed to session operations.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// WithEmitOnConnect makes the app invoke Emit once the session connects.
func (a *App) WithEmitOnConnect(emit bool) *App {
	a.emitOnConnect = emit
	return a
}

// Init implements tea.Model. The session is started straight away.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("hublink"),
		a.spinner.Tick,
		a.startSession(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.statusBar.SetWidth(msg.Width)
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.PhaseChanged:
		a.phase = msg.Change.To
		a.terminal = msg.Change.Terminal
		a.statusBar.SetPhase(a.phase)
		a.statusBar.SetMessage(phaseMessage(msg.Change))
		if a.phase == domain.PhaseConnected && a.emitOnConnect && !a.emitted {
			a.emitted = true
			return a, a.emit()
		}
		return a, nil

	case messages.NoticeReceived:
		a.notices = append(a.notices, msg.Notice)
		if len(a.notices) > maxNotices {
			a.notices = a.notices[len(a.notices)-maxNotices:]
		}
		return a, nil

	case messages.SessionStarted:
		if msg.Err != nil && !errors.Is(msg.Err, domain.ErrAuthInProgress) && !errors.Is(msg.Err, domain.ErrSessionStopped) {
			a.err = msg.Err
		}
		return a, nil

	case messages.SessionStopped:
		a.err = msg.Err
		return a, nil

	case messages.EmitCompleted:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.lastEmit = string(msg.Result)
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, a.keymap.Quit):
		return a, tea.Quit

	case keymap.Matches(key, a.keymap.Help):
		a.showHelp = !a.showHelp
		return a, nil

	case keymap.Matches(key, a.keymap.Connect):
		if !a.phase.CanStart() {
			return a, nil
		}
		a.err = nil
		return a, a.startSession()

	case keymap.Matches(key, a.keymap.Stop):
		if !a.phase.IsActive() {
			return a, nil
		}
		return a, a.stopSession()

	case keymap.Matches(key, a.keymap.Emit):
		if a.phase != domain.PhaseConnected {
			return a, nil
		}
		return a, a.emit()
	}
	return a, nil
}

func (a *App) startSession() tea.Cmd {
	session, ctx := a.ports.Session, a.ctx
	return func() tea.Msg {
		return messages.SessionStarted{Err: session.StartSession(ctx)}
	}
}

func (a *App) stopSession() tea.Cmd {
	session := a.ports.Session
	return func() tea.Msg {
		return messages.SessionStopped{Err: session.Stop()}
	}
}

func (a *App) emit() tea.Cmd {
	session, ctx := a.ports.Session, a.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		result, err := session.Invoke(ctx, emitTarget)
		return messages.EmitCompleted{Result: result, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("hublink"))
	b.WriteString("\n\n")

	b.WriteString(a.renderPhase())
	b.WriteString("\n")

	st := a.ports.Session.Status()
	if st.HasCredential {
		b.WriteString(a.styles.Muted.Render(credentialLine(st)))
		b.WriteString("\n")
	}
	if a.lastEmit != "" {
		b.WriteString(a.styles.Normal.Render("Emit result: " + a.lastEmit))
		b.WriteString("\n")
	}

	if len(a.notices) > 0 {
		b.WriteString("\n")
		b.WriteString(a.styles.Subtitle.Render("Notices"))
		b.WriteString("\n")
		for _, n := range a.notices {
			b.WriteString(a.renderNotice(n))
			b.WriteString("\n")
		}
	}

	if a.err != nil {
		b.WriteString("\n")
		b.WriteString(a.styles.Error.Render("Error: " + a.err.Error()))
		b.WriteString("\n")
	}

	if a.showHelp {
		b.WriteString("\n")
		b.WriteString(a.help.FullHelpView(a.keymap.FullHelp()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.statusBar.View())
	return b.String()
}

func (a *App) renderPhase() string {
	label := a.styles.Phase(a.phase).Render(a.phase.String())
	if busy(a.phase) {
		label = a.spinner.View() + " " + label
	}
	if a.phase == domain.PhaseTerminated && a.terminal != domain.TerminalNone {
		label += a.styles.Muted.Render(" (" + string(a.terminal) + ")")
		if a.terminal.RequiresUserAction() {
			label += "\n" + a.styles.Warning.Render("Press c to sign in again.")
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, a.styles.Normal.Render("Session: "), label)
}

func (a *App) renderNotice(n domain.Notice) string {
	title := a.styles.Severity(n.Kind.Severity()).Render(n.Kind.Title())
	line := a.styles.Muted.Render(n.At.Format("15:04:05")) + " " + title + " " + a.styles.Normal.Render(n.Text)
	if n.Err != nil {
		line += a.styles.Muted.Render(" (" + n.Err.Error() + ")")
	}
	return line
}

// busy returns true while the supervisor is working towards a connection.
func busy(p domain.Phase) bool {
	return p.IsActive() && p != domain.PhaseConnected
}

func phaseMessage(c domain.PhaseChange) string {
	if c.To == domain.PhaseReconnecting {
		return "retrying in the background"
	}
	return ""
}

func credentialLine(st domain.SessionStatus) string {
	parts := []string{"access token " + expiryText(st.AccessTokenExpiry)}
	if !st.RefreshTokenExpiry.IsZero() {
		parts = append(parts, "refresh token "+expiryText(st.RefreshTokenExpiry))
	}
	if st.ReconnectAttempts > 0 {
		parts = append(parts, fmt.Sprintf("%d reconnect attempts", st.ReconnectAttempts))
	}
	return strings.Join(parts, " · ")
}

func expiryText(t time.Time) string {
	if t.IsZero() {
		return "expiry unknown"
	}
	return "expires " + t.Local().Format("15:04:05")
}

// Phase returns the last phase reported by the session.
func (a *App) Phase() domain.Phase {
	return a.phase
}

// Notices returns the notices currently on screen.
func (a *App) Notices() []domain.Notice {
	return a.notices
}

// Err returns the last error shown.
func (a *App) Err() error {
	return a.err
}
