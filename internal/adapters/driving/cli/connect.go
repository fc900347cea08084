package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/hublink/internal/adapters/driving/tui"
	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
)

// emitTarget is the hub method called by --emit.
const emitTarget = "Emit"

// emitTimeout bounds the --emit invocation.
const emitTimeout = 30 * time.Second

var (
	connectPlain bool
	connectEmit  bool
	connectMe    bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Sign in and keep the hub connection open",
	Long: `Sign in through the browser and open the streaming connection to the hub.

The connection is kept alive until interrupted: expired access tokens are
refreshed, lost connections are retried, and you are asked to sign in again
only when the refresh token is no longer accepted.

When standard output is a terminal an interactive view is shown:
  c   - Connect again after a stop or failure
  s   - Stop the session
  e   - Invoke Emit on the hub
  ?   - Toggle help
  q   - Quit

With --me the /me resource is fetched with the session's own access token
once connected; it implies --plain.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().BoolVar(&connectPlain, "plain", false, "print events as lines instead of the interactive view")
	connectCmd.Flags().BoolVar(&connectEmit, "emit", false, "invoke Emit once connected and print the result")
	connectCmd.Flags().BoolVar(&connectMe, "me", false, "fetch /me with the session token once connected")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	stack, err := sessionStack()
	if err != nil {
		return err
	}

	if !connectPlain && !connectMe && term.IsTerminal(int(os.Stdout.Fd())) {
		return runConnectTUI(cmd, stack)
	}
	return runConnectPlain(cmd, stack)
}

func runConnectTUI(cmd *cobra.Command, stack *Stack) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	observer := tui.NewObserver()
	session := stack.NewSession(observer)
	defer func() { _ = session.Shutdown() }()

	app, err := tui.NewApp(&tui.Ports{Session: session})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context()).WithEmitOnConnect(connectEmit)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	observer.Attach(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runConnectPlain(cmd *cobra.Command, stack *Stack) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := newPhaseWatcher(cmd.OutOrStdout())
	session := stack.NewSession(watcher)
	defer func() { _ = session.Shutdown() }()

	cmd.Println("Opening the browser to sign in...")
	if err := session.StartSession(ctx); err != nil {
		if errors.Is(err, domain.ErrSessionStopped) {
			return nil
		}
		return fmt.Errorf("starting session: %w", err)
	}

	emitted, fetched := false, false
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Shutting down...")
			return session.Shutdown()

		case <-watcher.changed:
			switch phase, reason := watcher.Current(); phase {
			case domain.PhaseConnected:
				if connectEmit && !emitted {
					emitted = true
					emit(ctx, cmd, session)
				}
				if connectMe && !fetched {
					fetched = true
					fetchMe(ctx, cmd, stack, session)
				}
			case domain.PhaseIdle:
				return nil
			case domain.PhaseTerminated:
				if reason == domain.TerminalShutdown {
					return nil
				}
				return fmt.Errorf("session terminated: %s", reason)
			}
		}
	}
}

func emit(ctx context.Context, cmd *cobra.Command, session driving.SessionService) {
	ctx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()

	result, err := session.Invoke(ctx, emitTarget)
	if err != nil {
		cmd.PrintErrf("Emit failed: %v\n", err)
		return
	}
	cmd.Printf("Emit result: %s\n", result)
}

// fetchMe requests /me through the live session, so the token used is
// whatever the supervisor currently holds.
func fetchMe(ctx context.Context, cmd *cobra.Command, stack *Stack, session driving.SessionService) {
	body, err := stack.Resource.FetchMeWith(ctx, session)
	if err != nil {
		cmd.PrintErrf("Fetching %s failed: %v\n", stack.Config.MePath, err)
		return
	}
	cmd.Println(formatBody(body, false))
}

// phaseWatcher prints supervisor events and exposes the latest phase to the
// command loop. Notifications coalesce, so the loop only sees the newest phase.
type phaseWatcher struct {
	out     io.Writer
	changed chan struct{}

	mu     sync.Mutex
	phase  domain.Phase
	reason domain.TerminalReason
}

var _ driven.SessionObserver = (*phaseWatcher)(nil)

func newPhaseWatcher(out io.Writer) *phaseWatcher {
	return &phaseWatcher{
		out:     out,
		changed: make(chan struct{}, 1),
		phase:   domain.PhaseIdle,
	}
}

func (w *phaseWatcher) OnNotice(n domain.Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s: %s\n", n.Kind.Title(), n.Text)
}

func (w *phaseWatcher) OnPhaseChange(c domain.PhaseChange) {
	w.mu.Lock()
	w.phase, w.reason = c.To, c.Terminal
	if c.Terminal != domain.TerminalNone {
		fmt.Fprintf(w.out, "Session %s (%s)\n", c.To, c.Terminal)
	} else {
		fmt.Fprintf(w.out, "Session %s\n", c.To)
	}
	w.mu.Unlock()

	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Current returns the latest phase and its terminal reason.
func (w *phaseWatcher) Current() (domain.Phase, domain.TerminalReason) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase, w.reason
}
