package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
	"github.com/custodia-labs/hublink/internal/logger"
)

// Ensure SessionSupervisor implements the session and token provider ports.
var (
	_ driving.SessionService = (*SessionSupervisor)(nil)
	_ driven.TokenProvider   = (*SessionSupervisor)(nil)
)

// loopOutcome tells the reconnect loop whether to keep going.
type loopOutcome int

const (
	loopRetry loopOutcome = iota
	loopDone
)

// connectionSlot holds the supervisor's single stream connection.
// The zero value is "no connection".
type connectionSlot struct {
	open       bool
	generation uint64
	handle     driven.StreamHandle
}

// reconnectLoop tracks the one reconnect goroutine allowed at a time.
type reconnectLoop struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// SessionSupervisor owns the credential and the stream connection of one
// user session. It decides, at every disconnect, whether to reconnect with the
// current access token, refresh it silently, or ask the user to sign in again.
//
// All state lives behind mu; the only writers are StartSession, the reconnect
// loop, Stop and Shutdown. Observers are always called without mu held.
type SessionSupervisor struct {
	config    domain.SessionConfig
	authority driven.CredentialAuthority
	connector driven.StreamConnector
	observer  driven.SessionObserver
	expiry    ExpiryPolicy
	sessionID string

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	credential   domain.CredentialState
	conn         connectionSlot
	generation   uint64
	phase        domain.Phase
	terminal     domain.TerminalReason
	authInFlight bool
	authCancel   context.CancelFunc
	startCancel  context.CancelFunc
	loop         *reconnectLoop
	attempts     int
	closed       bool
}

// NewSessionSupervisor creates an idle supervisor.
// The observer may be nil.
func NewSessionSupervisor(
	config domain.SessionConfig,
	authority driven.CredentialAuthority,
	connector driven.StreamConnector,
	observer driven.SessionObserver,
) *SessionSupervisor {
	if observer == nil {
		observer = noopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionSupervisor{
		config:    config,
		authority: authority,
		connector: connector,
		observer:  observer,
		expiry:    NewExpiryPolicy(config.RenewalMargin),
		sessionID: uuid.New().String(),
		now:       time.Now,
		wait:      sleepContext,
		ctx:       ctx,
		cancel:    cancel,
		phase:     domain.PhaseIdle,
	}
}

// SessionID identifies this supervisor run in the event history.
func (s *SessionSupervisor) SessionID() string {
	return s.sessionID
}

// StartSession runs the interactive authentication and opens the stream.
//
// Only one interactive authentication may be outstanding; a call arriving
// while one runs returns domain.ErrAuthInProgress immediately. The session
// may only be started from idle or terminated.
//
// A transient failure to open the stream is not returned: the session moves
// to reconnecting and keeps trying in the background. A Stop or Shutdown
// arriving before the attempt finishes makes it return
// domain.ErrSessionStopped without touching the session.
func (s *SessionSupervisor) StartSession(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return domain.ErrSupervisorClosed
	case s.authInFlight:
		s.mu.Unlock()
		logger.Debug("session %s: start ignored, authentication in flight", s.sessionID)
		return domain.ErrAuthInProgress
	case !s.phase.CanStart():
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: phase %s", domain.ErrSessionBusy, phase)
	}
	// Each attempt gets its own context so a Stop cancels it even after the
	// authentication returned.
	attempt, cancelAttempt := context.WithCancel(s.ctx)
	defer cancelAttempt()
	s.authInFlight = true
	s.startCancel = cancelAttempt
	s.attempts = 0
	change, ok := s.setPhaseLocked(domain.PhaseAuthenticating, domain.TerminalNone)
	s.mu.Unlock()
	s.emitPhase(change, ok)

	cred, err := s.authenticate(ctx)
	if err != nil {
		if s.overtaken(attempt, domain.PhaseAuthenticating) {
			logger.Debug("session %s: authentication ended by stop: %v", s.sessionID, err)
			return domain.ErrSessionStopped
		}
		s.notify(domain.ClassifyAuthError(err), err)
		s.transition(attempt, domain.PhaseIdle, domain.TerminalNone, domain.PhaseAuthenticating)
		return err
	}

	s.mu.Lock()
	if attempt.Err() != nil || s.closed || s.phase != domain.PhaseAuthenticating {
		s.mu.Unlock()
		return domain.ErrSessionStopped
	}
	s.credential = cred
	change, ok = s.setPhaseLocked(domain.PhaseConnecting, domain.TerminalNone)
	s.mu.Unlock()
	s.emitPhase(change, ok)

	err = s.open(attempt, cred.AccessToken, domain.PhaseConnecting)
	switch {
	case err == nil:
		s.notify(domain.NoticeSuccess, nil)
		return nil
	case errors.Is(err, domain.ErrSessionStopped):
		return err
	case !domain.IsRetryable(err):
		s.notify(domain.NoticeForbidden, err)
		s.transition(attempt, domain.PhaseTerminated, domain.TerminalForbidden, domain.PhaseConnecting)
		return err
	}

	logger.Warn("session %s: initial connection failed, will retry: %v", s.sessionID, err)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.invalidateAccessToken(attempt)
	}
	s.mu.Lock()
	if attempt.Err() != nil || s.closed || s.phase != domain.PhaseConnecting {
		s.mu.Unlock()
		return domain.ErrSessionStopped
	}
	change, ok, start := s.beginReconnectLocked(true)
	s.mu.Unlock()
	s.emitPhase(change, ok)
	start()
	return nil
}

// HandleDisconnect reacts to the stream closing. A close the supervisor asked
// for is ignored; any other close starts the reconnect loop in the background
// unless one is already running.
func (s *SessionSupervisor) HandleDisconnect(cause domain.CloseCause) {
	if cause.IsClean() {
		logger.Debug("session %s: connection closed on request", s.sessionID)
		return
	}

	s.mu.Lock()
	if s.closed || s.loop != nil || s.phase != domain.PhaseConnected {
		phase := s.phase
		s.mu.Unlock()
		logger.Debug("session %s: disconnect ignored in phase %s", s.sessionID, phase)
		return
	}
	change, ok, start := s.beginReconnectLocked(false)
	s.mu.Unlock()

	logger.Warn("session %s: connection lost: %v", s.sessionID, cause.Err)
	s.emitPhase(change, ok)
	start()
}

// Stop closes the stream, cancels any reconnect loop or authentication in
// progress, and returns the session to idle. It waits for the reconnect loop
// to exit.
func (s *SessionSupervisor) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSupervisorClosed
	}
	loop, slot := s.interruptLocked()
	change, ok := s.setPhaseLocked(domain.PhaseIdle, domain.TerminalNone)
	s.mu.Unlock()

	s.emitPhase(change, ok)
	closeSlot(slot)
	if loop != nil {
		<-loop.done
	}
	return nil
}

// Shutdown tears the supervisor down: the credential is discarded, the stream
// closed, and every background operation cancelled. It is idempotent.
func (s *SessionSupervisor) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	_, slot := s.interruptLocked()
	change, ok := s.setPhaseLocked(domain.PhaseTerminated, domain.TerminalShutdown)
	s.closed = true
	s.credential = domain.CredentialState{}
	s.mu.Unlock()

	s.cancel()
	s.emitPhase(change, ok)
	closeSlot(slot)
	s.wg.Wait()
	return nil
}

// Status returns a copy of the current session state.
func (s *SessionSupervisor) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionStatus{
		SessionID:          s.sessionID,
		Phase:              s.phase,
		Terminal:           s.terminal,
		HasCredential:      !s.credential.IsEmpty(),
		AccessTokenExpiry:  s.credential.AccessTokenExpiry,
		RefreshTokenExpiry: s.credential.RefreshTokenExpiry,
		AuthInFlight:       s.authInFlight,
		Connected:          s.conn.open,
		ReconnectAttempts:  s.attempts,
	}
}

// Credential returns a copy of the current credential.
func (s *SessionSupervisor) Credential() domain.CredentialState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// GetToken returns the current access token if it is usable.
func (s *SessionSupervisor) GetToken(_ context.Context) (string, error) {
	cred := s.Credential()
	if !s.expiry.AccessUsable(cred, s.now()) {
		return "", fmt.Errorf("%w: no usable access token", domain.ErrUnauthorized)
	}
	return cred.AccessToken, nil
}

// Invoke calls a hub method over the current connection.
func (s *SessionSupervisor) Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error) {
	s.mu.Lock()
	slot := s.conn
	s.mu.Unlock()
	if !slot.open {
		return nil, fmt.Errorf("invoke %s: %w", target, domain.ErrConnectionClosed)
	}
	invoker, ok := slot.handle.(driven.StreamInvoker)
	if !ok {
		return nil, fmt.Errorf("invoke %s: connection does not support invocation", target)
	}
	return invoker.Invoke(ctx, target, args...)
}

// authenticate runs one interactive authentication bounded by the configured
// timeout. The caller must have set authInFlight; it is cleared on every
// return path.
func (s *SessionSupervisor) authenticate(parent context.Context) (domain.CredentialState, error) {
	ctx, cancel := context.WithTimeout(parent, s.config.AuthTimeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.mu.Lock()
	s.authCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.authInFlight = false
		s.authCancel = nil
		s.mu.Unlock()
	}()

	logger.Info("session %s: waiting for interactive authentication (timeout %s)", s.sessionID, s.config.AuthTimeout)
	cred, err := s.authority.AuthenticateInteractively(ctx, s.config.OAuth.Scopes)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, domain.ErrTimedOut) {
			err = fmt.Errorf("%w: %w", domain.ErrTimedOut, err)
		}
		return domain.CredentialState{}, err
	}
	if cred.AccessToken == "" {
		return domain.CredentialState{}, errors.New("authority returned an empty access token")
	}
	return cred, nil
}

// refresh runs one refresh exchange bounded by the configured timeout.
func (s *SessionSupervisor) refresh(parent context.Context, refreshToken string) (domain.CredentialState, error) {
	ctx, cancel := context.WithTimeout(parent, s.config.RefreshTimeout)
	defer cancel()

	cred, err := s.authority.RefreshToken(ctx, refreshToken)
	if err != nil {
		if ctx.Err() != nil && parent.Err() == nil && !errors.Is(err, domain.ErrTimedOut) {
			err = fmt.Errorf("%w: %w", domain.ErrTimedOut, err)
		}
		return domain.CredentialState{}, err
	}
	if cred.AccessToken == "" {
		return domain.CredentialState{}, errors.New("refresh returned an empty access token")
	}
	return cred, nil
}

// open disposes of any existing connection, opens a new one and installs it.
// The connection is only kept if ctx is still live and the session is still in
// one of the expected phases when the open returns; otherwise it is closed and
// domain.ErrSessionStopped is returned.
//
// When ctx belongs to the running reconnect loop, installing the connection
// also releases the loop, so a drop reported from then on starts a new one.
func (s *SessionSupervisor) open(ctx context.Context, accessToken string, expected ...domain.Phase) error {
	if !s.disposeConnection(ctx) {
		return domain.ErrSessionStopped
	}

	openCtx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()
	handle, err := s.connector.Open(openCtx, accessToken)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ErrSessionStopped
		}
		return err
	}

	s.mu.Lock()
	if ctx.Err() != nil || s.closed || !slices.Contains(expected, s.phase) {
		s.mu.Unlock()
		_ = handle.Close()
		return domain.ErrSessionStopped
	}
	s.generation++
	generation := s.generation
	s.conn = connectionSlot{open: true, generation: generation, handle: handle}
	if s.loop != nil && s.loop.ctx == ctx {
		s.loop = nil
	}
	change, ok := s.setPhaseLocked(domain.PhaseConnected, domain.TerminalNone)
	s.mu.Unlock()

	s.emitPhase(change, ok)
	handle.OnClosed(func(cause domain.CloseCause) {
		s.connectionClosed(generation, cause)
	})
	return nil
}

// disposeConnection stops and releases the current connection, if any.
// It does nothing and returns false once ctx is done, so a cancelled
// operation never closes a connection installed after it.
func (s *SessionSupervisor) disposeConnection(ctx context.Context) bool {
	s.mu.Lock()
	if ctx.Err() != nil || s.closed {
		s.mu.Unlock()
		return false
	}
	slot := s.conn
	s.conn = connectionSlot{}
	s.mu.Unlock()
	closeSlot(slot)
	return true
}

// overtaken reports whether a stop or shutdown superseded an operation that
// expects the session to still be in phase.
func (s *SessionSupervisor) overtaken(ctx context.Context, phase domain.Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ctx.Err() != nil || s.closed || s.phase != phase
}

// connectionClosed filters close callbacks from connections the supervisor
// has already replaced or released.
func (s *SessionSupervisor) connectionClosed(generation uint64, cause domain.CloseCause) {
	s.mu.Lock()
	current := s.conn.open && s.conn.generation == generation
	s.mu.Unlock()
	if !current {
		return
	}
	s.HandleDisconnect(cause)
}

// beginReconnectLocked reserves the reconnect loop and moves to reconnecting.
// The returned start function launches the goroutine; call it after emitting
// the phase change so observers see transitions in order.
func (s *SessionSupervisor) beginReconnectLocked(waitFirst bool) (domain.PhaseChange, bool, func()) {
	ctx, cancel := context.WithCancel(s.ctx)
	loop := &reconnectLoop{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	s.loop = loop
	s.attempts = 0
	change, ok := s.setPhaseLocked(domain.PhaseReconnecting, domain.TerminalNone)
	s.wg.Add(1)
	return change, ok, func() {
		go s.runReconnectLoop(ctx, loop, waitFirst)
	}
}

// runReconnectLoop retries until connected, terminated or cancelled.
func (s *SessionSupervisor) runReconnectLoop(ctx context.Context, loop *reconnectLoop, waitFirst bool) {
	defer s.wg.Done()
	defer close(loop.done)
	defer func() {
		s.mu.Lock()
		if s.loop == loop {
			s.loop = nil
		}
		s.mu.Unlock()
		loop.cancel()
	}()

	scheduler := NewReconnectScheduler(s.config.ReconnectInterval)
	logger.Debug("session %s: reconnect loop started (interval %s)", s.sessionID, scheduler.Interval())
	reauthNotified := false
	skipWait := !waitFirst

	for {
		if !skipWait {
			delay := scheduler.NextDelay()
			s.mu.Lock()
			s.attempts = scheduler.Attempts()
			s.mu.Unlock()
			logger.Info("session %s: reconnecting in %s (retry %d)", s.sessionID, delay, scheduler.Attempts())
			if err := s.wait(ctx, delay); err != nil {
				return
			}
		}
		skipWait = false

		if ctx.Err() != nil {
			return
		}
		if s.reconnectOnce(ctx, &reauthNotified) == loopDone {
			return
		}
	}
}

// reconnectOnce runs one iteration of the reconnect loop. Expiry is
// re-evaluated every time because time has passed since the last attempt.
func (s *SessionSupervisor) reconnectOnce(ctx context.Context, reauthNotified *bool) loopOutcome {
	cred := s.Credential()
	now := s.now()

	switch {
	case s.expiry.AccessUsable(cred, now):
		logger.Debug("session %s: access token usable, reopening", s.sessionID)
		err := s.open(ctx, cred.AccessToken, domain.PhaseReconnecting)
		return s.openOutcome(ctx, err)

	case s.expiry.RefreshUsable(cred, now):
		logger.Debug("session %s: access token expired, refreshing", s.sessionID)
		refreshed, err := s.refresh(ctx, cred.RefreshToken)
		if err != nil {
			if ctx.Err() != nil {
				return loopDone
			}
			if errors.Is(err, domain.ErrInvalidGrant) {
				logger.Warn("session %s: refresh token rejected: %v", s.sessionID, err)
				s.replaceCredential(ctx, cred.WithoutRefreshToken())
				return s.reauthenticate(ctx, reauthNotified)
			}
			logger.Warn("session %s: refresh failed, will retry: %v", s.sessionID, err)
			return loopRetry
		}
		if refreshed.RefreshToken == cred.RefreshToken && !refreshed.RefreshExpiryKnown() {
			refreshed.RefreshTokenExpiry = cred.RefreshTokenExpiry
		}
		if !s.replaceCredential(ctx, refreshed) {
			return loopDone
		}
		err = s.open(ctx, refreshed.AccessToken, domain.PhaseReconnecting)
		return s.openOutcome(ctx, err)

	default:
		return s.reauthenticate(ctx, reauthNotified)
	}
}

// reauthenticate handles the dual-expiry branch: notify the user once, then
// run the same single-flight interactive authentication as StartSession.
// Failure is terminal for the session.
func (s *SessionSupervisor) reauthenticate(ctx context.Context, notified *bool) loopOutcome {
	s.mu.Lock()
	if ctx.Err() != nil || s.closed {
		s.mu.Unlock()
		return loopDone
	}
	if s.authInFlight {
		s.mu.Unlock()
		logger.Debug("session %s: authentication already in flight, waiting", s.sessionID)
		return loopRetry
	}
	s.authInFlight = true
	change, ok := s.setPhaseLocked(domain.PhaseReAuthenticating, domain.TerminalNone)
	s.mu.Unlock()
	s.emitPhase(change, ok)

	if !*notified {
		*notified = true
		s.notify(domain.NoticeReauthRequired, nil)
	}

	cred, err := s.authenticate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return loopDone
		}
		s.notify(domain.ClassifyAuthError(err), err)
		s.transition(ctx, domain.PhaseTerminated, domain.TerminalExhaustedReauth, domain.PhaseReAuthenticating)
		return loopDone
	}
	if !s.replaceCredential(ctx, cred) {
		return loopDone
	}

	err = s.open(ctx, cred.AccessToken, domain.PhaseReAuthenticating)
	if err == nil {
		s.notify(domain.NoticeSuccess, nil)
		return loopDone
	}
	return s.openOutcome(ctx, err)
}

// openOutcome classifies a failed or successful open inside the loop.
func (s *SessionSupervisor) openOutcome(ctx context.Context, err error) loopOutcome {
	switch {
	case err == nil:
		logger.Info("session %s: reconnected", s.sessionID)
		return loopDone
	case errors.Is(err, domain.ErrSessionStopped) || ctx.Err() != nil:
		return loopDone
	case !domain.IsRetryable(err):
		s.notify(domain.NoticeForbidden, err)
		s.transition(ctx, domain.PhaseTerminated, domain.TerminalForbidden,
			domain.PhaseReconnecting, domain.PhaseReAuthenticating)
		return loopDone
	case errors.Is(err, domain.ErrUnauthorized):
		logger.Warn("session %s: access token rejected by server", s.sessionID)
		s.invalidateAccessToken(ctx)
	default:
		logger.Warn("session %s: reconnect attempt failed: %v", s.sessionID, err)
	}
	s.transition(ctx, domain.PhaseReconnecting, domain.TerminalNone, domain.PhaseReAuthenticating)
	return loopRetry
}

// replaceCredential swaps the whole credential unless the operation was cancelled.
func (s *SessionSupervisor) replaceCredential(ctx context.Context, cred domain.CredentialState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.closed {
		return false
	}
	s.credential = cred
	return true
}

// invalidateAccessToken drops an access token the server refused so the next
// loop iteration refreshes instead of reusing it.
func (s *SessionSupervisor) invalidateAccessToken(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.closed {
		return
	}
	s.credential = s.credential.WithoutAccessToken()
}

// interruptLocked cancels the reconnect loop, any authentication and any
// StartSession attempt, and releases the connection slot. The caller closes the returned slot and waits
// on the loop after unlocking.
func (s *SessionSupervisor) interruptLocked() (*reconnectLoop, connectionSlot) {
	loop := s.loop
	if loop != nil {
		loop.cancel()
	}
	if s.authCancel != nil {
		s.authCancel()
	}
	if s.startCancel != nil {
		s.startCancel()
		s.startCancel = nil
	}
	slot := s.conn
	s.conn = connectionSlot{}
	return loop, slot
}

// transition moves to the target phase if the operation is still current and
// the session is in one of the given phases (any phase when none are given).
func (s *SessionSupervisor) transition(
	ctx context.Context,
	to domain.Phase,
	reason domain.TerminalReason,
	from ...domain.Phase,
) bool {
	s.mu.Lock()
	if ctx.Err() != nil || s.closed || (len(from) > 0 && !slices.Contains(from, s.phase)) {
		s.mu.Unlock()
		return false
	}
	change, ok := s.setPhaseLocked(to, reason)
	s.mu.Unlock()
	s.emitPhase(change, ok)
	return true
}

// setPhaseLocked records a transition. ok is false if nothing changed.
func (s *SessionSupervisor) setPhaseLocked(to domain.Phase, reason domain.TerminalReason) (domain.PhaseChange, bool) {
	if s.phase == to && s.terminal == reason {
		return domain.PhaseChange{}, false
	}
	change := domain.PhaseChange{From: s.phase, To: to, Terminal: reason, At: s.now()}
	s.phase = to
	s.terminal = reason
	return change, true
}

func (s *SessionSupervisor) emitPhase(change domain.PhaseChange, ok bool) {
	if !ok {
		return
	}
	logger.Debug("session %s: %s -> %s", s.sessionID, change.From, change.To)
	s.observer.OnPhaseChange(change)
}

func (s *SessionSupervisor) notify(kind domain.NoticeKind, err error) {
	if err != nil {
		logger.Info("session %s: %s: %v", s.sessionID, kind, err)
	}
	s.observer.OnNotice(domain.NewNotice(kind, err, s.now()))
}

func closeSlot(slot connectionSlot) {
	if !slot.open {
		return
	}
	if err := slot.handle.Close(); err != nil {
		logger.Debug("closing stream connection: %v", err)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopObserver struct{}

func (noopObserver) OnNotice(domain.Notice)           {}
func (noopObserver) OnPhaseChange(domain.PhaseChange) {}
