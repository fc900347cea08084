package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/hublink/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
	coreservices "github.com/custodia-labs/hublink/internal/core/services"
)

// execute runs the root command with args and returns everything written.
func execute(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()

	connectPlain, connectEmit, connectMe = false, false, false
	eventsLimit, eventsSession, eventsJSON = 20, "", false
	meRaw = false
	configDir, dataDir, address, verbose = "", "", "", false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if in == nil {
		in = strings.NewReader("")
	}
	rootCmd.SetIn(in)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// testEnv is a Services value backed by in-memory stores and fakes.
type testEnv struct {
	config    *memory.ConfigStore
	events    *memory.EventStore
	authority *fakeAuthority
	resource  *fakeResource
	session   *scriptedSession
	stackErr  error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		config:    memory.NewConfigStore(),
		events:    memory.NewEventStore(),
		authority: &fakeAuthority{cred: domain.CredentialState{AccessToken: "access-1", RefreshToken: "refresh-1"}},
		resource:  &fakeResource{body: []byte(`{"name":"ada"}`)},
		session:   &scriptedSession{},
	}

	SetServices(&Services{
		Settings: coreservices.NewSettingsService(env.config),
		History:  coreservices.NewHistoryService(env.events),
		Stack: func() (*Stack, error) {
			if env.stackErr != nil {
				return nil, env.stackErr
			}
			return &Stack{
				Config:    domain.DefaultSessionConfig(),
				Authority: env.authority,
				Resource:  env.resource,
				NewSession: func(observer driven.SessionObserver) driving.SessionService {
					env.session.observer = observer
					return env.session
				},
			}, nil
		},
	})
	t.Cleanup(func() { SetServices(nil) })
	return env
}

type fakeAuthority struct {
	cred   domain.CredentialState
	err    error
	scopes []string
}

var _ driven.CredentialAuthority = (*fakeAuthority)(nil)

func (f *fakeAuthority) AuthenticateInteractively(_ context.Context, scopes []string) (domain.CredentialState, error) {
	f.scopes = scopes
	return f.cred, f.err
}

func (f *fakeAuthority) RefreshToken(context.Context, string) (domain.CredentialState, error) {
	return f.cred, f.err
}

type fakeResource struct {
	body  []byte
	err   error
	token string
	// fetched runs after FetchMeWith, letting a test end the session.
	fetched func()
}

var _ driven.ResourceFetcher = (*fakeResource)(nil)

func (f *fakeResource) FetchMe(_ context.Context, accessToken string) ([]byte, error) {
	f.token = accessToken
	return f.body, f.err
}

func (f *fakeResource) FetchMeWith(ctx context.Context, tokens driven.TokenProvider) ([]byte, error) {
	token, err := tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	f.token = token
	if f.fetched != nil {
		defer f.fetched()
	}
	return f.body, f.err
}

// scriptedSession plays a fixed sequence of phase changes from StartSession.
// Invoke moves the session to idle so the connect loop returns.
type scriptedSession struct {
	observer driven.SessionObserver
	script   []domain.PhaseChange
	notices  []domain.NoticeKind
	startErr error
	token    string

	mu        sync.Mutex
	invoked   []string
	shutdowns int
}

var _ driving.SessionService = (*scriptedSession)(nil)

func (s *scriptedSession) StartSession(context.Context) error {
	for _, kind := range s.notices {
		s.observer.OnNotice(domain.NewNotice(kind, nil, time.Now()))
	}
	for _, change := range s.script {
		s.observer.OnPhaseChange(change)
	}
	return s.startErr
}

func (s *scriptedSession) HandleDisconnect(domain.CloseCause) {}

func (s *scriptedSession) Stop() error { return nil }

func (s *scriptedSession) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	return nil
}

func (s *scriptedSession) Status() domain.SessionStatus { return domain.SessionStatus{} }

func (s *scriptedSession) GetToken(context.Context) (string, error) {
	if s.token == "" {
		return "", domain.ErrUnauthorized
	}
	return s.token, nil
}

func (s *scriptedSession) Invoke(_ context.Context, target string, _ ...any) (json.RawMessage, error) {
	s.mu.Lock()
	s.invoked = append(s.invoked, target)
	s.mu.Unlock()
	s.observer.OnPhaseChange(domain.PhaseChange{From: domain.PhaseConnected, To: domain.PhaseIdle})
	return json.RawMessage(`7`), nil
}

func changes(phases ...domain.Phase) []domain.PhaseChange {
	out := make([]domain.PhaseChange, 0, len(phases))
	from := domain.PhaseIdle
	for _, p := range phases {
		out = append(out, domain.PhaseChange{From: from, To: p, At: time.Now()})
		from = p
	}
	return out
}
