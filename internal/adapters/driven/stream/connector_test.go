package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// fakeHub accepts WebSocket connections on the hub path and answers
// invocations. Each accepted connection is published on conns.
type fakeHub struct {
	*httptest.Server
	status  int
	mu      sync.Mutex
	tokens  []string
	headers []string
	conns   chan *websocket.Conn
	emitted int
}

func newFakeHub(t *testing.T, status int) *fakeHub {
	t.Helper()
	hub := &fakeHub{status: status, conns: make(chan *websocket.Conn, 4)}
	hub.Server = httptest.NewServer(http.HandlerFunc(hub.serve))
	t.Cleanup(hub.Close)
	return hub
}

func (hub *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != domain.DefaultHubPath {
		http.NotFound(w, r)
		return
	}
	hub.mu.Lock()
	hub.tokens = append(hub.tokens, r.URL.Query().Get("access_token"))
	hub.headers = append(hub.headers, r.Header.Get("Authorization"))
	hub.mu.Unlock()

	if hub.status != 0 {
		w.WriteHeader(hub.status)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	hub.conns <- conn

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f frame
		if json.Unmarshal(data, &f) != nil || f.Type != frameInvocation {
			continue
		}
		reply := frame{Type: frameCompletion, ID: f.ID}
		switch f.Target {
		case "Emit":
			hub.mu.Lock()
			hub.emitted++
			n := hub.emitted
			hub.mu.Unlock()
			reply.Result, _ = json.Marshal(n)
		case "Hang":
			continue
		default:
			reply.Error = "unknown method " + f.Target
		}
		out, _ := json.Marshal(reply)
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}

func (hub *fakeHub) accepted(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-hub.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not accept a connection")
		return nil
	}
}

func hubConfig(serverURL string) domain.SessionConfig {
	cfg := domain.DefaultSessionConfig()
	cfg.ServerAddress = serverURL
	return cfg
}

func waitCause(t *testing.T, causes <-chan domain.CloseCause) domain.CloseCause {
	t.Helper()
	select {
	case cause := <-causes:
		return cause
	case <-time.After(5 * time.Second):
		t.Fatal("close callback not invoked")
		return domain.CloseCause{}
	}
}

func TestHubURL(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"http://localhost:5000", "ws://localhost:5000/hub/train?access_token=tok"},
		{"https://hub.example.com", "wss://hub.example.com/hub/train?access_token=tok"},
		{"wss://hub.example.com", "wss://hub.example.com/hub/train?access_token=tok"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := hubURL(hubConfig(tt.address), "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := hubURL(hubConfig("ftp://hub.example.com"), "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnector_Open(t *testing.T) {
	hub := newFakeHub(t, 0)
	connector := NewConnector(hubConfig(hub.URL))

	handle, err := connector.Open(context.Background(), "access-1")
	require.NoError(t, err)
	hub.accepted(t)
	defer handle.Close()

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Equal(t, []string{"access-1"}, hub.tokens)
	assert.Equal(t, []string{"Bearer access-1"}, hub.headers)
}

func TestConnector_Open_HandshakeStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, domain.ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthorized},
		{"server error", http.StatusBadGateway, domain.ErrTransientConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newFakeHub(t, tt.status)
			connector := NewConnector(hubConfig(hub.URL))

			handle, err := connector.Open(context.Background(), "access-1")

			assert.Nil(t, handle)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnector_Open_Unreachable(t *testing.T) {
	hub := newFakeHub(t, 0)
	addr := hub.URL
	hub.Close()

	_, err := NewConnector(hubConfig(addr)).Open(context.Background(), "access-1")

	assert.ErrorIs(t, err, domain.ErrTransientConnection)
	assert.True(t, domain.IsRetryable(err))
}

func TestHandle_Invoke(t *testing.T) {
	hub := newFakeHub(t, 0)
	handle, err := NewConnector(hubConfig(hub.URL)).Open(context.Background(), "access-1")
	require.NoError(t, err)
	defer handle.Close()
	invoker := handle.(*Handle)

	for want := 1; want <= 2; want++ {
		result, err := invoker.Invoke(context.Background(), "Emit")
		require.NoError(t, err)
		assert.JSONEq(t, jsonInt(want), string(result))
	}

	_, err = invoker.Invoke(context.Background(), "Nope")
	assert.ErrorContains(t, err, "unknown method Nope")
}

func TestHandle_InvokeHonoursContext(t *testing.T) {
	hub := newFakeHub(t, 0)
	handle, err := NewConnector(hubConfig(hub.URL)).Open(context.Background(), "access-1")
	require.NoError(t, err)
	defer handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = handle.(*Handle).Invoke(ctx, "Hang")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandle_CloseIsRequested(t *testing.T) {
	hub := newFakeHub(t, 0)
	handle, err := NewConnector(hubConfig(hub.URL)).Open(context.Background(), "access-1")
	require.NoError(t, err)
	hub.accepted(t)

	causes := make(chan domain.CloseCause, 2)
	handle.OnClosed(func(c domain.CloseCause) { causes <- c })

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close(), "close is idempotent")

	cause := waitCause(t, causes)
	assert.True(t, cause.Requested)
	assert.True(t, cause.IsClean())
	assert.Empty(t, causes, "callback runs exactly once")

	_, err = handle.(*Handle).Invoke(context.Background(), "Emit")
	assert.ErrorIs(t, err, domain.ErrConnectionClosed)
}

func TestHandle_ServerDropReportsError(t *testing.T) {
	hub := newFakeHub(t, 0)
	handle, err := NewConnector(hubConfig(hub.URL)).Open(context.Background(), "access-1")
	require.NoError(t, err)
	serverConn := hub.accepted(t)

	causes := make(chan domain.CloseCause, 1)
	handle.OnClosed(func(c domain.CloseCause) { causes <- c })

	_ = serverConn.Close(websocket.StatusInternalError, "restarting")

	cause := waitCause(t, causes)
	assert.False(t, cause.Requested)
	assert.False(t, cause.IsClean())
	assert.ErrorIs(t, cause.Err, domain.ErrConnectionClosed)
	assert.NoError(t, handle.Close())
}

func TestHandle_OnClosedAfterEndFiresImmediately(t *testing.T) {
	hub := newFakeHub(t, 0)
	handle, err := NewConnector(hubConfig(hub.URL)).Open(context.Background(), "access-1")
	require.NoError(t, err)
	serverConn := hub.accepted(t)

	_ = serverConn.CloseNow()
	<-handle.(*Handle).done

	var got *domain.CloseCause
	handle.OnClosed(func(c domain.CloseCause) { got = &c })

	require.NotNil(t, got)
	assert.False(t, got.Requested)
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
