package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/logger"
)

// Ensure Handle implements the interfaces.
var (
	_ driven.StreamHandle  = (*Handle)(nil)
	_ driven.StreamInvoker = (*Handle)(nil)
)

// Frame types exchanged with the hub.
const (
	frameInvocation = "invocation"
	frameCompletion = "completion"
	framePing       = "ping"
)

// closeTimeout bounds how long Close waits for the read loop to exit.
const closeTimeout = 5 * time.Second

// frame is the JSON envelope of every hub message.
type frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Target    string          `json:"target,omitempty"`
	Arguments []any           `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Handle is one live hub connection. A single goroutine reads frames and
// routes completions to waiting Invoke calls.
type Handle struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	closing  bool
	cause    *domain.CloseCause
	callback func(domain.CloseCause)
	pending  map[string]chan frame
}

func newHandle(conn *websocket.Conn) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: make(map[string]chan frame),
	}
	go h.readLoop()
	return h
}

// Close sends a normal closure and waits for the read loop to exit.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closing || h.cause != nil {
		h.closing = true
		h.mu.Unlock()
		_ = h.conn.CloseNow()
		h.cancel()
		<-h.done
		return nil
	}
	h.closing = true
	h.mu.Unlock()

	err := h.conn.Close(websocket.StatusNormalClosure, "client closing")
	h.cancel()

	select {
	case <-h.done:
	case <-time.After(closeTimeout):
		_ = h.conn.CloseNow()
		<-h.done
	}

	if err != nil && websocket.CloseStatus(err) == -1 {
		logger.Debug("stream close: %v", err)
	}
	return nil
}

// OnClosed registers the callback for the end of the connection.
func (h *Handle) OnClosed(callback func(domain.CloseCause)) {
	h.mu.Lock()
	if h.cause != nil {
		cause := *h.cause
		h.mu.Unlock()
		callback(cause)
		return
	}
	h.callback = callback
	h.mu.Unlock()
}

// Invoke sends an invocation frame and waits for its completion.
func (h *Handle) Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error) {
	id := uuid.NewString()
	reply := make(chan frame, 1)

	h.mu.Lock()
	if h.closing || h.cause != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("invoke %s: %w", target, domain.ErrConnectionClosed)
	}
	h.pending[id] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	data, err := json.Marshal(frame{Type: frameInvocation, ID: id, Target: target, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: encode: %w", target, err)
	}
	if err := h.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("invoke %s: %w: %w", target, domain.ErrConnectionClosed, err)
	}

	select {
	case f, ok := <-reply:
		if !ok {
			return nil, fmt.Errorf("invoke %s: %w", target, domain.ErrConnectionClosed)
		}
		if f.Error != "" {
			return nil, fmt.Errorf("invoke %s: %s", target, f.Error)
		}
		return f.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) readLoop() {
	for {
		typ, data, err := h.conn.Read(h.ctx)
		if err != nil {
			h.finish(err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debug("stream: ignoring malformed frame: %v", err)
			continue
		}
		switch f.Type {
		case frameCompletion:
			h.complete(f)
		case framePing:
		default:
			logger.Debug("stream: ignoring %q frame", f.Type)
		}
	}
}

func (h *Handle) complete(f frame) {
	h.mu.Lock()
	reply, ok := h.pending[f.ID]
	delete(h.pending, f.ID)
	h.mu.Unlock()
	if !ok {
		logger.Debug("stream: completion for unknown invocation %s", f.ID)
		return
	}
	reply <- f
}

// finish records the close cause once, fails waiting invocations and then
// runs the callback outside the lock.
func (h *Handle) finish(readErr error) {
	h.mu.Lock()
	cause := domain.CloseCause{Requested: h.closing}
	if !cause.Requested {
		cause.Err = closeError(readErr)
	}
	h.cause = &cause
	callback := h.callback
	pending := h.pending
	h.pending = make(map[string]chan frame)
	h.mu.Unlock()

	for _, reply := range pending {
		close(reply)
	}
	close(h.done)

	if callback != nil {
		callback(cause)
	}
}

// closeError describes why the server or network ended the connection.
// A normal closure from the server is still unexpected for the client and
// carries an error so the supervisor reconnects.
func closeError(err error) error {
	if status := websocket.CloseStatus(err); status != -1 {
		return fmt.Errorf("%w: server closed with status %d", domain.ErrConnectionClosed, status)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: read cancelled", domain.ErrConnectionClosed)
	}
	return fmt.Errorf("%w: %w", domain.ErrConnectionClosed, err)
}
