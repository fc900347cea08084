// Package stream implements the hub streaming connection over WebSocket.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.StreamConnector = (*Connector)(nil)

// maxFrameBytes bounds a single inbound hub frame.
const maxFrameBytes = 1 << 20

// Connector dials the hub endpoint with a bearer token.
type Connector struct {
	config     domain.SessionConfig
	httpClient *http.Client
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient sets the client used for the WebSocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(cn *Connector) { cn.httpClient = c }
}

// NewConnector creates a connector for the configured hub.
func NewConnector(config domain.SessionConfig, opts ...Option) *Connector {
	c := &Connector{config: config}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open performs the WebSocket handshake. The token is sent both as a bearer
// header and as the access_token query parameter.
func (c *Connector) Open(ctx context.Context, accessToken string) (driven.StreamHandle, error) {
	endpoint, err := hubURL(c.config, accessToken)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, classifyDialError(resp, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	logger.Debug("stream connected to %s", c.config.URL(c.config.HubPath))
	return newHandle(conn), nil
}

// hubURL builds the WebSocket URL of the hub endpoint.
func hubURL(config domain.SessionConfig, accessToken string) (string, error) {
	u, err := url.Parse(config.URL(config.HubPath))
	if err != nil {
		return "", fmt.Errorf("%w: hub url: %w", domain.ErrInvalidInput, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classifyDialError maps a failed handshake to the domain error kinds the
// supervisor acts on.
func classifyDialError(resp *http.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: hub refused connection: %w", domain.ErrForbidden, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: hub rejected token: %w", domain.ErrUnauthorized, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransientConnection, err)
}
