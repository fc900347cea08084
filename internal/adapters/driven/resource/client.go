// Package resource fetches authenticated resources from the service outside
// the streaming connection.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.ResourceFetcher = (*Client)(nil)

const (
	// DefaultRate is the sustained request rate towards the service.
	DefaultRate = 2.0

	// maxBodyBytes bounds a resource body read into memory.
	maxBodyBytes = 4 << 20

	headerRetryAfter = "Retry-After"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("resource request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps authorization statuses onto the domain error kinds.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	}
	return nil
}

// Client performs rate-limited bearer requests.
type Client struct {
	config  domain.SessionConfig
	base    http.RoundTripper
	limiter *rate.Limiter
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the underlying transport beneath the bearer transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithRate sets the request rate in requests per second.
func WithRate(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// NewClient creates a resource client for the configured server.
func NewClient(config domain.SessionConfig, opts ...Option) *Client {
	c := &Client{
		config:  config,
		base:    http.DefaultTransport,
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		timeout: config.ConnectTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMe returns the body of the configured "me" resource.
func (c *Client) FetchMe(ctx context.Context, accessToken string) ([]byte, error) {
	return c.Get(ctx, c.config.MePath, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

// FetchMeWith fetches the "me" resource with the current token of a provider,
// typically the running session.
func (c *Client) FetchMeWith(ctx context.Context, tokens driven.TokenProvider) ([]byte, error) {
	return c.Get(ctx, c.config.MePath, providerSource{ctx: ctx, provider: tokens})
}

// Get issues GET {address}{path} with a bearer token from src.
func (c *Client) Get(ctx context.Context, path string, src oauth2.TokenSource) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := &http.Client{Transport: &oauth2.Transport{Source: src, Base: c.base}}
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTimedOut, err)
		}
		return nil, fmt.Errorf("resource request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read resource body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get(headerRetryAfter)),
		}
	}
	return body, nil
}

// parseRetryAfter reads the seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// providerSource adapts a TokenProvider to an oauth2.TokenSource.
type providerSource struct {
	ctx      context.Context
	provider driven.TokenProvider
}

func (p providerSource) Token() (*oauth2.Token, error) {
	token, err := p.provider.GetToken(p.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
