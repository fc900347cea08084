package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/logger"
)

// Ensure Authority implements the interface.
var _ driven.CredentialAuthority = (*Authority)(nil)

// Authority talks to the OAuth 2.0 authorization server of the hub.
type Authority struct {
	config      domain.SessionConfig
	httpClient  *http.Client
	openBrowser func(url string) error
	now         func() time.Time
}

// Option configures an Authority.
type Option func(*Authority)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authority) { a.httpClient = c }
}

// WithBrowserOpener replaces the function that opens the authorization page.
func WithBrowserOpener(open func(url string) error) Option {
	return func(a *Authority) { a.openBrowser = open }
}

// NewAuthority creates an authority for the configured server.
func NewAuthority(config domain.SessionConfig, opts ...Option) *Authority {
	a := &Authority{
		config:      config,
		openBrowser: OpenBrowser,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authority) oauthConfig(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.config.OAuth.ClientID,
		ClientSecret: a.config.OAuth.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.config.URL(a.config.OAuth.AuthorizePath),
			TokenURL:  a.config.URL(a.config.OAuth.TokenPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

// clientContext carries the configured HTTP client into the oauth2 package.
func (a *Authority) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// AuthenticateInteractively runs the authorization code flow with PKCE. It
// opens the browser, waits on a loopback redirect and exchanges the code.
// The caller's context bounds the whole flow.
func (a *Authority) AuthenticateInteractively(ctx context.Context, scopes []string) (domain.CredentialState, error) {
	port, err := FindAvailablePort(a.config.OAuth.CallbackPortStart, a.config.OAuth.CallbackPortEnd)
	if err != nil {
		return domain.CredentialState{}, fmt.Errorf("callback server: %w", err)
	}
	state, err := generateState()
	if err != nil {
		return domain.CredentialState{}, fmt.Errorf("generate state: %w", err)
	}

	server := NewCallbackServer(port, state)
	if err := server.Start(); err != nil {
		return domain.CredentialState{}, fmt.Errorf("callback server: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Debug("stopping callback server: %v", err)
		}
	}()

	conf := a.oauthConfig(server.RedirectURI(), scopes)
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	logger.Info("opening browser for sign-in")
	if err := a.openBrowser(authURL); err != nil {
		logger.Warn("could not open browser (%v); visit %s", err, authURL)
	}

	code, err := server.WaitForCode(ctx)
	if err != nil {
		return domain.CredentialState{}, err
	}

	tok, err := conf.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.CredentialState{}, fmt.Errorf("exchange authorization code: %w", classifyTokenError(err))
	}
	return credentialFromToken(tok, "", a.now()), nil
}

// RefreshToken exchanges a refresh token for a new credential.
func (a *Authority) RefreshToken(ctx context.Context, refreshToken string) (domain.CredentialState, error) {
	if refreshToken == "" {
		return domain.CredentialState{}, fmt.Errorf("%w: no refresh token", domain.ErrInvalidGrant)
	}

	conf := a.oauthConfig("", nil)
	src := conf.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.CredentialState{}, fmt.Errorf("refresh token: %w", classifyTokenError(err))
	}
	if tok.AccessToken == "" {
		return domain.CredentialState{}, errors.New("refresh token: server returned no access token")
	}
	return credentialFromToken(tok, refreshToken, a.now()), nil
}
