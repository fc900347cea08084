package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default session timings.
const (
	// DefaultRenewalMargin is how long before its literal expiry an access
	// token is treated as unusable.
	DefaultRenewalMargin = 60 * time.Second

	// DefaultReconnectInterval is the constant delay between reconnect attempts.
	DefaultReconnectInterval = 5 * time.Second

	// DefaultAuthTimeout bounds the interactive authentication.
	DefaultAuthTimeout = 90 * time.Second

	// DefaultRefreshTimeout bounds a single refresh exchange.
	DefaultRefreshTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds a single stream open attempt.
	DefaultConnectTimeout = 30 * time.Second
)

// Default endpoints.
const (
	DefaultServerAddress = "https://localhost:44319"
	DefaultHubPath       = "/hub/train"
	DefaultMePath        = "/me"
	DefaultAuthorizePath = "/connect/authorize"
	DefaultTokenPath     = "/connect/token"
	DefaultClientID      = "hublink"

	DefaultCallbackPortStart = 8765
	DefaultCallbackPortEnd   = 8775
)

// DefaultScopes are requested during interactive authentication.
// offline_access is what makes the authority issue a refresh token.
var DefaultScopes = []string{"openid", "offline_access"}

// SessionConfig holds the named, overridable parameters of a session.
type SessionConfig struct {
	// ServerAddress is the base service address.
	ServerAddress string
	// HubPath is the path of the streaming endpoint.
	HubPath string
	// MePath is the path of the resource fetched by "hublink me".
	MePath string

	// RenewalMargin applies to the access token only.
	RenewalMargin time.Duration
	// ReconnectInterval is the fixed delay between reconnect attempts.
	ReconnectInterval time.Duration
	// AuthTimeout bounds each interactive authentication.
	AuthTimeout time.Duration
	// RefreshTimeout bounds each refresh exchange.
	RefreshTimeout time.Duration
	// ConnectTimeout bounds each stream open attempt.
	ConnectTimeout time.Duration

	// OAuth is the client registration used against the authority.
	OAuth OAuthClientConfig
}

// OAuthClientConfig describes this application's registration with the
// credential authority.
type OAuthClientConfig struct {
	ClientID      string
	ClientSecret  string
	AuthorizePath string
	TokenPath     string
	Scopes        []string

	// CallbackPortStart and CallbackPortEnd bound the loopback redirect port.
	CallbackPortStart int
	CallbackPortEnd   int
}

// DefaultSessionConfig returns the configuration used when nothing is overridden.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ServerAddress:     DefaultServerAddress,
		HubPath:           DefaultHubPath,
		MePath:            DefaultMePath,
		RenewalMargin:     DefaultRenewalMargin,
		ReconnectInterval: DefaultReconnectInterval,
		AuthTimeout:       DefaultAuthTimeout,
		RefreshTimeout:    DefaultRefreshTimeout,
		ConnectTimeout:    DefaultConnectTimeout,
		OAuth: OAuthClientConfig{
			ClientID:          DefaultClientID,
			AuthorizePath:     DefaultAuthorizePath,
			TokenPath:         DefaultTokenPath,
			Scopes:            append([]string(nil), DefaultScopes...),
			CallbackPortStart: DefaultCallbackPortStart,
			CallbackPortEnd:   DefaultCallbackPortEnd,
		},
	}
}

// Validate checks that the configuration can drive a session.
func (c SessionConfig) Validate() error {
	u, err := url.Parse(c.ServerAddress)
	if err != nil {
		return fmt.Errorf("%w: server address: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: server address scheme must be http or https, got %q", ErrInvalidInput, u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return fmt.Errorf("%w: server address must include a host", ErrInvalidInput)
	}
	if !strings.HasPrefix(c.HubPath, "/") {
		return fmt.Errorf("%w: hub path must start with /", ErrInvalidInput)
	}
	if c.RenewalMargin < 0 {
		return fmt.Errorf("%w: renewal margin must not be negative", ErrInvalidInput)
	}
	for name, d := range map[string]time.Duration{
		"reconnect interval": c.ReconnectInterval,
		"auth timeout":       c.AuthTimeout,
		"refresh timeout":    c.RefreshTimeout,
		"connect timeout":    c.ConnectTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("%w: oauth client id is required", ErrInvalidInput)
	}
	if c.OAuth.CallbackPortStart <= 0 || c.OAuth.CallbackPortEnd < c.OAuth.CallbackPortStart {
		return fmt.Errorf("%w: invalid callback port range %d-%d",
			ErrInvalidInput, c.OAuth.CallbackPortStart, c.OAuth.CallbackPortEnd)
	}
	return nil
}

// URL joins the server address with a path.
func (c SessionConfig) URL(path string) string {
	return strings.TrimRight(c.ServerAddress, "/") + path
}

// ParseDuration converts a configuration value to a duration. Strings use Go
// duration syntax ("90s", "1m30s"); integers and digit-only strings are whole
// seconds.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: cannot use %T as a duration", ErrInvalidInput, value)
	}
}
