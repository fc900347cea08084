package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyServerAddress     = "server.address"
	keyHubPath           = "server.hub_path"
	keyMePath            = "server.me_path"
	keyRenewalMargin     = "session.renewal_margin"
	keyReconnectInterval = "session.reconnect_interval"
	keyAuthTimeout       = "session.auth_timeout"
	keyRefreshTimeout    = "session.refresh_timeout"
	keyConnectTimeout    = "session.connect_timeout"
	keyClientID          = "oauth.client_id"
	keyClientSecret      = "oauth.client_secret"
	keyAuthorizePath     = "oauth.authorize_path"
	keyTokenPath         = "oauth.token_path"
	keyScopes            = "oauth.scopes"
	keyCallbackPortStart = "oauth.callback_port_start"
	keyCallbackPortEnd   = "oauth.callback_port_end"
)

type settingKind int

const (
	kindString settingKind = iota
	kindSecret
	kindDuration
	kindInt
	kindList
)

// setting binds a config key to its field in domain.SessionConfig.
type setting struct {
	key  string
	kind settingKind
	str  func(*domain.SessionConfig) *string
	dur  func(*domain.SessionConfig) *time.Duration
	num  func(*domain.SessionConfig) *int
	list func(*domain.SessionConfig) *[]string
}

var settings = []setting{
	{key: keyServerAddress, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.ServerAddress }},
	{key: keyHubPath, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.HubPath }},
	{key: keyMePath, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.MePath }},
	{key: keyRenewalMargin, kind: kindDuration, dur: func(c *domain.SessionConfig) *time.Duration { return &c.RenewalMargin }},
	{key: keyReconnectInterval, kind: kindDuration, dur: func(c *domain.SessionConfig) *time.Duration { return &c.ReconnectInterval }},
	{key: keyAuthTimeout, kind: kindDuration, dur: func(c *domain.SessionConfig) *time.Duration { return &c.AuthTimeout }},
	{key: keyRefreshTimeout, kind: kindDuration, dur: func(c *domain.SessionConfig) *time.Duration { return &c.RefreshTimeout }},
	{key: keyConnectTimeout, kind: kindDuration, dur: func(c *domain.SessionConfig) *time.Duration { return &c.ConnectTimeout }},
	{key: keyClientID, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.OAuth.ClientID }},
	{key: keyClientSecret, kind: kindSecret, str: func(c *domain.SessionConfig) *string { return &c.OAuth.ClientSecret }},
	{key: keyAuthorizePath, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.OAuth.AuthorizePath }},
	{key: keyTokenPath, kind: kindString, str: func(c *domain.SessionConfig) *string { return &c.OAuth.TokenPath }},
	{key: keyScopes, kind: kindList, list: func(c *domain.SessionConfig) *[]string { return &c.OAuth.Scopes }},
	{key: keyCallbackPortStart, kind: kindInt, num: func(c *domain.SessionConfig) *int { return &c.OAuth.CallbackPortStart }},
	{key: keyCallbackPortEnd, kind: kindInt, num: func(c *domain.SessionConfig) *int { return &c.OAuth.CallbackPortEnd }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// LoadSessionConfig reads the session configuration from the store, falling
// back to defaults for anything not set, and validates the result.
func LoadSessionConfig(store driven.ConfigStore) (domain.SessionConfig, error) {
	cfg := domain.DefaultSessionConfig()
	for _, s := range settings {
		if err := applyStored(&cfg, store, s); err != nil {
			return domain.SessionConfig{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}

func applyStored(cfg *domain.SessionConfig, store driven.ConfigStore, s setting) error {
	if _, ok := store.Get(s.key); !ok {
		return nil
	}
	switch s.kind {
	case kindString, kindSecret:
		if v := store.GetString(s.key); v != "" {
			*s.str(cfg) = v
		}
	case kindDuration:
		d, ok, err := store.GetDuration(s.key)
		if err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
		if ok {
			*s.dur(cfg) = d
		}
	case kindInt:
		if v := store.GetInt(s.key); v != 0 {
			*s.num(cfg) = v
		}
	case kindList:
		if v := store.GetStringSlice(s.key); len(v) > 0 {
			*s.list(cfg) = v
		}
	}
	return nil
}

// SettingsService manages the persisted session configuration.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns the effective configuration.
func (s *SettingsService) Get() (domain.SessionConfig, error) {
	return LoadSessionConfig(s.configStore)
}

// Set validates value for key and persists it. The resulting configuration
// must still be valid as a whole.
func (s *SettingsService) Set(key, value string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	cfg, err := s.Get()
	if err != nil {
		// Allow fixing a broken file one key at a time.
		cfg = domain.DefaultSessionConfig()
	}

	var stored any
	value = strings.TrimSpace(value)
	switch def.kind {
	case kindString, kindSecret:
		*def.str(&cfg) = value
		stored = value
	case kindDuration:
		d, err := domain.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*def.dur(&cfg) = d
		stored = d.String()
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		*def.num(&cfg) = n
		stored = int64(n)
	case kindList:
		list := splitList(value)
		*def.list(&cfg) = list
		stored = list
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.configStore.Set(key, stored)
}

// Unset removes a stored setting.
func (s *SettingsService) Unset(key string) error {
	if _, ok := lookupSetting(key); !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	return s.configStore.Unset(key)
}

// Values returns the effective value of every known setting.
func (s *SettingsService) Values() (map[string]string, error) {
	cfg, err := s.Get()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(settings))
	for _, def := range settings {
		values[def.key] = formatSetting(&cfg, def)
	}
	return values, nil
}

// Keys returns the known setting keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settings))
	for i, def := range settings {
		keys[i] = def.key
	}
	return keys
}

// GetDefaults returns the built-in configuration.
func (s *SettingsService) GetDefaults() domain.SessionConfig {
	return domain.DefaultSessionConfig()
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

func formatSetting(cfg *domain.SessionConfig, def setting) string {
	switch def.kind {
	case kindSecret:
		if *def.str(cfg) == "" {
			return ""
		}
		return "********"
	case kindDuration:
		return def.dur(cfg).String()
	case kindInt:
		return strconv.Itoa(*def.num(cfg))
	case kindList:
		return strings.Join(*def.list(cfg), ",")
	default:
		return *def.str(cfg)
	}
}

// splitList accepts comma or whitespace separated values.
func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
