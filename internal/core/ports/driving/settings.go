package driving

import "github.com/custodia-labs/hublink/internal/core/domain"

// SettingsService manages the persisted session configuration.
type SettingsService interface {
	// Get returns the effective configuration: stored values over defaults.
	Get() (domain.SessionConfig, error)

	// Set validates and persists one setting given in its textual form.
	Set(key, value string) error

	// Unset removes a stored setting so its default applies again.
	Unset(key string) error

	// Values returns the effective value of every known setting as text.
	// Secret values are masked.
	Values() (map[string]string, error)

	// Keys returns the known setting keys in display order.
	Keys() []string

	// GetDefaults returns the built-in configuration.
	GetDefaults() domain.SessionConfig

	// Path returns where settings are stored.
	Path() string
}
