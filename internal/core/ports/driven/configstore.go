package driven

import "time"

// ConfigStore provides access to application configuration.
// Keys use dot notation matching the TOML table layout, e.g. "session.auth_timeout".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetDuration retrieves a duration written as a Go duration string ("90s")
	// or as whole seconds. Returns ok=false if the key doesn't exist and an
	// error if it exists but cannot be parsed.
	GetDuration(key string) (d time.Duration, ok bool, err error)

	// GetStringSlice retrieves a string slice configuration value.
	// Returns nil if key doesn't exist or isn't a slice.
	GetStringSlice(key string) []string

	// Keys returns all configured keys in sorted order.
	Keys() []string

	// Set stores a configuration value.
	// The value is persisted immediately.
	Set(key string, value any) error

	// Unset removes a key. The change is persisted immediately.
	Unset(key string) error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
