package driving

import "github.com/custodia-labs/ragpipe/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file,
	// then environment overrides.
	Get() (*domain.Settings, error)

	// Set validates and persists a single key.
	Set(key, value string) error

	// Unset removes a key from the config file, restoring its default.
	Unset(key string) error

	// Keys returns every supported configuration key in display order.
	Keys() []string

	// Value returns the effective value of a key as a string.
	Value(key string) (string, error)

	// Path returns the configuration file path.
	Path() string
}
