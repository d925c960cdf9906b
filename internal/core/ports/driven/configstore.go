package driven

// ConfigStore persists settings under dot-separated keys ("chunk.size").
// Values keep the type the file format decoded them as; SettingsService
// parses and validates them.
type ConfigStore interface {
	// Get returns the stored value of key and whether it is set.
	Get(key string) (any, bool)

	// Set stores value under key and persists it before returning.
	Set(key string, value any) error

	// Delete removes key and persists the change. Deleting an unset key is
	// not an error.
	Delete(key string) error

	// Path returns the backing file.
	Path() string
}
