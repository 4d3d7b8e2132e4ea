package driving

import "github.com/custodia-labs/ocrprov/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.Settings, error)

	// Save persists application settings.
	Save(settings *domain.Settings) error

	// Set updates one setting by its dotted key, e.g. "chunking.chunk_size".
	Set(key, value string) error

	// List returns every setting key with its effective value, sorted by key.
	List() ([]Setting, error)

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}

// Setting is one configuration key and its effective value.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`

	// Default is true when the value is not set in the config file.
	Default bool `json:"default"`
}
