package services

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	KeyChunkSize            = "chunking.chunk_size"
	KeyOverlapPercent       = "chunking.overlap_percent"
	KeyMaxChunkSize         = "chunking.max_chunk_size"
	KeyHeadingNormalization = "chunking.heading_normalization"
	KeyMinPatternCount      = "chunking.min_pattern_count"
	KeySearchLimit          = "search.limit"
	KeySearchThreshold      = "search.threshold"
	KeyEmbedProvider        = "embedding.provider"
	KeyEmbedBaseURL         = "embedding.base_url"
	KeyEmbedAPIKey          = "embedding.api_key"
	KeyEmbedModel           = "embedding.model"
	KeyEmbedRPS             = "embedding.requests_per_second"
	KeyDataDir              = "storage.data_dir"
)

type settingKind int

const (
	kindInt settingKind = iota
	kindFloat
	kindBool
	kindString
)

var settingKinds = map[string]settingKind{
	KeyChunkSize:            kindInt,
	KeyOverlapPercent:       kindInt,
	KeyMaxChunkSize:         kindInt,
	KeyHeadingNormalization: kindBool,
	KeyMinPatternCount:      kindInt,
	KeySearchLimit:          kindInt,
	KeySearchThreshold:      kindFloat,
	KeyEmbedProvider:        kindString,
	KeyEmbedBaseURL:         kindString,
	KeyEmbedAPIKey:          kindString,
	KeyEmbedModel:           kindString,
	KeyEmbedRPS:             kindFloat,
	KeyDataDir:              kindString,
}

// SettingKeys returns the recognised keys, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing keys take defaults.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Chunking: domain.ChunkingConfig{
			ChunkSize:      s.getInt(KeyChunkSize, defaults.Chunking.ChunkSize),
			OverlapPercent: s.getInt(KeyOverlapPercent, defaults.Chunking.OverlapPercent),
			MaxChunkSize:   s.getInt(KeyMaxChunkSize, defaults.Chunking.MaxChunkSize),
			HeadingNormalization: domain.HeadingNormalization{
				Enabled:         s.getBool(KeyHeadingNormalization, defaults.Chunking.HeadingNormalization.Enabled),
				MinPatternCount: s.getInt(KeyMinPatternCount, defaults.Chunking.HeadingNormalization.MinPatternCount),
			},
		},
		Search: domain.SearchSettings{
			Limit:     s.getInt(KeySearchLimit, defaults.Search.Limit),
			Threshold: s.getFloat(KeySearchThreshold, defaults.Search.Threshold),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          domain.EmbeddingProvider(s.getString(KeyEmbedProvider, string(defaults.Embedding.Provider))),
			BaseURL:           s.getString(KeyEmbedBaseURL, defaults.Embedding.BaseURL),
			APIKey:            s.getString(KeyEmbedAPIKey, defaults.Embedding.APIKey),
			Model:             s.getString(KeyEmbedModel, defaults.Embedding.Model),
			RequestsPerSecond: s.getFloat(KeyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		Storage: domain.StorageSettings{
			DataDir: s.getString(KeyDataDir, defaults.Storage.DataDir),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{KeyChunkSize, settings.Chunking.ChunkSize},
		{KeyOverlapPercent, settings.Chunking.OverlapPercent},
		{KeyMaxChunkSize, settings.Chunking.MaxChunkSize},
		{KeyHeadingNormalization, settings.Chunking.HeadingNormalization.Enabled},
		{KeyMinPatternCount, settings.Chunking.HeadingNormalization.MinPatternCount},
		{KeySearchLimit, settings.Search.Limit},
		{KeySearchThreshold, settings.Search.Threshold},
		{KeyEmbedProvider, string(settings.Embedding.Provider)},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedAPIKey, settings.Embedding.APIKey},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{KeyDataDir, settings.Storage.DataDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case kindString:
		parsed = value
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	applySetting(settings, key, parsed)
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.configStore.Set(key, parsed)
}

// List returns every setting with its effective value, sorted by key.
func (s *SettingsService) List() ([]driving.Setting, error) {
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}
	keys := SettingKeys()
	out := make([]driving.Setting, 0, len(keys))
	for _, key := range keys {
		_, stored := s.configStore.Get(key)
		out = append(out, driving.Setting{
			Key:     key,
			Value:   settingValue(settings, key),
			Default: !stored,
		})
	}
	return out, nil
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

func applySetting(settings *domain.Settings, key string, value any) {
	switch key {
	case KeyChunkSize:
		settings.Chunking.ChunkSize = value.(int)
	case KeyOverlapPercent:
		settings.Chunking.OverlapPercent = value.(int)
	case KeyMaxChunkSize:
		settings.Chunking.MaxChunkSize = value.(int)
	case KeyHeadingNormalization:
		settings.Chunking.HeadingNormalization.Enabled = value.(bool)
	case KeyMinPatternCount:
		settings.Chunking.HeadingNormalization.MinPatternCount = value.(int)
	case KeySearchLimit:
		settings.Search.Limit = value.(int)
	case KeySearchThreshold:
		settings.Search.Threshold = value.(float64)
	case KeyEmbedProvider:
		settings.Embedding.Provider = domain.EmbeddingProvider(value.(string))
	case KeyEmbedBaseURL:
		settings.Embedding.BaseURL = value.(string)
	case KeyEmbedAPIKey:
		settings.Embedding.APIKey = value.(string)
	case KeyEmbedModel:
		settings.Embedding.Model = value.(string)
	case KeyEmbedRPS:
		settings.Embedding.RequestsPerSecond = value.(float64)
	case KeyDataDir:
		settings.Storage.DataDir = value.(string)
	}
}

func settingValue(settings *domain.Settings, key string) string {
	switch key {
	case KeyChunkSize:
		return strconv.Itoa(settings.Chunking.ChunkSize)
	case KeyOverlapPercent:
		return strconv.Itoa(settings.Chunking.OverlapPercent)
	case KeyMaxChunkSize:
		return strconv.Itoa(settings.Chunking.MaxChunkSize)
	case KeyHeadingNormalization:
		return strconv.FormatBool(settings.Chunking.HeadingNormalization.Enabled)
	case KeyMinPatternCount:
		return strconv.Itoa(settings.Chunking.HeadingNormalization.MinPatternCount)
	case KeySearchLimit:
		return strconv.Itoa(settings.Search.Limit)
	case KeySearchThreshold:
		return strconv.FormatFloat(settings.Search.Threshold, 'g', -1, 64)
	case KeyEmbedProvider:
		return string(settings.Embedding.Provider)
	case KeyEmbedBaseURL:
		return settings.Embedding.BaseURL
	case KeyEmbedAPIKey:
		return settings.Embedding.APIKey
	case KeyEmbedModel:
		return settings.Embedding.Model
	case KeyEmbedRPS:
		return strconv.FormatFloat(settings.Embedding.RequestsPerSecond, 'g', -1, 64)
	case KeyDataDir:
		return settings.Storage.DataDir
	}
	return ""
}

func validateSettings(settings *domain.Settings) error {
	c := settings.Chunking
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive", domain.ErrInvalidInput)
	case c.OverlapPercent < 0 || c.OverlapPercent > domain.MaxOverlapPercent:
		return fmt.Errorf("%w: overlap_percent must be between 0 and %d", domain.ErrInvalidInput, domain.MaxOverlapPercent)
	case c.MaxChunkSize < c.ChunkSize:
		return fmt.Errorf("%w: max_chunk_size must be at least chunk_size", domain.ErrInvalidInput)
	case c.HeadingNormalization.MinPatternCount <= 0:
		return fmt.Errorf("%w: min_pattern_count must be positive", domain.ErrInvalidInput)
	}

	sr := settings.Search
	if sr.Limit < 1 || sr.Limit > domain.MaxSearchLimit {
		return fmt.Errorf("%w: search limit must be between 1 and %d", domain.ErrInvalidInput, domain.MaxSearchLimit)
	}
	if sr.Threshold < 0 || sr.Threshold > 1 {
		return fmt.Errorf("%w: search threshold must be between 0 and 1", domain.ErrInvalidInput)
	}

	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}
