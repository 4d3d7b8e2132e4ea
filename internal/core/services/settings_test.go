package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), *settings)
	assert.Equal(t, domain.DefaultSettings(), service.GetDefaults())
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(KeyChunkSize, int64(1200))
	_ = store.Set(KeyOverlapPercent, 0)
	_ = store.Set(KeyHeadingNormalization, true)
	_ = store.Set(KeySearchThreshold, 0.35)
	_ = store.Set(KeyEmbedModel, "custom-embed")
	_ = store.Set(KeyDataDir, "/data")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, 1200, settings.Chunking.ChunkSize)
	assert.Equal(t, 0, settings.Chunking.OverlapPercent)
	assert.True(t, settings.Chunking.HeadingNormalization.Enabled)
	assert.InDelta(t, 0.35, settings.Search.Threshold, 1e-9)
	assert.Equal(t, "custom-embed", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, "/data", settings.Storage.DataDir)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings := domain.DefaultSettings()
	settings.Chunking.ChunkSize = 1000
	settings.Chunking.MaxChunkSize = 4000
	settings.Search.Limit = 25

	require.NoError(t, service.Save(&settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *got)
	assert.ElementsMatch(t, SettingKeys(), store.Keys())
}

func TestSettingsService_Save_RejectsInvalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings := domain.DefaultSettings()
	settings.Chunking.MaxChunkSize = settings.Chunking.ChunkSize - 1

	err := service.Save(&settings)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, store.Keys())
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set(KeyChunkSize, " 1500 "))
	require.NoError(t, service.Set(KeySearchThreshold, "0.5"))
	require.NoError(t, service.Set(KeyHeadingNormalization, "true"))
	require.NoError(t, service.Set(KeyEmbedBaseURL, "http://gpu:11434"))
	require.NoError(t, service.Set(KeyEmbedProvider, "openai"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 1500, settings.Chunking.ChunkSize)
	assert.InDelta(t, 0.5, settings.Search.Threshold, 1e-9)
	assert.True(t, settings.Chunking.HeadingNormalization.Enabled)
	assert.Equal(t, "http://gpu:11434", settings.Embedding.BaseURL)
	assert.Equal(t, domain.EmbeddingProviderOpenAI, settings.Embedding.Provider)
}

func TestSettingsService_Set_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "search.mode", "hybrid"},
		{"not an int", KeyChunkSize, "big"},
		{"not a number", KeySearchThreshold, "high"},
		{"nan", KeySearchThreshold, "NaN"},
		{"not a bool", KeyHeadingNormalization, "maybe"},
		{"threshold out of range", KeySearchThreshold, "1.5"},
		{"limit out of range", KeySearchLimit, "101"},
		{"overlap out of range", KeyOverlapPercent, "75"},
		{"chunk larger than max", KeyChunkSize, "9000"},
		{"negative rate", KeyEmbedRPS, "-1"},
		{"unknown provider", KeyEmbedProvider, "cohere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			err := NewSettingsService(store).Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, store.Keys())
		})
	}
}

func TestSettingsService_Validate(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Validate())

	_ = store.Set(KeySearchLimit, 0)
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidInput)
}

func TestSettingsService_List(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Set(KeySearchLimit, "25"))

	list, err := service.List()
	require.NoError(t, err)

	require.Len(t, list, len(SettingKeys()))
	byKey := make(map[string]driving.Setting, len(list))
	for i, s := range list {
		if i > 0 {
			assert.Less(t, list[i-1].Key, s.Key)
		}
		byKey[s.Key] = s
	}
	assert.Equal(t, driving.Setting{Key: KeySearchLimit, Value: "25"}, byKey[KeySearchLimit])
	assert.Equal(t, driving.Setting{Key: KeyChunkSize, Value: "2000", Default: true}, byKey[KeyChunkSize])
	assert.Equal(t, "ollama", byKey[KeyEmbedProvider].Value)
	assert.Equal(t, "10", byKey[KeyEmbedRPS].Value)
}
