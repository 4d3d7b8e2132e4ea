package domain

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// Limit is the default number of results.
	Limit int

	// Threshold is the default minimum similarity.
	Threshold float64
}

// EmbeddingProvider names the service that generates embeddings.
type EmbeddingProvider string

// Supported embedding providers.
const (
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid reports whether p is a supported provider. Empty means ollama.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case "", EmbeddingProviderOllama, EmbeddingProviderOpenAI:
		return true
	}
	return false
}

// DefaultOllamaBaseURL is the local Ollama endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434"

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider selects the embedding backend.
	Provider EmbeddingProvider

	// BaseURL is the provider API endpoint.
	BaseURL string

	// APIKey authenticates hosted providers. Unused by Ollama.
	APIKey string

	// Model is the embedding model name. It must produce EmbeddingDimension vectors.
	Model string

	// RequestsPerSecond throttles calls to the provider; 0 disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	switch e.Provider {
	case EmbeddingProviderOpenAI:
		return e.APIKey != "" && e.Model != ""
	case "", EmbeddingProviderOllama:
		return e.BaseURL != "" && e.Model != ""
	}
	return false
}

// StorageSettings holds storage location configuration.
type StorageSettings struct {
	// DataDir is the directory holding the SQLite database.
	DataDir string
}

// Settings is the complete application configuration.
type Settings struct {
	Chunking  ChunkingConfig
	Search    SearchSettings
	Embedding EmbeddingSettings
	Storage   StorageSettings
}

// DefaultSettings returns settings populated with defaults.
func DefaultSettings() Settings {
	return Settings{
		Chunking: DefaultChunkingConfig(),
		Search: SearchSettings{
			Limit: DefaultSearchLimit,
		},
		Embedding: EmbeddingSettings{
			Provider:          EmbeddingProviderOllama,
			BaseURL:           DefaultOllamaBaseURL,
			Model:             "nomic-embed-text",
			RequestsPerSecond: 10,
		},
	}
}
