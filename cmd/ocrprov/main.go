// Command ocrprov ingests OCR markdown, chunks it with provenance and
// serves semantic search over the result.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ocrprov/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ocrprov/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/ocrprov/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/ocrprov/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ocrprov/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ocrprov/internal/adapters/driving/cli"
	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/services"
	"github.com/custodia-labs/ocrprov/internal/logger"
	"github.com/custodia-labs/ocrprov/internal/normalisers"
	"github.com/custodia-labs/ocrprov/internal/postprocessors"
	"github.com/custodia-labs/ocrprov/internal/postprocessors/chunker"
)

// Set by the release build.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	applyEnv(settings)

	store, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	embedder, err := newEmbedder(settings.Embedding)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	normaliserRegistry := normalisers.NewDefaultRegistry()
	chunkers := postprocessors.NewDefaultRegistry()
	hybrid := chunker.New(chunker.WithConfig(settings.Chunking))

	provenanceService := services.NewProvenanceService(store.ProvenanceStore())
	ingestService := services.NewIngestService(store.DocumentStore(), store.VectorStore(),
		provenanceService, normaliserRegistry, hybrid, embedder)
	ingestService.SetChunkerFactory(chunkers)

	// Dry runs go through the same pipeline into throwaway stores.
	dryDocs := memory.NewDocumentStore()
	dryRunIngest := services.NewIngestService(dryDocs, dryDocs.VectorStore(),
		services.NewProvenanceService(memory.NewProvenanceStore()), normaliserRegistry, hybrid, nil)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ingest:       ingestService,
		Search:       services.NewSearchService(store.VectorStore(), embedder),
		Document:     services.NewDocumentService(store.DocumentStore(), store.VectorStore(), provenanceService),
		Provenance:   provenanceService,
		Settings:     settingsService,
		Chunker:      hybrid,
		DryRunIngest: dryRunIngest,
	})
	return cli.Execute()
}

// applyEnv lets the environment (or a .env file) override stored settings.
func applyEnv(settings *domain.Settings) {
	if dir := os.Getenv("OCRPROV_DATA_DIR"); dir != "" {
		settings.Storage.DataDir = dir
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && settings.Embedding.Provider != domain.EmbeddingProviderOpenAI {
		settings.Embedding.BaseURL = host
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = key
	}
}

// newEmbedder returns nil when no provider is configured; ingest then
// stores chunks without vectors and search reports the embedder missing.
func newEmbedder(cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !cfg.IsConfigured() {
		logger.Debug("Embedding provider not configured")
		return nil, nil
	}

	switch cfg.Provider {
	case domain.EmbeddingProviderOpenAI:
		oc := openai.Config{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}
		if cfg.BaseURL != domain.DefaultOllamaBaseURL {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model == ollama.DefaultModel {
			oc.Model = openai.DefaultModel
		}
		svc, err := openai.NewEmbeddingService(oc)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return svc, nil
	default:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	}
}
