// Package cli implements the ocrprov command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Chunker previews chunking without touching storage.
type Chunker interface {
	Chunk(text string, pages []domain.PageOffset) []domain.Chunk
	ChunkWithOverride(text string, pages []domain.PageOffset, override *domain.ChunkingConfig) []domain.Chunk
}

// Services holds the core services the commands call into.
// Any of them may be nil; commands needing a missing one fail with an error.
type Services struct {
	Ingest     driving.IngestService
	Search     driving.SearchService
	Document   driving.DocumentService
	Provenance driving.ProvenanceService
	Settings   driving.SettingsService
	Chunker    Chunker

	// DryRunIngest runs the ingest pipeline against throwaway stores.
	DryRunIngest driving.IngestService
}

var (
	ingestService       driving.IngestService
	searchService       driving.SearchService
	documentService     driving.DocumentService
	provenanceService   driving.ProvenanceService
	settingsService     driving.SettingsService
	chunker             Chunker
	dryRunIngestService driving.IngestService
)

// verbose is the global --verbose flag.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ocrprov",
	Short: "Provenance-tracked chunking and search for OCR output",
	Long: `ocrprov turns OCR markdown into structure-aware chunks, records a
provenance chain for every derived artifact and searches the embedded
chunks by vector similarity, reranked by OCR quality.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
}

// SetServices wires the core services into the commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	searchService = s.Search
	documentService = s.Document
	provenanceService = s.Provenance
	settingsService = s.Settings
	chunker = s.Chunker
	dryRunIngestService = s.DryRunIngest
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
