package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/markdown"
)

// chunkFlags are the chunking overrides shared by chunk, ingest and rechunk.
type chunkFlags struct {
	chunkSize      int
	overlapPercent int
	maxChunkSize   int
	normalize      bool
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "target chunk size in bytes")
	cmd.Flags().IntVar(&f.overlapPercent, "overlap", 0, "overlap between chunks, percent of chunk size (0-50)")
	cmd.Flags().IntVar(&f.maxChunkSize, "max-chunk-size", 0, "hard upper bound for a chunk in bytes")
	cmd.Flags().BoolVar(&f.normalize, "normalize-headings", false, "correct inconsistent heading levels")
}

// override returns nil when no chunking flag was given. Otherwise the
// configured chunking with the given flags applied.
func (f *chunkFlags) override(cmd *cobra.Command) (*domain.ChunkingConfig, error) {
	flags := cmd.Flags()
	if !flags.Changed("chunk-size") && !flags.Changed("overlap") &&
		!flags.Changed("max-chunk-size") && !flags.Changed("normalize-headings") {
		return nil, nil
	}

	cfg := domain.DefaultChunkingConfig()
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings: %w", err)
		}
		cfg = settings.Chunking
	}

	if flags.Changed("chunk-size") {
		cfg.ChunkSize = f.chunkSize
	}
	if flags.Changed("overlap") {
		cfg.OverlapPercent = f.overlapPercent
	}
	if flags.Changed("max-chunk-size") {
		cfg.MaxChunkSize = f.maxChunkSize
	}
	if flags.Changed("normalize-headings") {
		cfg.HeadingNormalization.Enabled = f.normalize
	}

	switch {
	case cfg.ChunkSize <= 0:
		return nil, fmt.Errorf("%w: --chunk-size must be positive", domain.ErrInvalidInput)
	case cfg.OverlapPercent < 0 || cfg.OverlapPercent > domain.MaxOverlapPercent:
		return nil, fmt.Errorf("%w: --overlap must be between 0 and %d", domain.ErrInvalidInput, domain.MaxOverlapPercent)
	case flags.Changed("max-chunk-size") && cfg.MaxChunkSize < cfg.ChunkSize:
		return nil, fmt.Errorf("%w: --max-chunk-size must be at least --chunk-size", domain.ErrInvalidInput)
	}
	cfg = cfg.Normalized()
	return &cfg, nil
}

var (
	chunkJSON    bool
	chunkOptions chunkFlags
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Chunk an OCR markdown file without storing it",
	Long: `Parses an OCR markdown file into blocks and prints the chunks the
hybrid chunker produces. Nothing is written to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	chunkOptions.register(chunkCmd)
	rootCmd.AddCommand(chunkCmd)
}

// chunkView is the JSON shape of a chunk preview.
type chunkView struct {
	Index               int                 `json:"index"`
	Text                string              `json:"text"`
	StartOffset         int                 `json:"start_offset"`
	EndOffset           int                 `json:"end_offset"`
	PageNumber          *int                `json:"page_number,omitempty"`
	PageRange           string              `json:"page_range,omitempty"`
	HeadingContext      string              `json:"heading_context,omitempty"`
	HeadingLevel        int                 `json:"heading_level,omitempty"`
	SectionPath         string              `json:"section_path,omitempty"`
	ContentTypes        domain.ContentTypes `json:"content_types"`
	IsAtomic            bool                `json:"is_atomic"`
	OverlapWithPrevious int                 `json:"overlap_with_previous"`
	OverlapWithNext     int                 `json:"overlap_with_next"`
}

func newChunkView(c *domain.Chunk) chunkView {
	return chunkView{
		Index:               c.Index,
		Text:                c.Text,
		StartOffset:         c.StartOffset,
		EndOffset:           c.EndOffset,
		PageNumber:          c.PageNumber,
		PageRange:           c.PageRange,
		HeadingContext:      c.HeadingContext,
		HeadingLevel:        c.HeadingLevel,
		SectionPath:         c.SectionPath,
		ContentTypes:        c.ContentTypes,
		IsAtomic:            c.IsAtomic,
		OverlapWithPrevious: c.OverlapWithPrevious,
		OverlapWithNext:     c.OverlapWithNext,
	}
}

func runChunk(cmd *cobra.Command, args []string) error {
	if chunker == nil {
		return errors.New("chunker not configured")
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	override, err := chunkOptions.override(cmd)
	if err != nil {
		return err
	}

	text := string(content)
	pages := markdown.ExtractPageOffsets(text)
	chunks := chunker.ChunkWithOverride(text, pages, override)

	if chunkJSON {
		views := make([]chunkView, len(chunks))
		for i := range chunks {
			views[i] = newChunkView(&chunks[i])
		}
		return printJSON(cmd, views)
	}
	printChunkTable(cmd, chunks)
	return nil
}

func printChunkTable(cmd *cobra.Command, chunks []domain.Chunk) {
	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return
	}

	cmd.Println(styled(out, titleStyle, fmt.Sprintf("%-5s %-7s %7s  %-24s %s", "#", "PAGES", "BYTES", "TYPES", "SECTION")))
	for i := range chunks {
		c := &chunks[i]
		types := joinKinds(c.ContentTypes)
		if c.IsAtomic {
			types += "*"
		}
		cmd.Printf("%-5d %-7s %7d  %-24s %s\n", c.Index, pageLabel(c.PageNumber, c.PageRange), c.Len(), types, c.SectionPath)
	}
	cmd.Println()
	cmd.Println(styled(out, dimStyle, fmt.Sprintf("%d chunks (* atomic)", len(chunks))))
}

func joinKinds(kinds domain.ContentTypes) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func pageLabel(page *int, pageRange string) string {
	switch {
	case pageRange != "":
		return pageRange
	case page != nil:
		return fmt.Sprintf("%d", *page)
	default:
		return "-"
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
