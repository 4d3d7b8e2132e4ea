package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/services"
)

var (
	searchLimit        int
	searchThreshold    float64
	searchDocuments    []string
	searchContentTypes []string
	searchSection      string
	searchHeading      string
	searchAtomic       bool
	searchPages        string
	searchJSON         bool
)

// snippetLength is the number of runes of text shown per result.
const snippetLength = 200

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Embeds the query and returns the most similar chunks, image
descriptions and extractions. Scores are cosine similarity weighted by the
OCR quality of the source document.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity (0-1)")
	searchCmd.Flags().StringSliceVar(&searchDocuments, "document", nil, "restrict to document IDs")
	searchCmd.Flags().StringSliceVar(&searchContentTypes, "content-type", nil, "restrict chunks to content types (table, code, list, ...)")
	searchCmd.Flags().StringVar(&searchSection, "section", "", "restrict chunks to a section path prefix")
	searchCmd.Flags().StringVar(&searchHeading, "heading", "", "restrict chunks to a heading")
	searchCmd.Flags().BoolVar(&searchAtomic, "atomic", false, "only whole tables and code blocks")
	searchCmd.Flags().StringVar(&searchPages, "pages", "", "page range, e.g. 3, 2-5, 4- or -10")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts, err := searchOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	results, err := searchService.SearchText(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}
	printSearchResults(cmd, results)
	return nil
}

func searchOptionsFromFlags(cmd *cobra.Command) (domain.VectorSearchOptions, error) {
	opts := domain.VectorSearchOptions{
		Limit:       searchLimit,
		Threshold:   searchThreshold,
		DocumentIDs: searchDocuments,
	}

	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return opts, fmt.Errorf("failed to get settings: %w", err)
		}
		if !cmd.Flags().Changed("limit") {
			opts.Limit = settings.Search.Limit
		}
		if !cmd.Flags().Changed("threshold") {
			opts.Threshold = settings.Search.Threshold
		}
	}

	spec := services.ChunkFilterSpec{
		SectionPrefix: searchSection,
		Heading:       searchHeading,
		AtomicOnly:    searchAtomic,
	}
	for _, ct := range searchContentTypes {
		kind := domain.BlockKind(strings.ToLower(strings.TrimSpace(ct)))
		if !kind.IsValid() {
			return opts, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidInput, ct)
		}
		spec.ContentTypes = append(spec.ContentTypes, kind)
	}
	filter, err := spec.Build()
	if err != nil {
		return opts, err
	}
	opts.ChunkFilter = filter

	if searchPages != "" {
		pr, err := parsePageRange(searchPages)
		if err != nil {
			return opts, err
		}
		opts.PageRange = pr
	}
	return opts, nil
}

// parsePageRange accepts "N", "A-B", "A-" and "-B".
func parsePageRange(s string) (*domain.PageRangeFilter, error) {
	invalid := fmt.Errorf("%w: invalid page range %q", domain.ErrInvalidInput, s)

	lo, hi, isRange := strings.Cut(strings.TrimSpace(s), "-")
	parse := func(v string) (int, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, invalid
		}
		return n, nil
	}

	minPage, err := parse(lo)
	if err != nil {
		return nil, err
	}
	if !isRange {
		if minPage == 0 {
			return nil, invalid
		}
		return &domain.PageRangeFilter{Min: minPage, Max: minPage}, nil
	}
	maxPage, err := parse(hi)
	if err != nil {
		return nil, err
	}
	if minPage == 0 && maxPage == 0 {
		return nil, invalid
	}
	if maxPage > 0 && minPage > maxPage {
		return nil, invalid
	}
	return &domain.PageRangeFilter{Min: minPage, Max: maxPage}, nil
}

func printSearchResults(cmd *cobra.Command, results []domain.VectorSearchResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for i := range results {
		r := &results[i]
		where := r.SourceFileName
		if page := pageLabel(r.PageNumber, r.PageRange); page != "-" {
			where += ", page " + page
		}

		cmd.Printf("[%d] %s %s\n", i+1,
			styled(out, titleStyle, where),
			styled(out, scoreStyle, fmt.Sprintf("(%.3f)", r.SimilarityScore)))

		meta := string(r.ResultType)
		if r.SectionPath != "" {
			meta += " | " + r.SectionPath
		}
		if r.QualityScore != nil {
			meta += fmt.Sprintf(" | quality %.1f", *r.QualityScore)
		}
		cmd.Printf("    %s\n", styled(out, dimStyle, meta))
		cmd.Printf("    %s\n", snippet(r.OriginalText, snippetLength))
		cmd.Printf("    %s\n", styled(out, dimStyle, "provenance "+r.ProvenanceID))
		cmd.Println()
	}
}

// snippet collapses whitespace and truncates to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
