package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/core/services"
	"github.com/custodia-labs/ocrprov/internal/normalisers"
	"github.com/custodia-labs/ocrprov/internal/watcher"
)

var (
	ingestQuality float64
	ingestNoEmbed bool
	ingestDryRun  bool
	ingestWatch   string
	ingestSource  string
	ingestJSON    bool
	ingestOptions chunkFlags
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest OCR output files",
	Long: `Parses OCR markdown files, chunks them, records provenance and stores
the document, OCR result, chunks and embeddings.

Files already ingested (same content hash) are skipped. With --watch the
command keeps running and ingests files as they appear in a directory.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && ingestWatch == "" {
			return errors.New("requires at least 1 file or --watch")
		}
		if ingestSource != "" && len(args) != 1 {
			return errors.New("--source requires exactly 1 file")
		}
		return nil
	},
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Float64Var(&ingestQuality, "quality", 0, "OCR quality score (0-5)")
	ingestCmd.Flags().BoolVar(&ingestNoEmbed, "no-embed", false, "store chunks without embeddings")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "run the pipeline without writing to the database")
	ingestCmd.Flags().StringVar(&ingestWatch, "watch", "", "watch a directory and ingest new files")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "original document the OCR file was produced from")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output results as JSON")
	ingestOptions.register(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

// ingestRun holds the flag values resolved once per command run.
type ingestRun struct {
	svc      driving.IngestService
	quality  *float64
	chunking *domain.ChunkingConfig
	noEmbed  bool
}

func runIngest(cmd *cobra.Command, args []string) error {
	run := ingestRun{svc: ingestService, noEmbed: ingestNoEmbed}
	if ingestDryRun {
		run.svc = dryRunIngestService
	}
	if run.svc == nil {
		return errors.New("ingest service not configured")
	}

	if cmd.Flags().Changed("quality") {
		if ingestQuality < 0 || ingestQuality > 5 {
			return fmt.Errorf("%w: --quality must be between 0 and 5", domain.ErrInvalidInput)
		}
		q := ingestQuality
		run.quality = &q
	}
	chunking, err := ingestOptions.override(cmd)
	if err != nil {
		return err
	}
	run.chunking = chunking

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []*driving.IngestResult
	failed := 0
	for _, path := range args {
		result, err := run.ingest(ctx, path, ingestSource)
		if err != nil {
			failed++
			cmd.PrintErrln(styled(cmd.ErrOrStderr(), errorStyle, fmt.Sprintf("Failed %s: %v", path, err)))
			continue
		}
		results = append(results, result)
		if !ingestJSON {
			printIngestResult(cmd, path, result)
		}
	}

	if ingestJSON && len(args) > 0 {
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	}

	if ingestWatch != "" {
		err := watcher.New(ingestWatch).Run(ctx, func(ctx context.Context, path string) {
			result, err := run.ingest(ctx, path, "")
			if err != nil {
				cmd.PrintErrln(styled(cmd.ErrOrStderr(), errorStyle, fmt.Sprintf("Failed %s: %v", path, err)))
				return
			}
			printIngestResult(cmd, path, result)
		})
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func (r ingestRun) ingest(ctx context.Context, path, source string) (*driving.IngestResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	req := driving.IngestRequest{
		FilePath:      absPath(path),
		Content:       content,
		MIMEType:      normalisers.MIMETypeForPath(path),
		FileSize:      int64(len(content)),
		QualityScore:  r.quality,
		Chunking:      r.chunking,
		SkipEmbedding: r.noEmbed,
	}
	if source != "" {
		original, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		req.FilePath = absPath(source)
		req.FileHash = services.HashBytes(original)
		req.FileSize = int64(len(original))
	}

	return r.svc.Ingest(ctx, req)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func printIngestResult(cmd *cobra.Command, path string, result *driving.IngestResult) {
	out := cmd.OutOrStdout()
	if result.Duplicate {
		cmd.Println(styled(out, warnStyle, fmt.Sprintf("Skipped %s: already ingested as %s", path, result.Document.ID)))
		return
	}
	cmd.Printf("%s %s\n", styled(out, scoreStyle, "Ingested"), path)
	cmd.Printf("  Document:   %s\n", result.Document.ID)
	cmd.Printf("  Title:      %s\n", result.Document.Title)
	cmd.Printf("  Pages:      %d\n", result.Document.PageCount)
	cmd.Printf("  Chunks:     %d\n", len(result.Chunks))
	cmd.Printf("  Embeddings: %d\n", result.Embeddings)
	cmd.Printf("  Provenance: %s\n", result.Document.ProvenanceID)
}
