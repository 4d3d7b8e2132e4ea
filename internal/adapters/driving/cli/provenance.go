package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

var provenanceCmd = &cobra.Command{
	Use:   "provenance",
	Short: "Inspect provenance records",
	Long: `Every stored artifact points at a provenance record. Records form a
chain from the source document through OCR, chunking and embedding.`,
}

var provenanceShowCmd = &cobra.Command{
	Use:   "show [record-id]",
	Short: "Show one provenance record",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvenanceShow,
}

var provenanceChainCmd = &cobra.Command{
	Use:   "chain [record-id]",
	Short: "Show the chain from the source document to a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvenanceChain,
}

var provenanceChildrenCmd = &cobra.Command{
	Use:   "children [record-id]",
	Short: "List records derived directly from a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvenanceChildren,
}

var provenanceVerifyCmd = &cobra.Command{
	Use:   "verify [record-id]",
	Short: "Verify a record's chain, and optionally its content",
	Long: `Checks depth, root and input hash links along the chain ending at the
record. With --file the file content is hashed and compared with the
record's content hash.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvenanceVerify,
}

var (
	provenanceJSON bool
	verifyFile     string
)

func init() {
	for _, c := range []*cobra.Command{provenanceShowCmd, provenanceChainCmd, provenanceChildrenCmd, provenanceVerifyCmd} {
		c.Flags().BoolVar(&provenanceJSON, "json", false, "output as JSON")
		provenanceCmd.AddCommand(c)
	}
	provenanceVerifyCmd.Flags().StringVarP(&verifyFile, "file", "f", "", "file whose content should match the record")
	rootCmd.AddCommand(provenanceCmd)
}

func runProvenanceShow(cmd *cobra.Command, args []string) error {
	if provenanceService == nil {
		return errors.New("provenance service not configured")
	}
	rec, err := provenanceService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if provenanceJSON {
		return printJSON(cmd, rec)
	}

	cmd.Printf("Record: %s\n", styled(cmd.OutOrStdout(), titleStyle, rec.ID))
	cmd.Printf("  Kind:       %s\n", rec.Kind)
	cmd.Printf("  Depth:      %d\n", rec.ChainDepth)
	cmd.Printf("  Path:       %s\n", kindPath(rec.ChainPath))
	if rec.ParentID != nil {
		cmd.Printf("  Parent:     %s\n", *rec.ParentID)
	}
	cmd.Printf("  Root:       %s\n", rec.RootDocumentID)
	cmd.Printf("  Hash:       %s\n", rec.ContentHash)
	if rec.InputHash != "" {
		cmd.Printf("  Input hash: %s\n", rec.InputHash)
	}
	cmd.Printf("  Processor:  %s %s\n", rec.Processor, rec.ProcessorVersion)
	if rec.SourcePath != "" {
		cmd.Printf("  Source:     %s\n", rec.SourcePath)
	}
	for _, k := range sortedParamKeys(rec.ProcessingParams) {
		cmd.Printf("  %s: %v\n", k, rec.ProcessingParams[k])
	}
	cmd.Printf("  Created:    %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runProvenanceChain(cmd *cobra.Command, args []string) error {
	if provenanceService == nil {
		return errors.New("provenance service not configured")
	}
	chain, err := provenanceService.Chain(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chain: %w", err)
	}
	if provenanceJSON {
		return printJSON(cmd, chain)
	}
	printRecords(cmd, chain, true)
	return nil
}

func runProvenanceChildren(cmd *cobra.Command, args []string) error {
	if provenanceService == nil {
		return errors.New("provenance service not configured")
	}
	children, err := provenanceService.Children(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get children: %w", err)
	}
	if provenanceJSON {
		return printJSON(cmd, children)
	}
	if len(children) == 0 {
		cmd.Printf("No records derived from %s\n", args[0])
		return nil
	}
	printRecords(cmd, children, false)
	return nil
}

// verifyOutput is the JSON shape of provenance verify.
type verifyOutput struct {
	Chain   any  `json:"chain"`
	Content any  `json:"content,omitempty"`
	Valid   bool `json:"valid"`
}

func runProvenanceVerify(cmd *cobra.Command, args []string) error {
	if provenanceService == nil {
		return errors.New("provenance service not configured")
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	report, err := provenanceService.VerifyChain(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to verify chain: %w", err)
	}
	result := verifyOutput{Chain: report, Valid: report.Valid}

	if verifyFile != "" {
		content, err := os.ReadFile(verifyFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", verifyFile, err)
		}
		vr, err := provenanceService.Verify(ctx, args[0], content)
		if err != nil {
			return fmt.Errorf("failed to verify content: %w", err)
		}
		result.Content = vr
		result.Valid = result.Valid && vr.Valid

		if !provenanceJSON {
			if vr.Valid {
				cmd.Printf("Content: %s\n", styled(out, scoreStyle, "match"))
			} else {
				cmd.Printf("Content: %s\n", styled(out, errorStyle, "MISMATCH"))
				cmd.Printf("  expected %s\n  actual   %s\n", vr.ExpectedHash, vr.ActualHash)
			}
		}
	}

	if provenanceJSON {
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	} else {
		if report.Valid {
			cmd.Printf("Chain:   %s (depth %d)\n", styled(out, scoreStyle, "valid"), report.Depth)
		} else {
			cmd.Printf("Chain:   %s\n", styled(out, errorStyle, "INVALID"))
			for _, p := range report.Problems {
				cmd.Printf("  - %s\n", p)
			}
		}
	}

	if !result.Valid {
		return fmt.Errorf("%w: record %s failed verification", domain.ErrIntegrity, args[0])
	}
	return nil
}

func printRecords(cmd *cobra.Command, records []*domain.ProvenanceRecord, indent bool) {
	out := cmd.OutOrStdout()
	for i, rec := range records {
		prefix := ""
		if indent && i > 0 {
			prefix = strings.Repeat("  ", rec.ChainDepth-1) + "└─ "
		}
		cmd.Printf("%s%s %s\n", prefix, styled(out, titleStyle, string(rec.Kind)), rec.ID)
		pad := strings.Repeat(" ", len([]rune(prefix)))
		cmd.Printf("%s%s\n", pad, styled(out, dimStyle, fmt.Sprintf("%s %s  %s", rec.Processor, rec.ProcessorVersion, shortHash(rec.ContentHash))))
	}
}

func kindPath(kinds []domain.ProvenanceKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, " > ")
}

// shortHash keeps the algorithm prefix and 12 hex digits.
func shortHash(h string) string {
	algo, hex, ok := strings.Cut(h, ":")
	if !ok || len(hex) <= 12 {
		return h
	}
	return algo + ":" + hex[:12]
}

func sortedParamKeys(p domain.ProcessingParams) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
