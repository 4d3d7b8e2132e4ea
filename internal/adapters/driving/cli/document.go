package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, inspect, re-chunk, delete or annotate ingested documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print the OCR text of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "List the stored chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long: `Removes a document with its OCR results, chunks, images, extractions,
embeddings and its whole provenance chain.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDelete,
}

var documentRechunkCmd = &cobra.Command{
	Use:   "rechunk [doc-id]",
	Short: "Re-chunk a document",
	Long: `Replaces a document's chunks and embeddings. Without chunking flags the
configuration recorded on the current chunks is replayed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentRechunk,
}

var documentOpenCmd = &cobra.Command{
	Use:   "open [doc-id]",
	Short: "Open the source file in the default application",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentOpen,
}

var documentAttachImageCmd = &cobra.Command{
	Use:   "attach-image [doc-id] [description-file]",
	Short: "Attach a VLM image description",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentAttachImage,
}

var documentAttachExtractionCmd = &cobra.Command{
	Use:   "attach-extraction [doc-id] [content-file]",
	Short: "Attach structured extracted content",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentAttachExtraction,
}

var (
	documentJSON   bool
	rechunkOptions chunkFlags
	attachPage     int
	attachTool     string
	attachVersion  string
)

func init() {
	for _, c := range []*cobra.Command{documentListCmd, documentShowCmd, documentChunksCmd, documentRechunkCmd} {
		c.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	}
	rechunkOptions.register(documentRechunkCmd)
	for _, c := range []*cobra.Command{documentAttachImageCmd, documentAttachExtractionCmd} {
		c.Flags().IntVar(&attachPage, "page", 0, "page the content belongs to")
		c.Flags().StringVar(&attachTool, "processor", "", "tool that produced the content (required)")
		c.Flags().StringVar(&attachVersion, "processor-version", "", "version of that tool")
		_ = c.MarkFlagRequired("processor")
	}

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentRechunkCmd)
	documentCmd.AddCommand(documentOpenCmd)
	documentCmd.AddCommand(documentAttachImageCmd)
	documentCmd.AddCommand(documentAttachExtractionCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if documentJSON {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	out := cmd.OutOrStdout()
	for i := range docs {
		cmd.Printf("  %s  %s\n", docs[i].ID, styled(out, titleStyle, docs[i].Title))
		cmd.Printf("    %s\n", styled(out, dimStyle, fmt.Sprintf("%s | %d pages | %s", docs[i].FilePath, docs[i].PageCount, docs[i].Status)))
	}
	cmd.Println()
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	details, err := documentService.GetDetails(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document details: %w", err)
	}
	if documentJSON {
		return printJSON(cmd, details)
	}

	cmd.Printf("Document: %s\n\n", styled(cmd.OutOrStdout(), titleStyle, details.ID))
	cmd.Printf("  Title:       %s\n", details.Title)
	cmd.Printf("  File:        %s\n", details.FilePath)
	cmd.Printf("  Hash:        %s\n", details.FileHash)
	cmd.Printf("  Status:      %s\n", details.Status)
	cmd.Printf("  Pages:       %d\n", details.PageCount)
	cmd.Printf("  Chunks:      %d\n", details.ChunkCount)
	cmd.Printf("  Embeddings:  %d\n", details.Embeddings)
	if details.QualityScore != nil {
		cmd.Printf("  Quality:     %.1f\n", *details.QualityScore)
	}
	cmd.Printf("  Provenance:  %s\n", details.ProvenanceID)
	cmd.Printf("  Created:     %s\n", details.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:     %s\n", details.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	content, err := documentService.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	chunks, err := documentService.GetChunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	if documentJSON {
		views := make([]storedChunkView, len(chunks))
		for i := range chunks {
			views[i] = storedChunkView{
				ID:           chunks[i].ID,
				ProvenanceID: chunks[i].ProvenanceID,
				TextHash:     chunks[i].TextHash,
				chunkView:    newChunkView(&chunks[i]),
			}
		}
		return printJSON(cmd, views)
	}
	printChunkTable(cmd, chunks)
	return nil
}

// storedChunkView adds persistence identity to a chunk preview.
type storedChunkView struct {
	ID           string `json:"id"`
	ProvenanceID string `json:"provenance_id"`
	TextHash     string `json:"text_hash"`
	chunkView
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}

func runDocumentRechunk(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	override, err := rechunkOptions.override(cmd)
	if err != nil {
		return err
	}

	result, err := ingestService.Rechunk(cmd.Context(), args[0], override)
	if err != nil {
		return fmt.Errorf("failed to rechunk document: %w", err)
	}
	if documentJSON {
		return printJSON(cmd, result)
	}

	cmd.Printf("Document %s re-chunked: %d chunks, %d embeddings.\n", args[0], len(result.Chunks), result.Embeddings)
	return nil
}

func runDocumentOpen(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Open(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	cmd.Printf("Opened document %s in default application.\n", args[0])
	return nil
}

func runDocumentAttachImage(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	req, err := attachRequest(cmd, args)
	if err != nil {
		return err
	}

	result, err := ingestService.AttachImage(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to attach image: %w", err)
	}
	printAttachResult(cmd, "Image", result)
	return nil
}

func runDocumentAttachExtraction(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	req, err := attachRequest(cmd, args)
	if err != nil {
		return err
	}

	result, err := ingestService.AttachExtraction(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to attach extraction: %w", err)
	}
	printAttachResult(cmd, "Extraction", result)
	return nil
}

func attachRequest(cmd *cobra.Command, args []string) (driving.AttachRequest, error) {
	content, err := os.ReadFile(args[1])
	if err != nil {
		return driving.AttachRequest{}, fmt.Errorf("failed to read %s: %w", args[1], err)
	}
	req := driving.AttachRequest{
		DocumentID:       args[0],
		Text:             strings.TrimSpace(string(content)),
		Processor:        attachTool,
		ProcessorVersion: attachVersion,
	}
	if cmd.Flags().Changed("page") {
		page := attachPage
		req.PageNumber = &page
	}
	return req, nil
}

func printAttachResult(cmd *cobra.Command, what string, result *driving.AttachResult) {
	cmd.Printf("%s %s stored.\n", what, result.ID)
	if result.EmbeddingID != "" {
		cmd.Printf("  Embedding:  %s\n", result.EmbeddingID)
	}
	cmd.Printf("  Provenance: %s\n", result.ProvenanceID)
}
