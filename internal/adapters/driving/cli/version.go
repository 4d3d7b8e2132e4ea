package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("ocrprov version %s\n", version)
		if verbose {
			cmd.Printf("  go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			cmd.Printf("  embeddings: %d dimensions\n", domain.EmbeddingDimension)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
