package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/indexer"
)

var statusJSON bool

type statusOutput struct {
	chunkstore.Status
	Stats *indexer.CoverageStats `json:"stats"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the index holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			st := app.Library.Status(ctx)
			stats, err := app.Library.Stats(ctx)
			if err != nil {
				return err
			}
			if statusJSON {
				return printJSON(cmd, statusOutput{Status: st, Stats: stats})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sources:         %d\n", st.UniqueSources)
			fmt.Fprintf(out, "Chunks:          %d\n", st.TotalChunks)
			fmt.Fprintf(out, "Documents:       %d (%d without chunks)\n", stats.Documents, stats.DocumentsWith0Chunks)
			fmt.Fprintf(out, "Chunk length:    min %d, max %d, mean %.1f, p95 %d\n",
				stats.ChunkLength.Min, stats.ChunkLength.Max, stats.ChunkLength.Mean, stats.ChunkLength.P95)
			fmt.Fprintf(out, "Chunker:         %s\n", stats.ChunkerVersion)
			fmt.Fprintf(out, "Index version:   %s\n", stats.IndexVersion)
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
