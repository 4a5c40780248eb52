package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every indexed chunk and document record",
	Long: `Delete every chunk from the vector store and every document record. Files in
the upload directory are kept, so "pdfrag ingest --all" rebuilds the index.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			return errors.New("refusing to clear the index without --yes")
		}
		return withApp(cmd, func(ctx context.Context, app *App) error {
			if err := app.Library.Clear(ctx); err != nil {
				return err
			}
			st := app.Library.Status(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Index cleared: %d source(s), %d chunk(s) remain.\n", st.UniqueSources, st.TotalChunks)
			return nil
		})
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "confirm clearing the index")
	rootCmd.AddCommand(clearCmd)
}
