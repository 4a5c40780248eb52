package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"pdfrag/internal/indexer"
	"pdfrag/internal/library"
)

var (
	ingestAll  bool
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf...]",
	Short: "Ingest PDF files into the index",
	Long: `Extract, chunk and embed PDF files under UPLOAD_DIR. Re-ingesting a file
replaces everything previously stored for it.

Examples:
  # Ingest two files
  pdfrag ingest data/uploads/handbook.pdf data/uploads/hr/rules.pdf

  # Ingest every PDF under UPLOAD_DIR
  pdfrag ingest --all`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "ingest every PDF under the upload directory")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestAll == (len(args) > 0) {
		return errors.New("pass PDF paths or --all, not both")
	}

	return withApp(cmd, func(ctx context.Context, app *App) error {
		var res indexer.BatchResult
		if ingestAll {
			var err error
			if res, err = app.Library.Reindex(ctx); err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
		} else {
			res = ingestPaths(ctx, app, args)
		}

		if ingestJSON {
			return printJSON(cmd, res)
		}
		printBatch(cmd.OutOrStdout(), res)
		return nil
	})
}

// ingestPaths ingests each path in order. Non-PDF paths and files outside the
// upload directory are skipped with a note.
func ingestPaths(ctx context.Context, app *App, paths []string) indexer.BatchResult {
	res := indexer.BatchResult{Notes: []string{}, Results: []indexer.Result{}}
	for _, p := range paths {
		if !library.IsPDF(p) {
			res.Notes = append(res.Notes, fmt.Sprintf("%s: not a PDF", filepath.Base(p)))
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !app.Root.Contains(abs) {
			res.Notes = append(res.Notes, fmt.Sprintf("%s: outside the upload directory %s", filepath.Base(p), app.Root.Path()))
			continue
		}
		r := app.Indexer.Ingest(ctx, abs, app.Options)
		res.Scanned++
		res.Pages += r.PagesScanned
		res.Added += r.ChunksAdded
		res.Results = append(res.Results, r)
		if r.Note != "" {
			res.Skipped++
			res.Notes = append(res.Notes, r.Note)
		}
	}
	return res
}

func printBatch(w io.Writer, res indexer.BatchResult) {
	fmt.Fprintf(w, "Scanned %d file(s), %d page(s): added %d chunk(s), skipped %d file(s).\n",
		res.Scanned, res.Pages, res.Added, res.Skipped)
	for _, n := range res.Notes {
		fmt.Fprintf(w, "  - %s\n", n)
	}
}
