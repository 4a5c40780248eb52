package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pdfrag/internal/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest PDFs as they change in the upload directory",
	Long: `Watch UPLOAD_DIR recursively. New or modified PDFs are re-ingested once they
have been quiet for the debounce period, and deleted PDFs are removed from the
index. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			out := cmd.OutOrStdout()
			w, err := watcher.New(app.Root, app.Indexer, app.Options,
				watcher.WithDebounce(watchDebounce),
				watcher.WithEventHandler(func(ev watcher.Event) { printEvent(out, ev) }),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s\n", app.Root.Path())
			return w.Run(ctx)
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is processed")
	rootCmd.AddCommand(watchCmd)
}

func printEvent(w io.Writer, ev watcher.Event) {
	switch {
	case ev.Removed && ev.Err != nil:
		fmt.Fprintf(w, "removed %s: %v\n", ev.Source, ev.Err)
	case ev.Removed:
		fmt.Fprintf(w, "removed %s\n", ev.Source)
	case ev.Result.Note != "":
		fmt.Fprintf(w, "skipped %s\n", ev.Result.Note)
	default:
		fmt.Fprintf(w, "ingested %s: %d page(s), %d chunk(s)\n", ev.Source, ev.Result.PagesScanned, ev.Result.ChunksAdded)
	}
}
