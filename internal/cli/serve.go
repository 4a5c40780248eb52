package cli

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"pdfrag/internal/http"
	"pdfrag/internal/watcher"
)

var (
	serveReindex bool
	serveWatch   bool
	servePort    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and web page",
	Long: `Start the HTTP server: the JSON API under /api, Prometheus metrics under
/metrics and a small web page at /.

Examples:
  # Serve on API_PORT (default 9000)
  pdfrag serve

  # Re-ingest every PDF in UPLOAD_DIR in the background, then keep watching it
  pdfrag serve --reindex --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveReindex, "reindex", false, "ingest every PDF under the upload directory at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "ingest PDFs added to the upload directory while serving")
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default API_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		router := http.NewRouter(&http.Deps{
			AskService:     app.Ask,
			LibraryService: app.Library,
			FAQ:            app.FAQ,
			Metrics:        app.Metrics,
			HealthChecks:   app.Checks,
		})

		var tasks []func(context.Context)
		if serveReindex {
			tasks = append(tasks, func(ctx context.Context) {
				slog.Info("Starting background indexing of upload directory")
				res, err := app.Library.Reindex(ctx)
				switch {
				case errors.Is(err, context.Canceled):
					slog.Info("Indexing cancelled", "scanned", res.Scanned, "added", res.Added)
				case err != nil:
					slog.Error("Indexing completed with errors", "error", err)
				default:
					slog.Info("Indexing completed", "scanned", res.Scanned, "added", res.Added, "skipped", res.Skipped)
				}
			})
		}

		if serveWatch {
			w, err := watcher.New(app.Root, app.Indexer, app.Options)
			if err != nil {
				return err
			}
			tasks = append(tasks, func(ctx context.Context) {
				if err := w.Run(ctx); err != nil {
					slog.Error("Watcher stopped", "error", err)
				}
			})
		}

		// Background work must finish before withApp closes the stores.
		stop := background(ctx, tasks...)
		defer stop()

		port := servePort
		if port == "" {
			port = app.Config.APIPort
		}
		return listenAndServe(ctx, ":"+port, router)
	})
}

// background runs each task on its own goroutine. The returned stop cancels
// the tasks' context and waits for all of them to return.
func background(ctx context.Context, tasks ...func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Go(func() { task(ctx) })
	}
	return func() {
		cancel()
		wg.Wait()
	}
}

// listenAndServe serves handler until ctx is cancelled, then shuts down gracefully.
func listenAndServe(ctx context.Context, addr string, handler nethttp.Handler) error {
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
