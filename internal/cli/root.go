// Package cli implements the pdfrag command line: the HTTP server, ingestion,
// questions from the terminal, the folder watcher and the MCP server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pdfrag",
	Short: "Ask questions about a folder of PDFs",
	Long: `pdfrag extracts the text of PDF files, indexes it in a vector store and
answers questions grounded in the indexed passages, citing their sources.

Configuration is read from the environment and from a .env file in the
current directory or one of its parents.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command and the MCP server.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// withApp builds the application, runs fn and releases it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
