package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"pdfrag/internal/mcpserver"
)

var mcpPort string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index to AI assistants over the Model Context Protocol",
	Long: `Start an MCP server exposing search_documents, ask_question, library_status
and ingest_directory tools plus the document list and FAQ as resources.

By default the server speaks stdio, for use as a subprocess of an MCP client.
With --port it serves the streamable HTTP transport instead.

Example client configuration:
  {"mcpServers": {"pdfrag": {"command": "pdfrag", "args": ["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			srv, err := mcpserver.NewServer(&mcpserver.Ports{
				Ask:     app.Ask,
				Library: app.Library,
				FAQ:     app.FAQ,
			}, version)
			if err != nil {
				return err
			}
			if mcpPort != "" {
				slog.Info("Starting MCP server", "transport", "http", "addr", ":"+mcpPort)
				return srv.RunHTTP(ctx, ":"+mcpPort)
			}
			slog.Info("Starting MCP server", "transport", "stdio")
			return srv.Run(ctx)
		})
	},
}

func init() {
	mcpCmd.Flags().StringVarP(&mcpPort, "port", "p", "", "serve streamable HTTP on this port instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}
