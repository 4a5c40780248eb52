package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Show the passages closest to a question",
	Long: `Retrieve the indexed passages closest to the question without calling the
chat model.

Example:
  pdfrag search -k 3 "termination clause"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of passages to retrieve (default TOP_K)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the hits as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := service.SearchRequest{Question: args[0]}
	if cmd.Flags().Changed("top-k") {
		req.TopK = &searchTopK
	}

	return withApp(cmd, func(ctx context.Context, app *App) error {
		hits, err := app.Ask.Search(ctx, req)
		if err != nil {
			return err
		}
		if searchJSON {
			return printJSON(cmd, rag.Citations(hits, rag.MaxCitationRunes))
		}

		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(out, "No matching passages.")
			return nil
		}
		for i, h := range hits {
			fmt.Fprintf(out, "[%d] %s (distance %.4f)\n", i+1, h.Label(), h.Distance)
			fmt.Fprintf(out, "    %s\n", preview(h.Text, 200))
		}
		return nil
	})
}

// preview flattens whitespace and truncates s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
