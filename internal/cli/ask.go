package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

var (
	askTopK        int
	askTemperature float64
	askModel       string
	askJSON        bool
)

// askOutput is the --json rendering of an answer.
type askOutput struct {
	ConversationID string         `json:"conversation_id"`
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	ModelError     string         `json:"model_error,omitempty"`
	Hits           []rag.Citation `json:"hits"`
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed PDFs",
	Long: `Retrieve the passages closest to the question and stream an answer grounded
in them, followed by the cited sources.

Examples:
  pdfrag ask "What is the refund policy?"
  pdfrag ask --top-k 8 --temperature 0 "Who signs the contract?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default TOP_K)")
	askCmd.Flags().Float64VarP(&askTemperature, "temperature", "t", 0, "sampling temperature (default TEMPERATURE)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "chat model (default LLM_MODEL_NAME)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON instead of streaming")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := service.AskRequest{
		Question: args[0],
		LLMModel: askModel,
	}
	if cmd.Flags().Changed("top-k") {
		req.TopK = &askTopK
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &askTemperature
	}

	return withApp(cmd, func(ctx context.Context, app *App) error {
		out := cmd.OutOrStdout()

		if askJSON {
			resp, err := app.Ask.Ask(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, askOutput{
				ConversationID: resp.ConversationID,
				Question:       resp.Answer.Question,
				Answer:         resp.Answer.Text,
				ModelError:     resp.Answer.ModelError,
				Hits:           rag.Citations(resp.Answer.Hits, rag.MaxCitationRunes),
			})
		}

		streamed := false
		resp, err := app.Ask.AskStream(ctx, req, func(chunk string) error {
			streamed = true
			_, err := io.WriteString(out, chunk)
			return err
		})
		if err != nil {
			return err
		}
		// Placeholders are returned without streaming.
		switch {
		case !streamed:
			fmt.Fprint(out, resp.Answer.Text)
		case resp.Answer.ModelError != "":
			fmt.Fprint(out, "\n"+resp.Answer.Text)
		}
		fmt.Fprintln(out)
		printSources(out, resp.Answer.Hits)
		return nil
	})
}

func printSources(w io.Writer, hits []rag.Hit) {
	if len(hits) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, h := range hits {
		fmt.Fprintf(w, "  [%d] %s (distance %.4f)\n", i+1, h.Label(), h.Distance)
	}
}
