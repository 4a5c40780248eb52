package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

// SearchInput is the input schema for search_documents.
type SearchInput struct {
	Question string `json:"question" jsonschema:"the text to find similar passages for"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of passages to return (1-20, default from server config)"`
}

// SearchOutput is the output schema for search_documents.
type SearchOutput struct {
	Hits  []rag.Citation `json:"hits"`
	Count int            `json:"count"`
}

// AskInput is the input schema for ask_question.
type AskInput struct {
	Question       string   `json:"question" jsonschema:"the question to answer from the indexed PDFs"`
	ConversationID string   `json:"conversation_id,omitempty" jsonschema:"conversation to record the turn in; empty starts a new one"`
	TopK           int      `json:"top_k,omitempty" jsonschema:"number of passages to retrieve (1-20)"`
	Temperature    *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature (0-1)"`
}

// AskOutput is the output schema for ask_question.
type AskOutput struct {
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer"`
	ModelError     string         `json:"model_error,omitempty"`
	Hits           []rag.Citation `json:"hits"`
}

// StatusInput is the empty input schema for library_status.
type StatusInput struct{}

// IngestInput is the empty input schema for ingest_directory.
type IngestInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Find the passages of the indexed PDFs closest to a question, without asking the model",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question using only the indexed PDFs, with numbered citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "library_status",
		Description: "Count the indexed documents and chunks",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_directory",
		Description: "Ingest every PDF under the server's upload directory",
	}, s.handleIngest)
}

// optionalInt maps the zero value to "use the configured default".
func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

// toolError turns validation failures into tool errors the agent can read.
// Other errors are protocol errors.
func toolError(err error) (*mcp.CallToolResult, bool) {
	if service.IsCallerError(err) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, true
	}
	return nil, false
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	hits, err := s.ports.Ask.Search(ctx, service.SearchRequest{
		Question: input.Question,
		TopK:     optionalInt(input.TopK),
	})
	if err != nil {
		if res, ok := toolError(err); ok {
			return res, SearchOutput{}, nil
		}
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Hits:  rag.Citations(hits, rag.MaxCitationRunes),
		Count: len(hits),
	}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "mcp ask", "conversation_id", input.ConversationID)

	resp, err := s.ports.Ask.Ask(ctx, service.AskRequest{
		Question:       input.Question,
		ConversationID: input.ConversationID,
		TopK:           optionalInt(input.TopK),
		Temperature:    input.Temperature,
	})
	if err != nil {
		if res, ok := toolError(err); ok {
			return res, AskOutput{}, nil
		}
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		ConversationID: resp.ConversationID,
		Answer:         resp.Answer.Text,
		ModelError:     resp.Answer.ModelError,
		Hits:           rag.Citations(resp.Answer.Hits, rag.MaxCitationRunes),
	}, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, chunkstore.Status, error) {
	return nil, s.ports.Library.Status(ctx), nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IngestInput,
) (*mcp.CallToolResult, indexer.BatchResult, error) {
	res, err := s.ports.Library.Reindex(ctx)
	if err != nil {
		return nil, indexer.BatchResult{}, err
	}
	return nil, res, nil
}
