package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

// AskHandler handles HTTP requests for grounded questions.
type AskHandler struct {
	askService service.AskService
	markdown   goldmark.Markdown
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{
		askService: askService,
		markdown:   newMarkdown(),
	}
}

// AskRequest represents the HTTP request payload for a question.
// Omitted settings fall back to the server configuration.
//
// swagger:model AskRequest
type AskRequest struct {
	Question       string   `json:"question"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TopK           *int     `json:"top_k,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	LLMModel       string   `json:"llm_model,omitempty"`
	EmbedModel     string   `json:"embed_model,omitempty"`
}

// AskResponse represents the HTTP response payload for a question.
//
// swagger:model AskResponse
type AskResponse struct {
	// Conversation the turn was recorded in
	ConversationID string `json:"conversation_id"`

	// The trimmed question
	Question string `json:"question"`

	// The model answer, or a placeholder when the model failed or returned nothing
	Answer string `json:"answer"`

	// The answer rendered from Markdown to HTML
	AnswerHTML string `json:"answer_html"`

	// Set when the chat model call failed
	ModelError string `json:"model_error,omitempty"`

	// Retrieved chunks numbered as cited in the answer
	Hits []rag.Citation `json:"hits"`
}

// streamEvent is one Server-Sent Event payload.
type streamEvent struct {
	Type    string       `json:"type"`
	Content string       `json:"content,omitempty"`
	Error   string       `json:"error,omitempty"`
	Result  *AskResponse `json:"result,omitempty"`
}

// ServeHTTP handles HTTP requests for questions.
//
// swagger:route POST /api/ask askQuestion
//
// # Ask a question about the indexed PDFs
//
// Retrieves the nearest chunks, asks the chat model with a grounded prompt and
// records the turn in the conversation. Use `stream=true` for Server-Sent Events.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// - text/event-stream
// responses:
//
//	'200':
//	  description: Answer with citations
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Empty question or setting out of range
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'404':
//	  description: Unknown conversation
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding service or vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svcReq := service.AskRequest{
		Question:       req.Question,
		ConversationID: req.ConversationID,
		TopK:           req.TopK,
		Temperature:    req.Temperature,
		LLMModel:       req.LLMModel,
		EmbedModel:     req.EmbedModel,
	}

	if r.URL.Query().Get("stream") == "true" {
		h.handleStreaming(ctx, w, svcReq)
		return
	}

	start := time.Now()
	resp, err := h.askService.Ask(ctx, svcReq)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	logger.InfoContext(ctx, "ask request completed",
		"conversation_id", resp.ConversationID,
		"hits", len(resp.Answer.Hits),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(ctx, w, http.StatusOK, newAskResponse(ctx, h.markdown, resp))
}

// handleStreaming answers using Server-Sent Events. Errors raised before the
// first chunk are reported as a normal JSON error response.
func (h *AskHandler) handleStreaming(ctx context.Context, w http.ResponseWriter, req service.AskRequest) {
	logger := contextutil.LoggerFromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	sse := &sseWriter{w: w, flusher: flusher}

	resp, err := h.askService.AskStream(ctx, req, func(chunk string) error {
		return sse.send(streamEvent{Type: "chunk", Content: chunk})
	})
	if err != nil {
		if !sse.started {
			handleServiceError(ctx, w, err, "Failed to answer question")
			return
		}
		logger.ErrorContext(ctx, "error streaming answer", "error", err)
		_ = sse.send(streamEvent{Type: "error", Error: err.Error()})
		return
	}

	out := newAskResponse(ctx, h.markdown, resp)
	if err := sse.send(streamEvent{Type: "done", Result: &out}); err != nil {
		logger.WarnContext(ctx, "failed to send final event", "error", err)
		return
	}
	sse.close()
}

func newAskResponse(ctx context.Context, md goldmark.Markdown, resp service.AskResponse) AskResponse {
	return AskResponse{
		ConversationID: resp.ConversationID,
		Question:       resp.Answer.Question,
		Answer:         resp.Answer.Text,
		AnswerHTML:     strings.TrimSpace(renderMarkdown(ctx, md, resp.Answer.Text)),
		ModelError:     resp.Answer.ModelError,
		Hits:           rag.Citations(resp.Answer.Hits, rag.MaxCitationRunes),
	}
}
