package handlers

import (
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

// SearchHandler handles retrieval-only queries.
type SearchHandler struct {
	askService service.AskService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(askService service.AskService) *SearchHandler {
	return &SearchHandler{askService: askService}
}

// SearchRequest represents the HTTP request payload for a search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	Question   string `json:"question"`
	TopK       *int   `json:"top_k,omitempty"`
	EmbedModel string `json:"embed_model,omitempty"`
}

// SearchResponse lists the nearest chunks, closest first.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Question string         `json:"question"`
	Hits     []rag.Citation `json:"hits"`
}

// ServeHTTP handles search requests.
//
// swagger:route POST /api/search searchChunks
//
// # Retrieve the chunks nearest to a question without asking the model
//
// responses:
//
//	'200':
//	  description: Hits ordered by ascending distance
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'400':
//	  description: Invalid top_k
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hits, err := h.askService.Search(ctx, service.SearchRequest{
		Question:   req.Question,
		TopK:       req.TopK,
		EmbedModel: req.EmbedModel,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to search")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse{
		Question: req.Question,
		Hits:     rag.Citations(hits, rag.MaxCitationRunes),
	})
}
