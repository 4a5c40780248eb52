package handlers

import (
	"net/http"

	"github.com/yuin/goldmark"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/faq"
	"pdfrag/internal/service"
)

// FAQHandler serves the FAQ catalogue and asks its questions.
type FAQHandler struct {
	catalogue  *faq.Catalogue
	askService service.AskService
	markdown   goldmark.Markdown
}

// NewFAQHandler creates a new FAQHandler.
func NewFAQHandler(catalogue *faq.Catalogue, askService service.AskService) *FAQHandler {
	return &FAQHandler{
		catalogue:  catalogue,
		askService: askService,
		markdown:   newMarkdown(),
	}
}

// FAQAskRequest picks a catalogue question by category and 0-based index.
//
// swagger:model FAQAskRequest
type FAQAskRequest struct {
	Category       string `json:"category"`
	Index          int    `json:"index"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// List returns the catalogue.
//
// swagger:route GET /api/faq listFAQ
func (h *FAQHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.catalogue)
}

// Ask asks the selected catalogue question with the default settings.
//
// swagger:route POST /api/faq/ask askFAQ
func (h *FAQHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FAQAskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	question, err := h.catalogue.Question(req.Category, req.Index)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to find question")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "asking faq question", "category", req.Category, "index", req.Index)

	resp, err := h.askService.Ask(ctx, service.AskRequest{
		Question:       question,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}
	writeJSON(ctx, w, http.StatusOK, newAskResponse(ctx, h.markdown, resp))
}
