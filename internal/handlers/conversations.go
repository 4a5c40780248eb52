package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	askService service.AskService
	markdown   goldmark.Markdown
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(askService service.AskService) *ConversationHandler {
	return &ConversationHandler{
		askService: askService,
		markdown:   newMarkdown(),
	}
}

// ConversationResponse is a conversation and its turns, oldest first.
//
// swagger:model ConversationResponse
type ConversationResponse struct {
	ConversationID string         `json:"conversation_id"`
	Turns          []TurnResponse `json:"turns"`
}

// TurnResponse is one recorded question and answer.
type TurnResponse struct {
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	AnswerHTML string         `json:"answer_html"`
	Hits       []rag.Citation `json:"hits"`
	At         time.Time      `json:"at"`
}

// Create starts a conversation.
//
// swagger:route POST /api/conversations createConversation
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := h.askService.CreateConversation(ctx)
	writeJSON(ctx, w, http.StatusCreated, ConversationResponse{ConversationID: id, Turns: []TurnResponse{}})
}

// Get returns the turns of a conversation.
//
// swagger:route GET /api/conversations/{id} getConversation
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	turns, err := h.askService.Conversation(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load conversation")
		return
	}

	resp := ConversationResponse{ConversationID: id, Turns: make([]TurnResponse, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, TurnResponse{
			Question:   t.Question,
			Answer:     t.Answer,
			AnswerHTML: renderMarkdown(ctx, h.markdown, t.Answer),
			Hits:       rag.Citations(t.Hits, rag.MaxCitationRunes),
			At:         t.At,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Delete removes a conversation.
//
// swagger:route DELETE /api/conversations/{id} deleteConversation
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.askService.DeleteConversation(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearTurns drops the history of a conversation.
//
// swagger:route DELETE /api/conversations/{id}/turns clearConversation
func (h *ConversationHandler) ClearTurns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.askService.ClearConversation(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err, "Failed to clear conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
