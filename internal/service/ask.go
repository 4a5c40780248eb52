package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ask_service.go -package=mocks pdfrag/internal/service AskService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdfrag/internal/config"
	"pdfrag/internal/contextutil"
	"pdfrag/internal/rag"
)

// AskRequest is a question with optional per-request overrides.
// Nil pointers and empty strings fall back to the configured defaults.
type AskRequest struct {
	Question       string
	ConversationID string
	TopK           *int
	Temperature    *float64
	LLMModel       string
	EmbedModel     string
}

// AskResponse carries the answer and the conversation it was recorded in.
type AskResponse struct {
	ConversationID string
	Answer         rag.Answer
}

// SearchRequest is a retrieval-only query.
type SearchRequest struct {
	Question   string
	TopK       *int
	EmbedModel string
}

// AskService answers questions and manages conversations.
type AskService interface {
	// Ask answers a question. An empty ConversationID starts a new conversation.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	// AskStream is Ask with partial replies delivered to onChunk.
	AskStream(ctx context.Context, req AskRequest, onChunk func(string) error) (AskResponse, error)
	// Search returns the nearest chunks without calling the chat model.
	Search(ctx context.Context, req SearchRequest) ([]rag.Hit, error)
	// CreateConversation starts an empty conversation and returns its ID.
	CreateConversation(ctx context.Context) string
	// Conversation returns the turns of a conversation.
	Conversation(ctx context.Context, id string) ([]rag.Turn, error)
	// DeleteConversation removes a conversation.
	DeleteConversation(ctx context.Context, id string) error
	// ClearConversation drops every turn but keeps the conversation.
	ClearConversation(ctx context.Context, id string) error
}

type askService struct {
	engine   rag.Engine
	convs    *rag.ConversationStore
	defaults rag.Settings
}

// NewAskService creates an AskService. defaults supplies the settings used
// when a request does not override them.
func NewAskService(engine rag.Engine, convs *rag.ConversationStore, defaults rag.Settings) AskService {
	return &askService{
		engine:   engine,
		convs:    convs,
		defaults: defaults,
	}
}

func (s *askService) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	return s.ask(ctx, req, func(ctx context.Context, conv *rag.Conversation, q string, settings rag.Settings) (rag.Answer, error) {
		return s.engine.Ask(ctx, conv, q, settings)
	})
}

func (s *askService) AskStream(ctx context.Context, req AskRequest, onChunk func(string) error) (AskResponse, error) {
	return s.ask(ctx, req, func(ctx context.Context, conv *rag.Conversation, q string, settings rag.Settings) (rag.Answer, error) {
		return s.engine.AskStream(ctx, conv, q, settings, onChunk)
	})
}

type askFunc func(ctx context.Context, conv *rag.Conversation, q string, settings rag.Settings) (rag.Answer, error)

func (s *askService) ask(ctx context.Context, req AskRequest, fn askFunc) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	q := strings.TrimSpace(req.Question)
	if q == "" {
		logger.WarnContext(ctx, "empty question in ask request")
		return AskResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}

	settings, err := s.resolve(req.TopK, req.Temperature, req.LLMModel, req.EmbedModel)
	if err != nil {
		return AskResponse{}, err
	}

	conv, isNew, err := s.conversation(req.ConversationID)
	if err != nil {
		return AskResponse{}, err
	}

	ans, err := fn(ctx, conv, q, settings)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			return AskResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
		}
		logger.ErrorContext(ctx, "failed to answer question", "error", err)
		return AskResponse{}, External(err)
	}
	// A new conversation is only kept once it holds an answer.
	if isNew {
		s.convs.Add(conv)
	}

	logger.InfoContext(ctx, "ask request processed", "conversation_id", conv.ID(), "hits", len(ans.Hits))
	return AskResponse{ConversationID: conv.ID(), Answer: ans}, nil
}

func (s *askService) Search(ctx context.Context, req SearchRequest) ([]rag.Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	settings, err := s.resolve(req.TopK, nil, "", req.EmbedModel)
	if err != nil {
		return nil, err
	}

	// Blank questions are not an error here; they retrieve nothing.
	hits, err := s.engine.Retrieve(ctx, req.Question, settings)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search", "error", err)
		return nil, External(err)
	}
	return hits, nil
}

func (s *askService) CreateConversation(ctx context.Context) string {
	conv := s.convs.Create()
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "conversation created", "conversation_id", conv.ID())
	return conv.ID()
}

func (s *askService) Conversation(ctx context.Context, id string) ([]rag.Turn, error) {
	conv, ok := s.convs.Get(id)
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return conv.Turns(), nil
}

func (s *askService) DeleteConversation(ctx context.Context, id string) error {
	if !s.convs.Delete(id) {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "conversation deleted", "conversation_id", id)
	return nil
}

func (s *askService) ClearConversation(ctx context.Context, id string) error {
	conv, ok := s.convs.Get(id)
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	conv.Clear()
	return nil
}

func (s *askService) conversation(id string) (*rag.Conversation, bool, error) {
	if id == "" {
		return s.convs.New(), true, nil
	}
	conv, ok := s.convs.Get(id)
	if !ok {
		return nil, false, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return conv, false, nil
}

// resolve applies overrides to the defaults and checks the allowed ranges.
func (s *askService) resolve(topK *int, temperature *float64, llmModel, embedModel string) (rag.Settings, error) {
	settings := s.defaults

	if topK != nil {
		if *topK < config.MinTopK || *topK > config.MaxTopK {
			return rag.Settings{}, &ValidationError{
				Field:   "top_k",
				Message: fmt.Sprintf("must be between %d and %d", config.MinTopK, config.MaxTopK),
			}
		}
		settings.TopK = *topK
	}
	if temperature != nil {
		if *temperature < config.MinTemperature || *temperature > config.MaxTemperature {
			return rag.Settings{}, &ValidationError{
				Field:   "temperature",
				Message: fmt.Sprintf("must be between %.1f and %.1f", config.MinTemperature, config.MaxTemperature),
			}
		}
		settings.Temperature = *temperature
	}
	if m := strings.TrimSpace(llmModel); m != "" {
		settings.LLMModel = m
	}
	if m := strings.TrimSpace(embedModel); m != "" {
		settings.EmbedModel = m
	}
	return settings, nil
}
