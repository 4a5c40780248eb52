package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/llm"
	"pdfrag/internal/metrics"
)

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("question is empty")

// EmptyAnswerText replaces a blank model reply.
const EmptyAnswerText = "⚠️ The model returned an empty answer. Check that the LLM service is running and the model has been pulled."

// ModelErrorText renders the placeholder used when the chat call fails.
func ModelErrorText(err error) string {
	return fmt.Sprintf("⚠️ Model could not reply: %v", err)
}

// Engine answers questions grounded in the indexed documents.
type Engine interface {
	// Retrieve returns the hits for question without asking the model.
	Retrieve(ctx context.Context, question string, settings Settings) ([]Hit, error)
	// Ask retrieves, composes and asks the chat model. Chat failures become a
	// placeholder answer, not an error. The turn is appended to conv when non-nil.
	Ask(ctx context.Context, conv *Conversation, question string, settings Settings) (Answer, error)
	// AskStream is Ask with partial replies delivered to onChunk as they arrive.
	AskStream(ctx context.Context, conv *Conversation, question string, settings Settings, onChunk func(string) error) (Answer, error)
}

type ragEngine struct {
	retriever *Retriever
	chat      llm.ChatModel
	metrics   *metrics.Metrics
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(retriever *Retriever, chat llm.ChatModel, m *metrics.Metrics) Engine {
	return &ragEngine{
		retriever: retriever,
		chat:      chat,
		metrics:   m,
	}
}

func (e *ragEngine) Retrieve(ctx context.Context, question string, settings Settings) ([]Hit, error) {
	return e.retriever.Retrieve(ctx, question, settings.EmbedModel, settings.TopK)
}

func (e *ragEngine) Ask(ctx context.Context, conv *Conversation, question string, settings Settings) (Answer, error) {
	return e.ask(ctx, conv, question, settings, func(ctx context.Context, params llm.ChatParams) (string, error) {
		return e.chat.Chat(ctx, params)
	})
}

func (e *ragEngine) AskStream(ctx context.Context, conv *Conversation, question string, settings Settings, onChunk func(string) error) (Answer, error) {
	streamer, ok := e.chat.(llm.ChatStreamer)
	if !ok {
		return e.ask(ctx, conv, question, settings, func(ctx context.Context, params llm.ChatParams) (string, error) {
			reply, err := e.chat.Chat(ctx, params)
			if err != nil {
				return "", err
			}
			if err := onChunk(reply); err != nil {
				return "", err
			}
			return reply, nil
		})
	}

	return e.ask(ctx, conv, question, settings, func(ctx context.Context, params llm.ChatParams) (string, error) {
		var b strings.Builder
		err := streamer.StreamChat(ctx, params, func(chunk string) error {
			b.WriteString(chunk)
			return onChunk(chunk)
		})
		if err != nil {
			return "", err
		}
		return b.String(), nil
	})
}

type chatFunc func(ctx context.Context, params llm.ChatParams) (string, error)

func (e *ragEngine) ask(ctx context.Context, conv *Conversation, question string, settings Settings, chat chatFunc) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	q := strings.TrimSpace(question)
	if q == "" {
		return Answer{}, ErrEmptyQuestion
	}

	logger.InfoContext(ctx, "ask started",
		"question_length", len(q),
		"top_k", settings.TopK,
		"llm_model", settings.LLMModel,
		"embed_model", settings.EmbedModel,
	)

	hits, err := e.retriever.Retrieve(ctx, q, settings.EmbedModel, settings.TopK)
	if err != nil {
		return Answer{}, err
	}

	prompt := Compose(q, hits)
	logger.DebugContext(ctx, "prompt composed", "user_prompt_length", len(prompt.User), "hits", len(hits))

	ans := Answer{Question: q, Hits: hits}
	outcome := metrics.OutcomeOK

	reply, err := chat(ctx, llm.ChatParams{
		System:      prompt.System,
		User:        prompt.User,
		Model:       settings.LLMModel,
		Temperature: settings.Temperature,
	})
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "chat model failed", "error", err)
		ans.Text = ModelErrorText(err)
		ans.ModelError = err.Error()
		outcome = metrics.OutcomeChatError
	case strings.TrimSpace(reply) == "":
		logger.WarnContext(ctx, "chat model returned an empty answer")
		ans.Text = EmptyAnswerText
		outcome = metrics.OutcomeEmpty
	default:
		ans.Text = strings.TrimSpace(reply)
	}

	if conv != nil {
		conv.Append(Turn{Question: q, Answer: ans.Text, Hits: hits})
	}

	e.metrics.RecordAsk(outcome, time.Since(start))
	logger.InfoContext(ctx, "ask completed", "outcome", outcome, "answer_length", len(ans.Text), "hits", len(hits))
	return ans, nil
}
