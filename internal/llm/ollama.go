package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// OllamaProvider serves chat and embeddings from an Ollama server through langchaingo.
// langchaingo binds one model per client, so clients are cached by model name.
type OllamaProvider struct {
	serverURL  string
	chatModel  string
	embedModel string

	mu      sync.Mutex
	clients map[string]*ollama.LLM
}

// NewOllamaProvider creates a provider with default chat and embedding models.
func NewOllamaProvider(serverURL, chatModel, embedModel string) *OllamaProvider {
	return &OllamaProvider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		clients:    make(map[string]*ollama.LLM),
	}
}

func (p *OllamaProvider) client(model string) (*ollama.LLM, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[model]; ok {
		return c, nil
	}
	c, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(p.serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client for %s: %w", model, err)
	}
	p.clients[model] = c
	return c, nil
}

// Embed returns the embedding of text.
func (p *OllamaProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if model == "" {
		model = p.embedModel
	}
	c, err := p.client(model)
	if err != nil {
		return nil, err
	}

	vecs, err := c.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned by %s", model)
	}
	return vecs[0], nil
}

// Chat returns the model's reply to a system/user prompt pair.
func (p *OllamaProvider) Chat(ctx context.Context, params ChatParams) (string, error) {
	return p.generate(ctx, params)
}

// StreamChat streams the reply chunk by chunk.
func (p *OllamaProvider) StreamChat(ctx context.Context, params ChatParams, callback func(chunk string) error) error {
	_, err := p.generate(ctx, params, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return callback(string(chunk))
	}))
	return err
}

func (p *OllamaProvider) generate(ctx context.Context, params ChatParams, extra ...llms.CallOption) (string, error) {
	model := params.Model
	if model == "" {
		model = p.chatModel
	}
	c, err := p.client(model)
	if err != nil {
		return "", err
	}

	var messages []llms.MessageContent
	if params.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, params.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, params.User))

	opts := append([]llms.CallOption{llms.WithTemperature(params.Temperature)}, extra...)
	resp, err := c.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Content, nil
}
