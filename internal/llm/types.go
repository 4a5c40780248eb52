package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks pdfrag/internal/llm Embedder,ChatModel

import "context"

// Embedder maps text to a fixed-dimension vector using a named embedding model.
type Embedder interface {
	// Embed returns the embedding of text. An empty model selects the embedder's default.
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// ChatModel sends a system/user prompt pair to a language model.
type ChatModel interface {
	// Chat returns the generated reply text.
	Chat(ctx context.Context, params ChatParams) (string, error)
}

// ChatStreamer is implemented by chat models that can stream partial replies.
type ChatStreamer interface {
	StreamChat(ctx context.Context, params ChatParams, callback func(chunk string) error) error
}

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// System is the system instruction.
	System string

	// User is the user instruction.
	User string

	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// Temperature controls the randomness of the output.
	Temperature float64
}

// Messages renders the params as a system/user message pair.
func (p ChatParams) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if p.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: p.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: p.User})
	return msgs
}
