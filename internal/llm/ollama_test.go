package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeOllama answers both the embeddings and chat endpoints of an Ollama server.
func fakeOllama(t *testing.T, reply string, vec []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "embed"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"embedding":  vec,
				"embeddings": [][]float32{vec},
			})
		case strings.HasSuffix(r.URL.Path, "/api/chat"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":       "llama3.1",
				"created_at":  "2024-01-01T00:00:00Z",
				"message":     map[string]string{"role": "assistant", "content": reply},
				"done":        true,
				"done_reason": "stop",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaProvider_Embed(t *testing.T) {
	server := fakeOllama(t, "", []float32{0.25, 0.5, 0.75})
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3.1", "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.5 {
		t.Errorf("Embed() = %v, want [0.25 0.5 0.75]", vec)
	}
}

func TestOllamaProvider_Chat(t *testing.T) {
	server := fakeOllama(t, "grounded answer [1]", nil)
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3.1", "nomic-embed-text")
	reply, err := p.Chat(context.Background(), ChatParams{System: "sys", User: "question", Temperature: 0.2})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "grounded answer [1]" {
		t.Errorf("Chat() = %q, want %q", reply, "grounded answer [1]")
	}
}

func TestOllamaProvider_ChatSendsSystemAndUserRoles(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/chat") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode chat request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "qwen2.5",
			"created_at": "2024-01-01T00:00:00Z",
			"message":    map[string]string{"role": "assistant", "content": "ok"},
			"done":       true,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3.1", "nomic-embed-text")
	reply, err := p.Chat(context.Background(), ChatParams{System: "only use the context", User: "what is covered?", Model: "qwen2.5"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "ok" {
		t.Errorf("Chat() = %q, want %q", reply, "ok")
	}
	if got.Model != "qwen2.5" {
		t.Errorf("request model = %q, want qwen2.5", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("request has %d messages, want 2", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "only use the context" {
		t.Errorf("first message = %+v, want system prompt", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "what is covered?" {
		t.Errorf("second message = %+v, want user prompt", got.Messages[1])
	}
}

func TestOllamaProvider_ClientCache(t *testing.T) {
	p := NewOllamaProvider("http://localhost:11434", "llama3.1", "nomic-embed-text")

	a, err := p.client("llama3.1")
	if err != nil {
		t.Fatalf("client() error = %v", err)
	}
	b, _ := p.client("llama3.1")
	c, _ := p.client("qwen2.5")
	if a != b {
		t.Error("client() did not reuse the cached client")
	}
	if a == c {
		t.Error("client() shared a client across models")
	}
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3.1", "nomic-embed-text")
	if _, err := p.Embed(context.Background(), "hello", ""); err == nil {
		t.Error("Embed() expected error")
	}
	if _, err := p.Chat(context.Background(), ChatParams{User: "q"}); err == nil {
		t.Error("Chat() expected error")
	}
}
