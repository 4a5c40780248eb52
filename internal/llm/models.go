package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelCatalog lists the models served by an OpenAI-compatible endpoint.
// Ollama exposes the same /v1/models route.
type ModelCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewModelCatalog creates a new model catalog client.
func NewModelCatalog(baseURL, apiKey string) *ModelCatalog {
	return &ModelCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ModelInfo is one entry of the /v1/models listing.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// List returns the ids of all available models.
func (mc *ModelCatalog) List(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/v1/models", mc.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	if mc.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", mc.apiKey))
	}

	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var models ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	ids := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// HasModel reports whether name is served. Ollama lists tagged names, so
// "llama3.1" also matches "llama3.1:latest".
func (mc *ModelCatalog) HasModel(ctx context.Context, name string) (bool, error) {
	ids, err := mc.List(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == name || strings.TrimSuffix(id, ":latest") == name {
			return true, nil
		}
	}
	return false, nil
}
