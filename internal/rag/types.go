package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks pdfrag/internal/rag Engine

import (
	"fmt"
	"time"

	"pdfrag/internal/chunkstore"
)

// MaxCitationRunes caps the chunk text returned with a citation.
const MaxCitationRunes = 3500

// Hit is a retrieved chunk.
type Hit struct {
	// ChunkID is the content-addressed chunk identifier.
	ChunkID string
	// Text is the chunk text.
	Text string
	// Meta is the metadata stored with the chunk.
	Meta chunkstore.Metadata
	// Distance is the store's distance to the question, smaller is closer.
	Distance float32
}

// Label renders the citation label shown next to a hit.
func (h Hit) Label() string {
	src := h.Meta.Source
	if src == "" {
		src = "unknown"
	}
	if h.Meta.Page > 0 {
		return fmt.Sprintf("%s（第%d頁）", src, h.Meta.Page)
	}
	return src
}

// Settings are the per-question knobs.
type Settings struct {
	// LLMModel is the chat model. Empty selects the provider default.
	LLMModel string
	// EmbedModel is the embedding model used for the question.
	EmbedModel string
	// TopK is the number of chunks to retrieve.
	TopK int
	// Temperature is passed to the chat model.
	Temperature float64
}

// Answer is the outcome of one question.
type Answer struct {
	// Question is the trimmed question.
	Question string
	// Text is the model reply or a placeholder.
	Text string
	// Hits are the chunks used as context.
	Hits []Hit
	// ModelError is set when Text is the chat failure placeholder.
	ModelError string
}

// Turn is one question/answer exchange kept in a conversation.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Hits     []Hit     `json:"-"`
	At       time.Time `json:"at"`
}

// Citation is the API view of a hit.
type Citation struct {
	// Rank is the 1-based position matching the [n] markers in the prompt.
	Rank     int     `json:"rank"`
	ChunkID  string  `json:"chunk_id"`
	Label    string  `json:"label"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Chunk    int     `json:"chunk"`
	Distance float32 `json:"distance"`
	Text     string  `json:"text"`
}

// Citations converts hits to citations, truncating text to maxRunes (0 keeps it whole).
func Citations(hits []Hit, maxRunes int) []Citation {
	out := make([]Citation, 0, len(hits))
	for i, h := range hits {
		out = append(out, Citation{
			Rank:     i + 1,
			ChunkID:  h.ChunkID,
			Label:    h.Label(),
			Source:   h.Meta.Source,
			Page:     h.Meta.Page,
			Chunk:    h.Meta.Chunk,
			Distance: h.Distance,
			Text:     truncateRunes(h.Text, maxRunes),
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
