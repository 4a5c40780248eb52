package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	"pdfrag/internal/service/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleHits() []rag.Hit {
	return []rag.Hit{
		{ChunkID: "h1:3:1", Text: "病假需附醫師證明。", Meta: chunkstore.Metadata{Source: "rules.pdf", Page: 3, Chunk: 1}, Distance: 0.12},
		{ChunkID: "h2:0:1", Text: "加班費依勞基法計算。", Meta: chunkstore.Metadata{Source: "pay.pdf", Chunk: 1}, Distance: 0.4},
	}
}

func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
}

func TestAskHandler_ServeHTTP(t *testing.T) {
	topK := 3
	tests := []struct {
		name           string
		method         string
		body           any
		setupMock      func(m *mocks.MockAskService)
		expectedStatus int
		check          func(t *testing.T, resp AskResponse)
	}{
		{
			name:   "answer with citations",
			method: http.MethodPost,
			body:   AskRequest{Question: "病假需要證明嗎？", TopK: &topK},
			setupMock: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, req service.AskRequest) (service.AskResponse, error) {
						if req.Question != "病假需要證明嗎？" {
							t.Errorf("Question = %q", req.Question)
						}
						if req.TopK == nil || *req.TopK != 3 {
							t.Errorf("TopK = %v, want 3", req.TopK)
						}
						return service.AskResponse{
							ConversationID: "c1",
							Answer: rag.Answer{
								Question: req.Question,
								Text:     "需要，請附 **醫師證明** [1]。",
								Hits:     sampleHits(),
							},
						}, nil
					})
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, resp AskResponse) {
				if resp.ConversationID != "c1" {
					t.Errorf("ConversationID = %q", resp.ConversationID)
				}
				if !strings.Contains(resp.AnswerHTML, "<strong>醫師證明</strong>") {
					t.Errorf("AnswerHTML = %q, want rendered markdown", resp.AnswerHTML)
				}
				if len(resp.Hits) != 2 {
					t.Fatalf("len(Hits) = %d, want 2", len(resp.Hits))
				}
				if resp.Hits[0].Rank != 1 || resp.Hits[0].Label != "rules.pdf（第3頁）" {
					t.Errorf("Hits[0] = %+v", resp.Hits[0])
				}
				if resp.Hits[1].Label != "pay.pdf" {
					t.Errorf("Hits[1].Label = %q", resp.Hits[1].Label)
				}
			},
		},
		{
			name:   "model error is reported in the body",
			method: http.MethodPost,
			body:   AskRequest{Question: "q"},
			setupMock: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{
					ConversationID: "c1",
					Answer: rag.Answer{
						Question:   "q",
						Text:       rag.ModelErrorText(errors.New("connection refused")),
						ModelError: "connection refused",
					},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, resp AskResponse) {
				if resp.ModelError != "connection refused" {
					t.Errorf("ModelError = %q", resp.ModelError)
				}
				if resp.Hits == nil || len(resp.Hits) != 0 {
					t.Errorf("Hits = %v, want empty slice", resp.Hits)
				}
			},
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			setupMock:      func(m *mocks.MockAskService) {},
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:   "validation error",
			method: http.MethodPost,
			body:   AskRequest{Question: "  "},
			setupMock: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{},
					&service.ValidationError{Field: "question", Message: "question cannot be empty"})
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown conversation",
			method: http.MethodPost,
			body:   AskRequest{Question: "q", ConversationID: "nope"},
			setupMock: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{}, service.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "embedding service down",
			method: http.MethodPost,
			body:   AskRequest{Question: "q"},
			setupMock: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{},
					fmt.Errorf("%w: %w", service.ErrExternalService, errors.New("dial tcp")))
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mocks.NewMockAskService(ctrl)
			tt.setupMock(m)
			h := NewAskHandler(m)

			var req *http.Request
			if tt.body != nil {
				req = postJSON(t, "/api/ask", tt.body)
			} else {
				req = httptest.NewRequest(tt.method, "/api/ask", nil)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if tt.check != nil {
				var resp AskResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.check(t, resp)
			}
		})
	}
}

func TestAskHandler_InvalidBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAskHandler(mocks.NewMockAskService(ctrl))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("{")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// readEvents splits an SSE body into its data payloads.
func readEvents(t *testing.T, body io.Reader) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			events = append(events, data)
		}
	}
	return events
}

func TestAskHandler_Streaming(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockAskService(ctrl)
	m.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req service.AskRequest, onChunk func(string) error) (service.AskResponse, error) {
			for _, c := range []string{"需要", "證明"} {
				if err := onChunk(c); err != nil {
					return service.AskResponse{}, err
				}
			}
			return service.AskResponse{
				ConversationID: "c9",
				Answer:         rag.Answer{Question: req.Question, Text: "需要證明", Hits: sampleHits()},
			}, nil
		})
	h := NewAskHandler(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/ask?stream=true", AskRequest{Question: "q"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := readEvents(t, rec.Body)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %v", len(events), events)
	}
	var first streamEvent
	if err := json.Unmarshal([]byte(events[0]), &first); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if first.Type != "chunk" || first.Content != "需要" {
		t.Errorf("first event = %+v", first)
	}
	var done streamEvent
	if err := json.Unmarshal([]byte(events[2]), &done); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if done.Type != "done" || done.Result == nil || done.Result.ConversationID != "c9" || len(done.Result.Hits) != 2 {
		t.Errorf("done event = %+v", done)
	}
	if events[3] != "[DONE]" {
		t.Errorf("last event = %q, want [DONE]", events[3])
	}
}

func TestAskHandler_StreamingErrors(t *testing.T) {
	t.Run("error before first chunk is a JSON error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := mocks.NewMockAskService(ctrl)
		m.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(service.AskResponse{}, &service.ValidationError{Field: "top_k", Message: "out of range"})

		rec := httptest.NewRecorder()
		NewAskHandler(m).ServeHTTP(rec, postJSON(t, "/api/ask?stream=true", AskRequest{Question: "q"}))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("error after first chunk is an error event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := mocks.NewMockAskService(ctrl)
		m.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ service.AskRequest, onChunk func(string) error) (service.AskResponse, error) {
				_ = onChunk("part")
				return service.AskResponse{}, errors.New("stream broke")
			})

		rec := httptest.NewRecorder()
		NewAskHandler(m).ServeHTTP(rec, postJSON(t, "/api/ask?stream=true", AskRequest{Question: "q"}))

		events := readEvents(t, rec.Body)
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2: %v", len(events), events)
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(events[1]), &ev); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if ev.Type != "error" || ev.Error != "stream broke" {
			t.Errorf("event = %+v", ev)
		}
	})
}

func TestSearchHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockAskService(ctrl)
	m.EXPECT().Search(gomock.Any(), service.SearchRequest{Question: "加班費"}).Return(sampleHits(), nil)

	rec := httptest.NewRecorder()
	NewSearchHandler(m).ServeHTTP(rec, postJSON(t, "/api/search", SearchRequest{Question: "加班費"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Question != "加班費" || len(resp.Hits) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Hits[0].Distance > resp.Hits[1].Distance {
		t.Errorf("hits not ordered by distance: %+v", resp.Hits)
	}
}

func TestSearchHandler_WrongMethod(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := httptest.NewRecorder()
	NewSearchHandler(mocks.NewMockAskService(ctrl)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
