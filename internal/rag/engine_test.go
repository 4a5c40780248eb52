package rag_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"pdfrag/internal/chunkstore"
	csmocks "pdfrag/internal/chunkstore/mocks"
	"pdfrag/internal/llm"
	llmmocks "pdfrag/internal/llm/mocks"
	"pdfrag/internal/metrics"
	"pdfrag/internal/rag"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var questionVec = []float32{0.1, 0.2, 0.3}

func queryResult(sources ...string) chunkstore.QueryResult {
	var res chunkstore.QueryResult
	for i, src := range sources {
		res.IDs = append(res.IDs, src+":1:1")
		res.Documents = append(res.Documents, "text from "+src)
		res.Metadatas = append(res.Metadatas, chunkstore.Metadata{Source: src, Page: i + 1, Chunk: 1})
		res.Distances = append(res.Distances, float32(i)*0.1)
	}
	return res
}

func settings() rag.Settings {
	return rag.Settings{LLMModel: "llama3.1", EmbedModel: "nomic-embed-text", TopK: 6, Temperature: 0.2}
}

func TestRetriever_BlankQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	emb := llmmocks.NewMockEmbedder(ctrl)
	store := csmocks.NewMockCollection(ctrl)

	r := rag.NewRetriever(emb, store)
	for _, q := range []string{"", "   ", "\n\t"} {
		hits, err := r.Retrieve(context.Background(), q, "m", 6)
		if err != nil {
			t.Fatalf("Retrieve(%q) error = %v", q, err)
		}
		if hits == nil || len(hits) != 0 {
			t.Errorf("Retrieve(%q) = %v, want empty slice", q, hits)
		}
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	ctrl := gomock.NewController(t)
	emb := llmmocks.NewMockEmbedder(ctrl)
	store := csmocks.NewMockCollection(ctrl)

	emb.EXPECT().Embed(gomock.Any(), "病假需要證明嗎？", "nomic-embed-text").Return(questionVec, nil).Times(1)
	store.EXPECT().Query(gomock.Any(), questionVec, 6).Return(queryResult("a.pdf", "b.pdf", "c.pdf"), nil)

	m := metrics.New()
	r := rag.NewRetriever(emb, store).WithMetrics(m)
	hits, err := r.Retrieve(context.Background(), "  病假需要證明嗎？ ", "nomic-embed-text", 6)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Retrieve() with top-k 6 over 3 chunks returned %d hits, want 3", len(hits))
	}
	for i, want := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if hits[i].Meta.Source != want {
			t.Errorf("hits[%d].Source = %q, want %q", i, hits[i].Meta.Source, want)
		}
	}
	if hits[0].ChunkID != "a.pdf:1:1" || hits[0].Text != "text from a.pdf" {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if got := testutil.ToFloat64(m.Retrievals); got != 1 {
		t.Errorf("retrievals metric = %v, want 1", got)
	}
}

func TestRetriever_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(emb *llmmocks.MockEmbedder, store *csmocks.MockCollection)
	}{
		{
			name: "embedding fails",
			setup: func(emb *llmmocks.MockEmbedder, store *csmocks.MockCollection) {
				emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("ollama down"))
			},
		},
		{
			name: "query fails",
			setup: func(emb *llmmocks.MockEmbedder, store *csmocks.MockCollection) {
				emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(questionVec, nil)
				store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(chunkstore.QueryResult{}, errors.New("store down"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			emb := llmmocks.NewMockEmbedder(ctrl)
			store := csmocks.NewMockCollection(ctrl)
			tt.setup(emb, store)

			if _, err := rag.NewRetriever(emb, store).Retrieve(context.Background(), "q", "m", 3); err == nil {
				t.Error("Retrieve() expected error")
			}
		})
	}
}

func askCount(t *testing.T, m *metrics.Metrics, outcome string) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "pdfrag_ask_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

type engineDeps struct {
	emb   *llmmocks.MockEmbedder
	store *csmocks.MockCollection
	chat  *llmmocks.MockChatModel
}

func newEngine(t *testing.T, m *metrics.Metrics) (rag.Engine, engineDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := engineDeps{
		emb:   llmmocks.NewMockEmbedder(ctrl),
		store: csmocks.NewMockCollection(ctrl),
		chat:  llmmocks.NewMockChatModel(ctrl),
	}
	return rag.NewEngine(rag.NewRetriever(deps.emb, deps.store), deps.chat, m), deps
}

func TestEngine_Ask(t *testing.T) {
	engine, deps := newEngine(t, nil)
	deps.emb.EXPECT().Embed(gomock.Any(), "病假需要證明嗎？", "nomic-embed-text").Return(questionVec, nil)
	deps.store.EXPECT().Query(gomock.Any(), questionVec, 6).Return(queryResult("leave.pdf"), nil)
	deps.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p llm.ChatParams) (string, error) {
		want := rag.Compose("病假需要證明嗎？", []rag.Hit{{
			ChunkID: "leave.pdf:1:1",
			Text:    "text from leave.pdf",
			Meta:    chunkstore.Metadata{Source: "leave.pdf", Page: 1, Chunk: 1},
		}})
		if p.System != want.System || p.User != want.User {
			t.Errorf("Chat() prompt = %+v, want %+v", p, want)
		}
		if p.Model != "llama3.1" || p.Temperature != 0.2 {
			t.Errorf("Chat() model/temperature = %q/%v", p.Model, p.Temperature)
		}
		return "  需要，請附證明 [1]。\n", nil
	})

	conv := rag.NewConversation("c")
	ans, err := engine.Ask(context.Background(), conv, " 病假需要證明嗎？ ", settings())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Text != "需要，請附證明 [1]。" {
		t.Errorf("Ask() text = %q", ans.Text)
	}
	if ans.Question != "病假需要證明嗎？" || len(ans.Hits) != 1 || ans.ModelError != "" {
		t.Errorf("Ask() = %+v", ans)
	}

	turns := conv.Turns()
	if len(turns) != 1 {
		t.Fatalf("conversation has %d turns, want 1", len(turns))
	}
	if turns[0].Question != "病假需要證明嗎？" || turns[0].Answer != ans.Text || len(turns[0].Hits) != 1 {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestEngine_Ask_Placeholders(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		chatErr     error
		wantText    string
		wantOutcome string
	}{
		{
			name:        "chat failure",
			chatErr:     errors.New("connection refused"),
			wantText:    "⚠️ Model could not reply: connection refused",
			wantOutcome: metrics.OutcomeChatError,
		},
		{
			name:        "empty answer",
			reply:       "  \n ",
			wantText:    rag.EmptyAnswerText,
			wantOutcome: metrics.OutcomeEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			engine, deps := newEngine(t, m)
			deps.emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(questionVec, nil)
			deps.store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(queryResult("a.pdf"), nil)
			deps.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(tt.reply, tt.chatErr)

			conv := rag.NewConversation("c")
			ans, err := engine.Ask(context.Background(), conv, "q", settings())
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if ans.Text != tt.wantText {
				t.Errorf("Ask() text = %q, want %q", ans.Text, tt.wantText)
			}
			if (tt.chatErr != nil) != (ans.ModelError != "") {
				t.Errorf("Ask() ModelError = %q", ans.ModelError)
			}
			if turns := conv.Turns(); len(turns) != 1 || turns[0].Answer != tt.wantText {
				t.Errorf("placeholder not recorded in conversation: %+v", turns)
			}
			if got := askCount(t, m, tt.wantOutcome); got != 1 {
				t.Errorf("ask count for outcome %q = %d, want 1", tt.wantOutcome, got)
			}
		})
	}
}

func TestEngine_Ask_EmptyQuestion(t *testing.T) {
	engine, _ := newEngine(t, nil)
	conv := rag.NewConversation("c")

	_, err := engine.Ask(context.Background(), conv, "  ", settings())
	if !errors.Is(err, rag.ErrEmptyQuestion) {
		t.Errorf("Ask() error = %v, want ErrEmptyQuestion", err)
	}
	if len(conv.Turns()) != 0 {
		t.Error("blank question was recorded")
	}
}

func TestEngine_Ask_RetrievalErrorNotRecorded(t *testing.T) {
	engine, deps := newEngine(t, nil)
	deps.emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))

	conv := rag.NewConversation("c")
	if _, err := engine.Ask(context.Background(), conv, "q", settings()); err == nil {
		t.Fatal("Ask() expected error")
	}
	if len(conv.Turns()) != 0 {
		t.Error("failed retrieval was recorded")
	}
}

func TestEngine_Ask_NoHits(t *testing.T) {
	engine, deps := newEngine(t, nil)
	deps.emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(questionVec, nil)
	deps.store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(chunkstore.QueryResult{}, nil)
	deps.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p llm.ChatParams) (string, error) {
		if !strings.Contains(p.User, "(no context found)") {
			t.Errorf("prompt without hits lacks placeholder: %s", p.User)
		}
		return "I don't have enough information.", nil
	})

	ans, err := engine.Ask(context.Background(), nil, "q", settings())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(ans.Hits) != 0 {
		t.Errorf("Ask() hits = %d, want 0", len(ans.Hits))
	}
}

func TestEngine_Retrieve(t *testing.T) {
	engine, deps := newEngine(t, nil)
	deps.emb.EXPECT().Embed(gomock.Any(), "q", "nomic-embed-text").Return(questionVec, nil)
	deps.store.EXPECT().Query(gomock.Any(), questionVec, 6).Return(queryResult("a.pdf", "b.pdf"), nil)

	hits, err := engine.Retrieve(context.Background(), "q", settings())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("Retrieve() = %d hits, want 2", len(hits))
	}
}

// streamingChat implements llm.ChatModel and llm.ChatStreamer.
type streamingChat struct {
	chunks []string
	err    error
}

func (s *streamingChat) Chat(ctx context.Context, params llm.ChatParams) (string, error) {
	return strings.Join(s.chunks, ""), s.err
}

func (s *streamingChat) StreamChat(ctx context.Context, params llm.ChatParams, callback func(chunk string) error) error {
	for _, c := range s.chunks {
		if err := callback(c); err != nil {
			return err
		}
	}
	return s.err
}

func TestEngine_AskStream(t *testing.T) {
	tests := []struct {
		name       string
		chat       *streamingChat
		wantChunks []string
		wantText   string
	}{
		{
			name:       "streams chunks",
			chat:       &streamingChat{chunks: []string{"需要", "證明", " [1]。 "}},
			wantChunks: []string{"需要", "證明", " [1]。 "},
			wantText:   "需要證明 [1]。",
		},
		{
			name:       "stream failure becomes placeholder",
			chat:       &streamingChat{chunks: []string{"partial"}, err: errors.New("stream cut")},
			wantChunks: []string{"partial"},
			wantText:   "⚠️ Model could not reply: stream cut",
		},
		{
			name:     "empty stream",
			chat:     &streamingChat{},
			wantText: rag.EmptyAnswerText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			emb := llmmocks.NewMockEmbedder(ctrl)
			store := csmocks.NewMockCollection(ctrl)
			emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(questionVec, nil)
			store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(queryResult("a.pdf"), nil)

			engine := rag.NewEngine(rag.NewRetriever(emb, store), tt.chat, nil)
			conv := rag.NewConversation("c")

			var got []string
			ans, err := engine.AskStream(context.Background(), conv, "q", settings(), func(chunk string) error {
				got = append(got, chunk)
				return nil
			})
			if err != nil {
				t.Fatalf("AskStream() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.wantChunks, "|") {
				t.Errorf("chunks = %q, want %q", got, tt.wantChunks)
			}
			if ans.Text != tt.wantText {
				t.Errorf("AskStream() text = %q, want %q", ans.Text, tt.wantText)
			}
			if turns := conv.Turns(); len(turns) != 1 || turns[0].Answer != tt.wantText {
				t.Errorf("turns = %+v", turns)
			}
		})
	}
}

func TestEngine_AskStream_FallsBackToChat(t *testing.T) {
	engine, deps := newEngine(t, nil)
	deps.emb.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return(questionVec, nil)
	deps.store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(queryResult("a.pdf"), nil)
	deps.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).Return("whole answer", nil).Times(1)

	var got []string
	ans, err := engine.AskStream(context.Background(), nil, "q", settings(), func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	if len(got) != 1 || got[0] != "whole answer" {
		t.Errorf("chunks = %q, want one whole answer", got)
	}
	if ans.Text != "whole answer" {
		t.Errorf("AskStream() text = %q", ans.Text)
	}
}
