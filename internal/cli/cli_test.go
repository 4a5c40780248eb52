package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/config"
	"pdfrag/internal/indexer"
	"pdfrag/internal/library"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	"pdfrag/internal/service/mocks"
	"pdfrag/internal/watcher"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeIndexer struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
	result   func(path string) indexer.Result
}

func (f *fakeIndexer) Ingest(_ context.Context, path string, _ indexer.Options) indexer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, path)
	if f.result != nil {
		return f.result(path)
	}
	return indexer.Result{Source: filepath.Base(path), PagesScanned: 2, ChunksAdded: 3}
}

func (f *fakeIndexer) Remove(_ context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, source)
	return nil
}

type testApp struct {
	app     *App
	ask     *mocks.MockAskService
	library *mocks.MockLibraryService
	indexer *fakeIndexer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctrl := gomock.NewController(t)
	root, err := library.NewRoot(t.TempDir())
	require.NoError(t, err)

	ta := &testApp{
		ask:     mocks.NewMockAskService(ctrl),
		library: mocks.NewMockLibraryService(ctrl),
		indexer: &fakeIndexer{},
	}
	ta.app = &App{
		Config:  &config.Config{APIPort: "0"},
		Root:    root,
		Options: indexer.Options{EmbedModel: "nomic-embed-text", ChunkSize: 800, Overlap: 100},
		Ask:     ta.ask,
		Library: ta.library,
		Indexer: ta.indexer,
	}
	return ta
}

// execute runs the root command with args against app and returns stdout.
func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	orig := newApp
	newApp = func(context.Context) (*App, error) {
		if app == nil {
			return nil, errors.New("bootstrap should not be called")
		}
		return app, nil
	}
	t.Cleanup(func() { newApp = orig })
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func sampleHits() []rag.Hit {
	return []rag.Hit{
		{ChunkID: "a", Text: "Refunds are issued\nwithin 30 days.", Meta: chunkstore.Metadata{Source: "policy.pdf", Page: 3}, Distance: 0.12},
		{ChunkID: "b", Text: "Contact support.", Meta: chunkstore.Metadata{Source: "faq.pdf", Page: 1}, Distance: 0.34},
	}
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "pdfrag version 1.2.3\n", out)

	SetVersion("")
	out, err = execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "pdfrag version 1.2.3\n", out, "empty version is ignored")
}

func TestAsk(t *testing.T) {
	t.Run("streams the answer then the sources", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req service.AskRequest, onChunk func(string) error) (service.AskResponse, error) {
				assert.Equal(t, "What is the refund policy?", req.Question)
				assert.Nil(t, req.TopK)
				assert.Nil(t, req.Temperature)
				require.NoError(t, onChunk("Within "))
				require.NoError(t, onChunk("30 days."))
				return service.AskResponse{
					ConversationID: "c1",
					Answer:         rag.Answer{Question: req.Question, Text: "Within 30 days.", Hits: sampleHits()},
				}, nil
			})

		out, err := execute(t, ta.app, "ask", "What is the refund policy?")
		require.NoError(t, err)
		assert.Contains(t, out, "Within 30 days.\n")
		assert.Contains(t, out, "Sources:")
		assert.Contains(t, out, "[1] policy.pdf（第3頁）")
		assert.Contains(t, out, "[2] faq.pdf（第1頁）")
	})

	t.Run("flags set overrides", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req service.AskRequest, _ func(string) error) (service.AskResponse, error) {
				require.NotNil(t, req.TopK)
				assert.Equal(t, 8, *req.TopK)
				require.NotNil(t, req.Temperature)
				assert.Equal(t, 0.0, *req.Temperature)
				assert.Equal(t, "llama3", req.LLMModel)
				return service.AskResponse{Answer: rag.Answer{Text: "ok"}}, nil
			})

		_, err := execute(t, ta.app, "ask", "-k", "8", "--temperature", "0", "--model", "llama3", "q")
		require.NoError(t, err)
	})

	t.Run("placeholder is printed when nothing streamed", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(service.AskResponse{Answer: rag.Answer{Text: "No relevant passages were found."}}, nil)

		out, err := execute(t, ta.app, "ask", "q")
		require.NoError(t, err)
		assert.Equal(t, "No relevant passages were found.\n", out)
	})

	t.Run("json output", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{
			ConversationID: "c1",
			Answer:         rag.Answer{Question: "q", Text: "answer", Hits: sampleHits()},
		}, nil)

		out, err := execute(t, ta.app, "ask", "--json", "q")
		require.NoError(t, err)

		var got askOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "c1", got.ConversationID)
		assert.Equal(t, "answer", got.Answer)
		require.Len(t, got.Hits, 2)
		assert.Equal(t, 1, got.Hits[0].Rank)
		assert.Equal(t, "policy.pdf", got.Hits[0].Source)
	})

	t.Run("service error", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().AskStream(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(service.AskResponse{}, &service.ValidationError{Field: "question", Message: "cannot be empty"})

		_, err := execute(t, ta.app, "ask", " ")
		var vErr *service.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		_, err := execute(t, nil, "ask")
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	t.Run("prints hits", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().Search(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req service.SearchRequest) ([]rag.Hit, error) {
				require.NotNil(t, req.TopK)
				assert.Equal(t, 2, *req.TopK)
				return sampleHits(), nil
			})

		out, err := execute(t, ta.app, "search", "-k", "2", "refund")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] policy.pdf（第3頁） (distance 0.1200)")
		assert.Contains(t, out, "Refunds are issued within 30 days.")
	})

	t.Run("no hits", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, nil)

		out, err := execute(t, ta.app, "search", "refund")
		require.NoError(t, err)
		assert.Equal(t, "No matching passages.\n", out)
	})

	t.Run("json output", func(t *testing.T) {
		ta := newTestApp(t)
		ta.ask.EXPECT().Search(gomock.Any(), gomock.Any()).Return(sampleHits(), nil)

		out, err := execute(t, ta.app, "search", "--json", "refund")
		require.NoError(t, err)

		var got []rag.Citation
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "faq.pdf（第1頁）", got[1].Label)
	})
}

func TestStatus(t *testing.T) {
	stats := &indexer.CoverageStats{
		Documents:            3,
		DocumentsWith0Chunks: 1,
		Chunks:               12,
		ChunkerVersion:       indexer.ChunkerVersion,
	}

	t.Run("text", func(t *testing.T) {
		ta := newTestApp(t)
		ta.library.EXPECT().Status(gomock.Any()).Return(chunkstore.Status{UniqueSources: 2, TotalChunks: 12})
		ta.library.EXPECT().Stats(gomock.Any()).Return(stats, nil)

		out, err := execute(t, ta.app, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Sources:         2")
		assert.Contains(t, out, "Chunks:          12")
		assert.Contains(t, out, "Documents:       3 (1 without chunks)")
	})

	t.Run("json", func(t *testing.T) {
		ta := newTestApp(t)
		ta.library.EXPECT().Status(gomock.Any()).Return(chunkstore.Status{UniqueSources: 2, TotalChunks: 12})
		ta.library.EXPECT().Stats(gomock.Any()).Return(stats, nil)

		out, err := execute(t, ta.app, "status", "--json")
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.EqualValues(t, 2, got["unique_sources"])
		assert.EqualValues(t, 12, got["total_chunks"])
		assert.Contains(t, got, "stats")
	})

	t.Run("stats error", func(t *testing.T) {
		ta := newTestApp(t)
		ta.library.EXPECT().Status(gomock.Any()).Return(chunkstore.Status{})
		ta.library.EXPECT().Stats(gomock.Any()).Return(nil, errors.New("database is locked"))

		_, err := execute(t, ta.app, "status")
		assert.EqualError(t, err, "database is locked")
	})
}

func TestClear(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		_, err := execute(t, nil, "clear")
		assert.ErrorContains(t, err, "--yes")
	})

	t.Run("clears the index", func(t *testing.T) {
		ta := newTestApp(t)
		gomock.InOrder(
			ta.library.EXPECT().Clear(gomock.Any()).Return(nil),
			ta.library.EXPECT().Status(gomock.Any()).Return(chunkstore.Status{}),
		)

		out, err := execute(t, ta.app, "clear", "--yes")
		require.NoError(t, err)
		assert.Equal(t, "Index cleared: 0 source(s), 0 chunk(s) remain.\n", out)
	})
}

func TestIngest(t *testing.T) {
	t.Run("paths or all", func(t *testing.T) {
		_, err := execute(t, nil, "ingest")
		assert.Error(t, err)

		_, err = execute(t, nil, "ingest", "--all", "a.pdf")
		assert.Error(t, err)
	})

	t.Run("ingests pdf paths and skips the rest", func(t *testing.T) {
		ta := newTestApp(t)
		dir := ta.app.Root.Path()
		a := filepath.Join(dir, "a.pdf")
		b := filepath.Join(dir, "b.PDF")
		require.NoError(t, os.WriteFile(a, []byte("%PDF-1.4"), 0o644))
		require.NoError(t, os.WriteFile(b, []byte("%PDF-1.4"), 0o644))
		ta.indexer.result = func(path string) indexer.Result {
			if path == b {
				return indexer.Result{Source: "b.PDF", PagesScanned: 1, Note: "b.PDF: no text layer"}
			}
			return indexer.Result{Source: "a.pdf", PagesScanned: 2, ChunksAdded: 3}
		}

		out, err := execute(t, ta.app, "ingest", a, filepath.Join(dir, "notes.txt"), b)
		require.NoError(t, err)
		assert.Equal(t, []string{a, b}, ta.indexer.ingested)
		assert.Contains(t, out, "Scanned 2 file(s), 3 page(s): added 3 chunk(s), skipped 1 file(s).")
		assert.Contains(t, out, "  - notes.txt: not a PDF")
		assert.Contains(t, out, "  - b.PDF: no text layer")
	})

	t.Run("rejects files outside the upload directory", func(t *testing.T) {
		ta := newTestApp(t)
		outside := filepath.Join(t.TempDir(), "a.pdf")
		inside := filepath.Join(ta.app.Root.Path(), "a.pdf")
		require.NoError(t, os.WriteFile(outside, []byte("%PDF-1.4"), 0o644))
		require.NoError(t, os.WriteFile(inside, []byte("%PDF-1.4"), 0o644))

		out, err := execute(t, ta.app, "ingest", outside, inside)
		require.NoError(t, err)
		assert.Equal(t, []string{inside}, ta.indexer.ingested)
		assert.Contains(t, out, "Scanned 1 file(s), 2 page(s): added 3 chunk(s), skipped 0 file(s).")
		assert.Contains(t, out, "  - a.pdf: outside the upload directory "+ta.app.Root.Path())
	})

	t.Run("all reindexes the library", func(t *testing.T) {
		ta := newTestApp(t)
		ta.library.EXPECT().Reindex(gomock.Any()).Return(indexer.BatchResult{
			Scanned: 4, Pages: 10, Added: 25, Notes: []string{}, Results: []indexer.Result{},
		}, nil)

		out, err := execute(t, ta.app, "ingest", "--all", "--json")
		require.NoError(t, err)

		var got indexer.BatchResult
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 4, got.Scanned)
		assert.Equal(t, 25, got.Added)
	})

	t.Run("reindex error", func(t *testing.T) {
		ta := newTestApp(t)
		ta.library.EXPECT().Reindex(gomock.Any()).Return(indexer.BatchResult{}, errors.New("permission denied"))

		_, err := execute(t, ta.app, "ingest", "--all")
		assert.ErrorContains(t, err, "permission denied")
	})
}

func TestPrintEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   watcher.Event
		want string
	}{
		{"ingested", watcher.Event{Source: "a.pdf", Result: indexer.Result{PagesScanned: 2, ChunksAdded: 5}}, "ingested a.pdf: 2 page(s), 5 chunk(s)\n"},
		{"skipped", watcher.Event{Source: "b.pdf", Result: indexer.Result{Note: "b.pdf: empty"}}, "skipped b.pdf: empty\n"},
		{"removed", watcher.Event{Source: "c.pdf", Removed: true}, "removed c.pdf\n"},
		{"remove failed", watcher.Event{Source: "c.pdf", Removed: true, Err: errors.New("locked")}, "removed c.pdf: locked\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEvent(&buf, tt.ev)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n  b\tc", 10))
	assert.Equal(t, "一二三...", preview("一二三四五", 3))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, "127.0.0.1:0", nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBackgroundStopWaitsForTasks(t *testing.T) {
	var finished atomic.Int32
	task := func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
	}

	stop := background(context.Background(), task, task)
	stop()
	assert.Equal(t, int32(2), finished.Load())

	background(context.Background())()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestServe_ReindexFinishesBeforeClose(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	port := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	ta := newTestApp(t)
	var reindexDone atomic.Bool
	ta.library.EXPECT().Reindex(gomock.Any()).DoAndReturn(func(ctx context.Context) (indexer.BatchResult, error) {
		<-ctx.Done()
		reindexDone.Store(true)
		return indexer.BatchResult{}, ctx.Err()
	})
	var closedAfterReindex bool
	ta.app.closers = append(ta.app.closers, closerFunc(func() error {
		closedAfterReindex = reindexDone.Load()
		return nil
	}))

	_, err = execute(t, ta.app, "serve", "--reindex", "--port", port)
	assert.Error(t, err)
	assert.True(t, closedAfterReindex, "stores closed while reindex was still running")
}

func TestConfigureLogging(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	configureLogging(&config.Config{LogLevel: slog.LevelInfo, LogFormat: "json"}, &buf)
	slog.Info("hello", "k", "v")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "hello", got["msg"])
	assert.Equal(t, "v", got["k"])
}
