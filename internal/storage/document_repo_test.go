package storage

import (
	"context"
	"testing"
	"time"
)

func TestNewDocumentRepo(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	if repo == nil {
		t.Fatal("NewDocumentRepo() returned nil")
	}
}

func TestDocumentRepo_Get(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	if err := repo.Upsert(ctx, &DocumentRecord{Source: "a.pdf", FileHash: "h1", Pages: 3, Chunks: 7}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tests := []struct {
		name    string
		source  string
		wantErr error
	}{
		{name: "existing", source: "a.pdf"},
		{name: "missing", source: "b.pdf", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Get(ctx, tt.source)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.FileHash != "h1" || got.Pages != 3 || got.Chunks != 7 {
				t.Errorf("Get() = %+v", got)
			}
			if got.IngestedAt.IsZero() {
				t.Error("Get() IngestedAt should be set")
			}
			if time.Since(got.IngestedAt) > 24*time.Hour {
				t.Errorf("Get() IngestedAt = %v, looks stale", got.IngestedAt)
			}
		})
	}
}

func TestDocumentRepo_Upsert_Updates(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	if err := repo.Upsert(ctx, &DocumentRecord{Source: "a.pdf", FileHash: "h1", Pages: 1, Chunks: 1}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, &DocumentRecord{Source: "a.pdf", FileHash: "h2", Pages: 2, Chunks: 5, Note: "n"}); err != nil {
		t.Fatalf("Upsert() second call error = %v", err)
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("List() returned %d documents, want 1", len(docs))
	}
	if docs[0].FileHash != "h2" || docs[0].Chunks != 5 || docs[0].Note != "n" {
		t.Errorf("List()[0] = %+v", docs[0])
	}
}

func TestDocumentRepo_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	for _, src := range []string{"b.pdf", "a.pdf", "c/d.pdf"} {
		if err := repo.Upsert(ctx, &DocumentRecord{Source: src, FileHash: "h"}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", src, err)
		}
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"a.pdf", "b.pdf", "c/d.pdf"}
	if len(docs) != len(want) {
		t.Fatalf("List() returned %d documents, want %d", len(docs), len(want))
	}
	for i, d := range docs {
		if d.Source != want[i] {
			t.Errorf("List()[%d].Source = %q, want %q", i, d.Source, want[i])
		}
	}

	if err := repo.Delete(ctx, "b.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "b.pdf"); err != nil {
		t.Errorf("Delete() of missing row error = %v", err)
	}
	docs, _ = repo.List(ctx)
	if len(docs) != 2 {
		t.Errorf("List() after Delete returned %d, want 2", len(docs))
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	docs, _ = repo.List(ctx)
	if len(docs) != 0 {
		t.Errorf("List() after DeleteAll returned %d, want 0", len(docs))
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "2025-01-02 03:04:05"},
		{in: "2025-01-02T03:04:05Z"},
		{in: "2025-01-02T03:04:05.123Z"},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}
