package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// buildPDF writes a minimal single-font PDF with one page per entry in texts.
// An empty entry produces a page with an empty content stream.
func buildPDF(texts []string) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	firstPage := 4
	kids := make([]string, len(texts))
	for i := range texts {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+i*2)
	}

	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(texts)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range texts {
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", firstPage+i*2+1))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestExtractor_ExtractPages(t *testing.T) {
	e := NewExtractor()
	data := buildPDF([]string{"Annual leave policy", "", "Sick leave needs a note"})

	pages, err := e.ExtractPages(context.Background(), data)
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("ExtractPages() returned %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Number != i+1 {
			t.Errorf("page %d has Number %d", i, p.Number)
		}
	}
	if !strings.Contains(pages[0].Text, "Annual") {
		t.Errorf("page 1 text = %q, want it to contain Annual", pages[0].Text)
	}
	if strings.TrimSpace(pages[1].Text) != "" {
		t.Errorf("page 2 text = %q, want empty", pages[1].Text)
	}
	if !strings.Contains(pages[2].Text, "Sick") {
		t.Errorf("page 3 text = %q, want it to contain Sick", pages[2].Text)
	}
}

func TestExtractor_InvalidPDF(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractPages(context.Background(), []byte("definitely not a pdf")); err == nil {
		t.Error("ExtractPages() expected error for non-pdf input")
	}
}

func TestExtractor_CancelledContext(t *testing.T) {
	e := NewExtractor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ExtractPages(ctx, buildPDF([]string{"text"})); err == nil {
		t.Error("ExtractPages() expected error for cancelled context")
	}
}
