package handlers

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"pdfrag/internal/contextutil"
)

// newMarkdown returns the renderer for model answers. Raw HTML in answers is
// not passed through.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

// renderMarkdown converts src to HTML. A conversion failure yields "".
func renderMarkdown(ctx context.Context, md goldmark.Markdown, src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to render answer markdown", "error", err)
		return ""
	}
	return buf.String()
}
