package chunkstore

import (
	"context"

	"pdfrag/internal/contextutil"
)

// Status summarises what is stored.
type Status struct {
	UniqueSources int `json:"unique_sources"`
	TotalChunks   int `json:"total_chunks"`
}

// GetStatus counts distinct sources and chunks. Any store error yields a zero Status.
func GetStatus(ctx context.Context, c Collection) Status {
	res, err := c.Get(ctx, Include{Metadatas: true})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "status unavailable", "error", err)
		return Status{}
	}

	sources := make(map[string]struct{}, len(res.Metadatas))
	for _, m := range res.Metadatas {
		if m.Source != "" {
			sources[m.Source] = struct{}{}
		}
	}
	return Status{
		UniqueSources: len(sources),
		TotalChunks:   len(res.IDs),
	}
}

// ClearAll deletes every stored entry. Errors are logged and swallowed.
func ClearAll(ctx context.Context, c Collection) {
	logger := contextutil.LoggerFromContext(ctx)

	res, err := c.Get(ctx, Include{})
	if err != nil {
		logger.WarnContext(ctx, "failed to list chunks for clear", "error", err)
		return
	}
	if len(res.IDs) == 0 {
		return
	}
	if err := c.Delete(ctx, res.IDs); err != nil {
		logger.WarnContext(ctx, "failed to clear chunks", "count", len(res.IDs), "error", err)
		return
	}
	logger.InfoContext(ctx, "cleared chunk store", "count", len(res.IDs))
}
