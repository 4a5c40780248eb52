package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/service"
)

const (
	// maxUploadBytes bounds one multipart upload request.
	maxUploadBytes = 256 << 20
	// maxUploadMemory is kept in memory before spilling parts to disk.
	maxUploadMemory = 32 << 20
)

// LibraryHandler serves the document library endpoints.
type LibraryHandler struct {
	library service.LibraryService
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(library service.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// DocumentResponse is one ingested document.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	Source     string    `json:"source"`
	FileHash   string    `json:"file_hash"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	Note       string    `json:"note,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DocumentsResponse lists ingested documents.
//
// swagger:model DocumentsResponse
type DocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

// List returns the ingested documents.
//
// swagger:route GET /api/documents listDocuments
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.library.Documents(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}

	resp := DocumentsResponse{Documents: make([]DocumentResponse, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, DocumentResponse{
			Source:     d.Source,
			FileHash:   d.FileHash,
			Pages:      d.Pages,
			Chunks:     d.Chunks,
			Note:       d.Note,
			IngestedAt: d.IngestedAt,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Upload ingests the PDFs posted in the multipart field "files".
// Optional form values chunk_size, overlap and embed_model override the defaults.
//
// swagger:route POST /api/documents uploadDocuments
//
// responses:
//
//	'200':
//	  description: Batch result with per-file notes
//	'400':
//	  description: No files or chunking parameters out of range
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *LibraryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.WarnContext(ctx, "invalid multipart upload", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	opts := service.UploadOptions{EmbedModel: r.FormValue("embed_model")}
	var err error
	if opts.ChunkSize, err = formInt(r, "chunk_size"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Overlap, err = formInt(r, "overlap"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]indexer.Upload, 0, len(headers))
	var unreadable []string
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			logger.WarnContext(ctx, "failed to read uploaded file", "name", fh.Filename, "error", err)
			unreadable = append(unreadable, fmt.Sprintf("%s: failed to read upload: %v", fh.Filename, err))
			continue
		}
		uploads = append(uploads, indexer.Upload{Name: fh.Filename, Data: data})
	}

	res := indexer.BatchResult{Notes: []string{}, Results: []indexer.Result{}}
	if len(uploads) > 0 || len(unreadable) == 0 {
		var err error
		if res, err = h.library.Upload(ctx, uploads, opts); err != nil {
			handleServiceError(ctx, w, err, "Failed to ingest upload")
			return
		}
	}
	res.Skipped += len(unreadable)
	res.Notes = append(unreadable, res.Notes...)
	writeJSON(ctx, w, http.StatusOK, res)
}

// Reindex ingests every PDF already under the ingestion root.
//
// swagger:route POST /api/documents/reindex reindexDocuments
func (h *LibraryHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.library.Reindex(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to reindex")
		return
	}
	writeJSON(ctx, w, http.StatusOK, res)
}

// Remove deletes one document by source key.
//
// swagger:route DELETE /api/documents/{source} removeDocument
func (h *LibraryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.library.Remove(ctx, chi.URLParam(r, "*")); err != nil {
		handleServiceError(ctx, w, err, "Failed to remove document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the chunk store and document catalogue.
//
// swagger:route DELETE /api/documents clearDocuments
func (h *LibraryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.library.Clear(ctx); err != nil {
		handleServiceError(ctx, w, err, "Failed to clear library")
		return
	}
	writeJSON(ctx, w, http.StatusOK, h.library.Status(ctx))
}

// Status returns the number of stored sources and chunks.
//
// swagger:route GET /api/status libraryStatus
func (h *LibraryHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(ctx, w, http.StatusOK, h.library.Status(ctx))
}

// Stats returns coverage statistics for the index.
//
// swagger:route GET /api/stats libraryStats
func (h *LibraryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.library.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

// formInt parses an optional integer form value.
func formInt(r *http.Request, key string) (*int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}
