package storage

import "time"

// DocumentRecord is the catalogue row for one ingested PDF.
type DocumentRecord struct {
	Source     string    // Path relative to the ingestion root, forward slashes
	FileHash   string    // SHA256 hex string of the file bytes
	Pages      int       // Pages with extractable text
	Chunks     int       // Chunks stored for this source
	Note       string    // Last ingest note, empty on success
	IngestedAt time.Time
}

// ChunkRecord is the text side of a stored chunk. The vector lives in the vector store under the same ID.
type ChunkRecord struct {
	ID         string // "<file_hash>:<page>:<chunk>"
	Source     string
	Page       int
	ChunkIndex int // 1-based within the page
	FileHash   string
	Text       string
}

// CatalogueCounts summarises the chunks table.
type CatalogueCounts struct {
	Sources int
	Chunks  int
}
