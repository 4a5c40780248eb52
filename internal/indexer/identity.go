package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HashBytes returns the hex-encoded sha256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChunkKey addresses one chunk of one document version.
// Page and Index are both 1-based.
type ChunkKey struct {
	FileHash string
	Page     int
	Index    int
}

// ID renders the key as "<file_hash>:<page>:<index>".
func (k ChunkKey) ID() string {
	return fmt.Sprintf("%s:%d:%d", k.FileHash, k.Page, k.Index)
}

// ParseChunkID is the inverse of ChunkKey.ID.
func ParseChunkID(id string) (ChunkKey, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] == "" {
		return ChunkKey{}, fmt.Errorf("malformed chunk id %q", id)
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("malformed page in chunk id %q: %w", id, err)
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("malformed index in chunk id %q: %w", id, err)
	}
	return ChunkKey{FileHash: parts[0], Page: page, Index: index}, nil
}
