package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScannedFile represents a PDF found under the ingestion root.
type ScannedFile struct {
	Source  string // Relative path from the root with forward slashes (e.g., "hr/handbook.pdf")
	AbsPath string // Absolute file path
	Size    int64
}

// Scan walks the root and returns every PDF, sorted by source key.
// Hidden directories are skipped.
func (r *Root) Scan(ctx context.Context) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.Walk(r.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path != r.path && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsPDF(path) {
			return nil
		}

		files = append(files, ScannedFile{
			Source:  r.SourceKey(path),
			AbsPath: path,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", r.path, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
	return files, nil
}
