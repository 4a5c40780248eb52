package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root is the ingestion root directory. Source keys are paths relative to it.
type Root struct {
	path string
}

// NewRoot resolves path to an absolute directory, creating it if needed.
func NewRoot(path string) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ingestion root %s: %w", path, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ingestion root %s: %w", abs, err)
	}
	return &Root{path: abs}, nil
}

// Path returns the absolute root directory.
func (r *Root) Path() string {
	return r.path
}

// Contains reports whether path lies inside the root.
func (r *Root) Contains(path string) bool {
	_, ok := r.rel(path)
	return ok
}

// SourceKey returns the forward-slash path of absPath relative to the root.
// Callers check Contains first; files outside the root are keyed by their base name.
func (r *Root) SourceKey(absPath string) string {
	if rel, ok := r.rel(absPath); ok {
		return rel
	}
	return filepath.Base(absPath)
}

func (r *Root) rel(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(r.path, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// AbsPath returns the absolute path for a source key.
func (r *Root) AbsPath(source string) string {
	return filepath.Join(r.path, filepath.FromSlash(source))
}

// Save writes data under the root using the base name of name and returns the absolute path.
// Existing files with the same name are overwritten.
func (r *Root) Save(name string, data []byte) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	path := filepath.Join(r.path, base)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", base, err)
	}
	return path, nil
}

// Remove deletes the file for a source key. Missing files are not an error.
func (r *Root) Remove(source string) error {
	if err := os.Remove(r.AbsPath(source)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", source, err)
	}
	return nil
}

// IsPDF reports whether path has a .pdf extension, ignoring case.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
