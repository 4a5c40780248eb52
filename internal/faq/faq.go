// Package faq holds the catalogue of frequently asked questions shown next to
// the ask box, grouped by category.
package faq

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrNotFound is returned when a category or question index does not exist.
var ErrNotFound = errors.New("faq item not found")

// Category is a named group of questions.
type Category struct {
	Name      string   `yaml:"name" json:"name"`
	Questions []string `yaml:"questions" json:"questions"`
}

// Catalogue is the ordered list of categories.
type Catalogue struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// Default returns the built-in catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultYAML)
}

// Load reads a catalogue from path. An empty path selects the built-in one.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read faq catalogue: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalogue. Blank questions are dropped.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse faq catalogue: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = strings.TrimSpace(cat.Name)
		if cat.Name == "" {
			return nil, fmt.Errorf("faq category %d has no name", i+1)
		}
		if _, dup := seen[cat.Name]; dup {
			return nil, fmt.Errorf("duplicate faq category %q", cat.Name)
		}
		seen[cat.Name] = struct{}{}

		questions := cat.Questions[:0]
		for _, q := range cat.Questions {
			if q = strings.TrimSpace(q); q != "" {
				questions = append(questions, q)
			}
		}
		cat.Questions = questions
	}
	return &c, nil
}

// Names returns the category names in order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}

// Question returns the index-th question (0-based) of a category.
func (c *Catalogue) Question(category string, index int) (string, error) {
	for _, cat := range c.Categories {
		if cat.Name != category {
			continue
		}
		if index < 0 || index >= len(cat.Questions) {
			return "", fmt.Errorf("%w: %s #%d", ErrNotFound, category, index)
		}
		return cat.Questions[index], nil
	}
	return "", fmt.Errorf("%w: category %s", ErrNotFound, category)
}
