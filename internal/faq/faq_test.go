package faq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, c.Categories)

	assert.Equal(t, "請假", c.Names()[0])
	q, err := c.Question("請假", 0)
	require.NoError(t, err)
	assert.Equal(t, "病假需要證明嗎？", q)

	for _, cat := range c.Categories {
		assert.NotEmpty(t, cat.Questions, "category %s has no questions", cat.Name)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, c.Categories)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "faq.yaml")
		data := "categories:\n  - name: IT\n    questions:\n      - How do I reset my password?\n      - \"  \"\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"IT"}, c.Names())
		assert.Equal(t, []string{"How do I reset my password?"}, c.Categories[0].Questions)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":           "categories: [",
		"unnamed category":   "categories:\n  - questions: [a]\n",
		"duplicate category": "categories:\n  - name: A\n  - name: A\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestCatalogue_Question(t *testing.T) {
	c := &Catalogue{Categories: []Category{{Name: "A", Questions: []string{"q0", "q1"}}}}

	q, err := c.Question("A", 1)
	require.NoError(t, err)
	assert.Equal(t, "q1", q)

	_, err = c.Question("A", 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Question("A", -1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Question("B", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
