package indexer

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the split cascade from coarsest to finest.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "。", "！", "？", " "}

// RecursiveChunker splits normalized text into bounded chunks.
// Sizes are measured in runes.
type RecursiveChunker struct {
	separators []string
}

// NewRecursiveChunker creates a chunker using DefaultSeparators.
func NewRecursiveChunker() *RecursiveChunker {
	return &RecursiveChunker{separators: DefaultSeparators}
}

// Chunk normalizes text and splits it into chunks of at most size runes,
// then prefixes every chunk after the first with the last overlap runes of
// its predecessor. Stitched chunks may exceed size.
func (c *RecursiveChunker) Chunk(text string, size, overlap int) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	s := &splitter{separators: c.separators, size: size}
	s.split(text, 0)

	chunks := make([]string, 0, len(s.out))
	for _, chunk := range s.out {
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	return stitchOverlap(chunks, overlap)
}

type splitter struct {
	separators []string
	size       int
	out        []string
}

func (s *splitter) split(text string, level int) {
	if runeLen(text) <= s.size {
		s.out = append(s.out, strings.TrimSpace(text))
		return
	}

	if level >= len(s.separators) {
		head, rest := cutRunes(text, s.size)
		s.out = append(s.out, strings.TrimSpace(head))
		if strings.TrimSpace(rest) != "" {
			s.split(rest, level)
		}
		return
	}

	sep := s.separators[level]
	var buf string
	for _, part := range strings.Split(text, sep) {
		candidate := part
		if buf != "" {
			candidate = buf + sep + part
		}
		candidate = strings.TrimSpace(candidate)
		if runeLen(candidate) <= s.size {
			buf = candidate
			continue
		}
		if buf != "" {
			s.split(buf, level+1)
		}
		buf = strings.TrimSpace(part)
	}
	if buf != "" {
		s.split(buf, level+1)
	}
}

// stitchOverlap prepends the tail of each original chunk to its successor.
func stitchOverlap(chunks []string, overlap int) []string {
	stitched := make([]string, len(chunks))
	stitched[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		tail := lastRunes(chunks[i-1], overlap)
		stitched[i] = strings.TrimSpace(tail + "\n" + chunks[i])
	}
	return stitched
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// cutRunes splits s after the first n runes.
func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

// lastRunes returns the final n runes of s, or s if it is shorter.
func lastRunes(s string, n int) string {
	count := runeLen(s)
	if count <= n {
		return s
	}
	_, tail := cutRunes(s, count-n)
	return tail
}
