package indexer

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	lineEndings     = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Normalize canonicalizes extracted page text.
// Line endings become "\n", runs of spaces and tabs become a single space,
// three or more newlines collapse to a blank line, and the result is trimmed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = lineEndings.Replace(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
