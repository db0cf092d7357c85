package index

import (
	"strings"
	"unicode"
)

// tokenize splits text into maximal runs of letters and digits, case-folded.
// Accented letters are kept as-is at build time; stripping diacritics is a
// query-time concern.
func tokenize(text string) []string {
	lower := strings.ToLower(text)

	var tokens []string
	start := -1
	for i, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			tokens = append(tokens, lower[start:i])
			start = -1
		}
	}
	if start != -1 {
		tokens = append(tokens, lower[start:])
	}

	return tokens
}
