package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and removes combining marks, so
// "producción" and "produccion" normalize to the same form.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize case-folds, strips diacritics, replaces every non-alphanumeric
// character with a space and collapses runs of whitespace.
func normalize(s string) string {
	lower := strings.ToLower(s)
	stripped, _, err := transform.String(stripDiacritics, lower)
	if err != nil {
		stripped = lower
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// queryTokens returns the normalized tokens of a query, discarding tokens
// shorter than three characters.
func queryTokens(query string) []string {
	var tokens []string
	for _, token := range strings.Fields(normalize(query)) {
		if len(token) > 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
