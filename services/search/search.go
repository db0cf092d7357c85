package search

import (
	"strings"
	"unicode/utf8"

	"github.com/docmirror/docmirror/db/indexdb"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
)

const (
	snippetLeadingContext  = 80
	snippetTrailingContext = 160
	snippetHeadLength      = 200
)

type Result struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	ViewLink string `json:"view_link"`
	Snippet  string `json:"snippet"`
}

// Service resolves queries against the inverted index, with a substring
// fallback when no posting set matches. Results follow document-store order;
// there is no relevance ranking. Index entries whose document is not in the
// store (a reloaded index before the first sync) are silently skipped.
type Service struct {
	logger logger.Logger
	docs   *docstore.Store
	index  *indexdb.Store
}

func New(logger logger.Logger, docs *docstore.Store, index *indexdb.Store) *Service {
	return &Service{
		logger: logger,
		docs:   docs,
		index:  index,
	}
}

func (s *Service) Search(query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Result{}
	}

	tokens := queryTokens(q)

	matched := make(map[string]struct{})
	idx := s.index.Current()
	for _, token := range tokens {
		for id := range idx.Postings(token) {
			matched[id] = struct{}{}
		}
	}

	documents := s.docs.All()

	var base []docstore.Document
	if len(matched) > 0 {
		for _, doc := range documents {
			if _, ok := matched[doc.ID]; ok {
				base = append(base, doc)
			}
		}
	} else {
		base = substringFallback(documents, tokens)
	}

	results := make([]Result, 0, len(base))
	for _, doc := range base {
		results = append(results, Result{
			ID:       doc.ID,
			Name:     doc.Name,
			MimeType: doc.MimeType,
			ViewLink: doc.ViewLink,
			Snippet:  snippet(doc.Content.Text, q),
		})
	}

	return results
}

// substringFallback matches documents whose normalized name or text contains
// any query token. It covers tokens absent from the index, including those
// below the index lookup length cutoff.
func substringFallback(documents []docstore.Document, tokens []string) []docstore.Document {
	var base []docstore.Document
	for _, doc := range documents {
		nameNorm := normalize(doc.Name)
		textNorm := ""
		if doc.Content.Text != "" {
			textNorm = normalize(doc.Content.Text)
		}
		for _, token := range tokens {
			if strings.Contains(nameNorm, token) || (textNorm != "" && strings.Contains(textNorm, token)) {
				base = append(base, doc)
				break
			}
		}
	}
	return base
}

// snippet surrounds the first case-insensitive occurrence of the raw query
// with context, or falls back to the head of the text.
func snippet(text string, loweredQuery string) string {
	if text == "" {
		return ""
	}

	idx := strings.Index(strings.ToLower(text), loweredQuery)
	if idx != -1 {
		start := runeBoundaryBefore(text, max(0, idx-snippetLeadingContext))
		end := runeBoundaryBefore(text, min(len(text), idx+snippetTrailingContext))
		return "..." + text[start:end] + "..."
	}

	if len(text) <= snippetHeadLength {
		return text
	}
	return text[:runeBoundaryBefore(text, snippetHeadLength)] + "..."
}

// runeBoundaryBefore moves a byte offset left until it does not split a
// multi-byte rune.
func runeBoundaryBefore(s string, offset int) int {
	for offset > 0 && offset < len(s) && !utf8.RuneStart(s[offset]) {
		offset--
	}
	return offset
}
