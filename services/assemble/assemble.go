package assemble

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/search"
)

const (
	DefaultMaxDocs = 4

	contextTableRows = 6
	uiTableRows      = 8
	maxTextChunk     = 1500

	noContextPlaceholder = "(no context available)"
)

type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
	Type string `json:"type"`
}

type Result struct {
	Chunks  []string       `json:"chunks"`
	Context string         `json:"context"`
	Sources []Source       `json:"sources"`
	Table   []docstore.Row `json:"table,omitempty"`
}

// Searcher is the read side of the search engine the assembler consumes.
type Searcher interface {
	Search(query string) []search.Result
}

// Service renders bounded context chunks for a generation step. Spreadsheets
// become small pipe-delimited tables while text content is truncated. The
// first spreadsheet match additionally yields a structured table payload for
// UI rendering. The top chunk is usable as a last-resort answer when no
// generation collaborator is configured.
type Service struct {
	logger   logger.Logger
	searcher Searcher
	docs     *docstore.Store
}

func New(logger logger.Logger, searcher Searcher, docs *docstore.Store) *Service {
	return &Service{
		logger:   logger,
		searcher: searcher,
		docs:     docs,
	}
}

func (s *Service) Assemble(query string, maxDocs int) Result {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}

	hits := s.searcher.Search(query)
	if len(hits) > maxDocs {
		hits = hits[:maxDocs]
	}

	result := Result{}
	for _, hit := range hits {
		doc, ok := s.docs.Get(hit.ID)
		if !ok {
			result.Chunks = append(result.Chunks, fmt.Sprintf("Document: %s\n%s", hit.Name, hit.Snippet))
			continue
		}

		var body string
		if doc.Content.Kind == docstore.KindSpreadsheet {
			body = renderSheetTable(doc.Content)
			if result.Table == nil {
				result.Table = uiTable(doc.Content)
			}
		} else {
			body = truncate(doc.Content.Text, maxTextChunk)
		}

		result.Sources = append(result.Sources, Source{
			ID:   doc.ID,
			Name: doc.Name,
			Link: doc.ViewLink,
			Type: string(doc.Content.Kind),
		})
		result.Chunks = append(result.Chunks, fmt.Sprintf("Document: %s\nType: %s\nContent:\n%s", doc.Name, doc.Content.Kind, body))
	}

	if len(result.Chunks) == 0 {
		result.Context = noContextPlaceholder
		return result
	}

	result.Context = fmt.Sprintf("Retrieved context (max %d documents):\n\n%s", maxDocs, strings.Join(result.Chunks, "\n\n---\n\n"))
	return result
}

// renderSheetTable renders the first sheet's leading rows as a pipe-delimited
// text table. Newlines inside cells are flattened so each record stays on
// one line.
func renderSheetTable(content docstore.Content) string {
	name, sheet, ok := content.FirstSheet()
	if !ok {
		return ""
	}

	lines := []string{
		fmt.Sprintf("Sheet: %s", name),
		strings.Join(sheet.Headers, " | "),
	}

	rows := sheet.Rows
	if len(rows) > contextTableRows {
		rows = rows[:contextTableRows]
	}
	for _, row := range rows {
		cells := make([]string, 0, len(sheet.Headers))
		for _, header := range sheet.Headers {
			cells = append(cells, strings.ReplaceAll(row[header], "\n", " "))
		}
		lines = append(lines, strings.Join(cells, " | "))
	}

	return strings.Join(lines, "\n")
}

func uiTable(content docstore.Content) []docstore.Row {
	_, sheet, ok := content.FirstSheet()
	if !ok {
		return nil
	}

	rows := sheet.Rows
	if len(rows) > uiTableRows {
		rows = rows[:uiTableRows]
	}
	return rows
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
