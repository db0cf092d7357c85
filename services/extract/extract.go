package extract

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
)

// Service converts a downloaded or exported file into a normalized Content
// record. Extraction never fails the caller: any internal error degrades to
// an error-kind content so one bad file cannot abort a sync pass.
type Service struct {
	logger logger.Logger
	rules  []rule
}

type rule struct {
	matches func(mimeType string, name string) bool
	extract func(path string) (docstore.Content, error)
}

func New(logger logger.Logger) *Service {
	s := &Service{logger: logger}

	// Evaluated top to bottom, first match wins.
	s.rules = []rule{
		{matches: isSpreadsheet, extract: extractSpreadsheet},
		{matches: isPDF, extract: extractPDF},
		{matches: isWord, extract: extractWord},
		{matches: isPlainText, extract: extractPlainText},
	}

	return s
}

func (s *Service) Extract(path string, mimeType string, name string) (content docstore.Content) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("extraction panicked", "name", name, "recovered", r)
			content = docstore.Content{Kind: docstore.KindError}
		}
	}()

	for _, rule := range s.rules {
		if !rule.matches(mimeType, name) {
			continue
		}
		extracted, err := rule.extract(path)
		if err != nil {
			s.logger.Warn("extraction failed", "name", name, "mime_type", mimeType, "err", err.Error())
			return docstore.Content{Kind: docstore.KindError}
		}
		return extracted
	}

	return docstore.Content{Kind: docstore.KindUnsupported}
}

func isSpreadsheet(mimeType string, name string) bool {
	if strings.Contains(mimeType, "spreadsheet") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xls" || ext == ".xlsx"
}

func isPDF(mimeType string, name string) bool {
	return strings.Contains(mimeType, "pdf") || strings.HasSuffix(strings.ToLower(name), ".pdf")
}

func isWord(mimeType string, name string) bool {
	return strings.Contains(mimeType, "wordprocessingml") || strings.HasSuffix(strings.ToLower(name), ".docx")
}

func isPlainText(mimeType string, name string) bool {
	return strings.Contains(mimeType, "text") || strings.HasSuffix(strings.ToLower(name), ".txt")
}

func extractPlainText(path string) (docstore.Content, error) {
	text, err := readTextFile(path)
	if err != nil {
		return docstore.Content{}, err
	}
	return docstore.Content{Kind: docstore.KindText, Text: text}, nil
}

// readTextFile reads a file with a size cap so a huge text file cannot
// exhaust memory.
func readTextFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	const maxFileSize = 10 * 1024 * 1024

	limited := io.LimitReader(file, maxFileSize)
	content, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}

	return string(content), nil
}
