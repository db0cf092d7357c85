package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/docmirror/docmirror/services/docstore"
)

// DOCX files are ZIP archives; the document body lives in word/document.xml
// as paragraphs of text runs.

type wordDocumentXML struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func extractWord(path string) (docstore.Content, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return docstore.Content{}, fmt.Errorf("failed to open document: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return docstore.Content{}, fmt.Errorf("failed to open document body: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return docstore.Content{}, fmt.Errorf("failed to read document body: %w", err)
		}

		var document wordDocumentXML
		if err := xml.Unmarshal(data, &document); err != nil {
			return docstore.Content{}, fmt.Errorf("failed to parse document body: %w", err)
		}

		return docstore.Content{Kind: docstore.KindWord, Text: wordText(document)}, nil
	}

	return docstore.Content{}, fmt.Errorf("document body not found")
}

func wordText(document wordDocumentXML) string {
	var b strings.Builder
	for i, paragraph := range document.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range paragraph.Runs {
			for _, text := range run.Text {
				b.WriteString(text.Content)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
