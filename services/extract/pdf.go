package extract

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/docmirror/docmirror/services/docstore"
)

// PDF extraction is best effort: content streams are located, inflated when
// flate-compressed, and scanned for text-showing operators. Anything the
// scanner cannot make sense of contributes nothing; a wholly unreadable file
// yields empty text rather than an error.

var (
	pdfTextShowRegexp  = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*(?:Tj|')`)
	pdfTextArrayRegexp = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	pdfLiteralRegexp   = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
)

func extractPDF(path string) (docstore.Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return docstore.Content{}, err
	}

	return docstore.Content{Kind: docstore.KindPDF, Text: pdfText(data)}, nil
}

func pdfText(data []byte) string {
	var parts []string
	for _, stream := range pdfStreams(data) {
		text := textFromContentStream(stream)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// pdfStreams returns the decoded bytes of every stream object in the file.
func pdfStreams(data []byte) [][]byte {
	var streams [][]byte
	rest := data
	for {
		start := bytes.Index(rest, []byte("stream"))
		if start == -1 {
			break
		}

		dictStart := bytes.LastIndex(rest[:start], []byte("<<"))
		var dict []byte
		if dictStart != -1 {
			dict = rest[dictStart:start]
		}

		body := rest[start+len("stream"):]
		if len(body) > 0 && body[0] == '\r' {
			body = body[1:]
		}
		if len(body) > 0 && body[0] == '\n' {
			body = body[1:]
		}

		end := bytes.Index(body, []byte("endstream"))
		if end == -1 {
			break
		}

		content := body[:end]
		if bytes.Contains(dict, []byte("FlateDecode")) {
			if inflated, err := inflate(content); err == nil {
				content = inflated
			} else {
				content = nil
			}
		}
		if len(content) > 0 {
			streams = append(streams, content)
		}

		rest = body[end+len("endstream"):]
	}
	return streams
}

func inflate(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func textFromContentStream(content []byte) string {
	var parts []string

	for _, match := range pdfTextShowRegexp.FindAllSubmatch(content, -1) {
		if text := unescapePDFString(string(match[1])); text != "" {
			parts = append(parts, text)
		}
	}

	for _, match := range pdfTextArrayRegexp.FindAllSubmatch(content, -1) {
		var segments []string
		for _, literal := range pdfLiteralRegexp.FindAllSubmatch(match[1], -1) {
			segments = append(segments, unescapePDFString(string(literal[1])))
		}
		if joined := strings.Join(segments, ""); joined != "" {
			parts = append(parts, joined)
		}
	}

	return strings.Join(parts, " ")
}

func unescapePDFString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := i
			for end < len(s) && end < i+3 && s[end] >= '0' && s[end] <= '7' {
				end++
			}
			if code, err := strconv.ParseUint(s[i:end], 8, 16); err == nil && code < 256 {
				b.WriteByte(byte(code))
			}
			i = end - 1
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
