package docstore

// Kind discriminates the content variants a document can carry. The string
// values surface in API responses and context chunks.
type Kind string

const (
	KindSpreadsheet Kind = "excel"
	KindPDF         Kind = "pdf"
	KindWord        Kind = "word"
	KindText        Kind = "text"
	KindUnsupported Kind = "unknown"
	KindError       Kind = "error"
)

type Row map[string]string

// Sheet keeps the header order alongside the rows so tabular excerpts render
// columns in their original order. Missing cells are present with an empty
// value, not omitted.
type Sheet struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Content is a closed tagged variant: exactly one of the payload fields is
// meaningful for a given Kind. Spreadsheets carry Sheets, the text kinds
// (pdf, word, text) carry Text, unsupported and error carry nothing.
type Content struct {
	Kind       Kind             `json:"kind"`
	SheetOrder []string         `json:"sheet_order,omitempty"`
	Sheets     map[string]Sheet `json:"sheets,omitempty"`
	Text       string           `json:"text,omitempty"`
}

// HasText reports whether the content carries indexable text.
func (c Content) HasText() bool {
	switch c.Kind {
	case KindPDF, KindWord, KindText:
		return c.Text != ""
	}
	return false
}

// FirstSheet returns the first sheet in workbook order.
func (c Content) FirstSheet() (string, Sheet, bool) {
	if c.Kind != KindSpreadsheet || len(c.SheetOrder) == 0 {
		return "", Sheet{}, false
	}
	name := c.SheetOrder[0]
	sheet, ok := c.Sheets[name]
	return name, sheet, ok
}

type Document struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MimeType     string  `json:"mime_type"`
	ModifiedTime string  `json:"modified_time"`
	ViewLink     string  `json:"view_link"`
	Content      Content `json:"content"`
}
