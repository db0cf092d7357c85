package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docmirror/docmirror/services/docstore"
)

// XLSX workbooks are ZIP archives of XML parts. The parts needed to recover
// sheet rows are the workbook (sheet names and relationship ids), the
// workbook relationships (relationship id -> worksheet part), the shared
// string table, and the worksheet parts themselves.

type workbookXML struct {
	Sheets struct {
		Sheets []struct {
			Name  string `xml:"name,attr"`
			RelID string `xml:"id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type sharedStringsXML struct {
	Items []sharedStringItem `xml:"si"`
}

type sharedStringItem struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (s sharedStringItem) value() string {
	if len(s.Runs) == 0 {
		return s.Text
	}
	var b strings.Builder
	for _, run := range s.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type worksheetXML struct {
	SheetData struct {
		Rows []struct {
			Cells []cellXML `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

type cellXML struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		Text string `xml:"t"`
	} `xml:"is"`
}

func extractSpreadsheet(path string) (docstore.Content, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return docstore.Content{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer reader.Close()

	var workbook workbookXML
	if err := unmarshalZipPart(&reader.Reader, "xl/workbook.xml", &workbook); err != nil {
		return docstore.Content{}, err
	}

	var rels relationshipsXML
	if err := unmarshalZipPart(&reader.Reader, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return docstore.Content{}, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		targets[rel.ID] = rel.Target
	}

	shared := readSharedStrings(&reader.Reader)

	content := docstore.Content{
		Kind:   docstore.KindSpreadsheet,
		Sheets: make(map[string]docstore.Sheet),
	}
	for _, sheetRef := range workbook.Sheets.Sheets {
		target, ok := targets[sheetRef.RelID]
		if !ok {
			continue
		}
		var worksheet worksheetXML
		if err := unmarshalZipPart(&reader.Reader, worksheetPartName(target), &worksheet); err != nil {
			return docstore.Content{}, err
		}
		content.SheetOrder = append(content.SheetOrder, sheetRef.Name)
		content.Sheets[sheetRef.Name] = sheetFromWorksheet(worksheet, shared)
	}

	return content, nil
}

func unmarshalZipPart(reader *zip.Reader, name string, v any) error {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open workbook part %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read workbook part %s: %w", name, err)
		}
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse workbook part %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("workbook part %s not found", name)
}

func readSharedStrings(reader *zip.Reader) []string {
	var sst sharedStringsXML
	// The shared string table is optional.
	if err := unmarshalZipPart(reader, "xl/sharedStrings.xml", &sst); err != nil {
		return nil
	}
	values := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		values[i] = item.value()
	}
	return values
}

func worksheetPartName(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return "xl/" + target
}

// sheetFromWorksheet treats the first row as the header row and maps every
// following row to header -> cell value. Cells missing from a row are kept
// as empty values so all rows share the header's shape.
func sheetFromWorksheet(worksheet worksheetXML, shared []string) docstore.Sheet {
	sheet := docstore.Sheet{}
	rows := worksheet.SheetData.Rows
	if len(rows) == 0 {
		return sheet
	}

	headerByColumn := make(map[int]string)
	for i, cell := range rows[0].Cells {
		column := columnIndex(cell.Ref, i)
		header := cellValue(cell, shared)
		if header == "" {
			header = columnName(column)
		}
		headerByColumn[column] = header
		sheet.Headers = append(sheet.Headers, header)
	}

	for _, row := range rows[1:] {
		record := make(docstore.Row, len(sheet.Headers))
		for _, header := range sheet.Headers {
			record[header] = ""
		}
		for i, cell := range row.Cells {
			column := columnIndex(cell.Ref, i)
			header, ok := headerByColumn[column]
			if !ok {
				continue
			}
			record[header] = cellValue(cell, shared)
		}
		sheet.Rows = append(sheet.Rows, record)
	}

	return sheet
}

func cellValue(cell cellXML, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(cell.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return cell.Inline.Text
	case "b":
		if strings.TrimSpace(cell.Value) == "1" {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(cell.Value)
	}
}

// columnIndex decodes the column from an A1-style cell reference, falling
// back to the cell's position in the row when the reference is absent.
func columnIndex(ref string, fallback int) int {
	column := 0
	seen := false
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			column = column*26 + int(r-'A') + 1
			seen = true
			continue
		}
		break
	}
	if !seen {
		return fallback
	}
	return column - 1
}

func columnName(index int) string {
	name := ""
	index++
	for index > 0 {
		index--
		name = string(rune('A'+index%26)) + name
		index /= 26
	}
	return name
}
