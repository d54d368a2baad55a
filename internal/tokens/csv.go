package tokens

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\uFEFF"

// ParseCSV parses CSV text into rows. It strips a leading byte order mark,
// accepts CR, LF and CRLF line endings and tolerates ragged rows.
func ParseCSV(text string) ([][]string, error) {
	text = strings.TrimPrefix(text, utf8BOM)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ReadCSV reads all of r and parses it with ParseCSV.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return ParseCSV(string(data))
}

// Field returns row[idx] trimmed, or "" when the index is out of range.
func Field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
