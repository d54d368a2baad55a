// Package export writes collection and trade data as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

// ErrNothingToExport is returned when there are no rows to write.
var ErrNothingToExport = errors.New("no data to export")

// Format represents the export format.
type Format string

const (
	// FormatCSV represents CSV export format.
	FormatCSV Format = "csv"
	// FormatJSON represents JSON export format.
	FormatJSON Format = "json"
)

// Options holds configuration for export operations.
type Options struct {
	Format     Format
	FilePath   string
	PrettyJSON bool
	Overwrite  bool
	QuoteAll   bool // CSV: quote every field, not only those that need it
	CRLF       bool // CSV: end rows with \r\n
}

// Exporter handles exporting data to various formats.
type Exporter struct {
	opts Options
}

// NewExporter creates a new Exporter with the given options.
func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Export writes data to the configured file.
// data can be a slice of structs or a single struct.
func (e *Exporter) Export(data interface{}) (err error) {
	file, err := e.createFile()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return e.ExportTo(file, data)
}

// ExportTo writes data to w.
func (e *Exporter) ExportTo(w io.Writer, data interface{}) error {
	switch e.opts.Format {
	case FormatCSV:
		return e.exportCSV(w, data)
	case FormatJSON:
		return e.exportJSON(w, data)
	default:
		return fmt.Errorf("unsupported export format: %s", e.opts.Format)
	}
}

// exportJSON exports data to JSON format.
func (e *Exporter) exportJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	if e.opts.PrettyJSON {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// exportCSV exports data to CSV format.
// data must be a non-empty slice of structs.
func (e *Exporter) exportCSV(w io.Writer, data interface{}) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("CSV export requires a slice, got %s", v.Kind())
	}

	if v.Len() == 0 {
		return ErrNothingToExport
	}

	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("CSV export requires a slice of structs")
	}

	records := make([][]string, 0, v.Len()+1)
	records = append(records, csvHeaders(elemType))
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		records = append(records, structToCSVRow(elem))
	}

	return e.writeRecords(w, records)
}

func (e *Exporter) writeRecords(w io.Writer, records [][]string) error {
	if !e.opts.QuoteAll {
		writer := csv.NewWriter(w)
		writer.UseCRLF = e.opts.CRLF
		if err := writer.WriteAll(records); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		return nil
	}

	eol := "\n"
	if e.opts.CRLF {
		eol = "\r\n"
	}
	var b strings.Builder
	for _, record := range records {
		for i, field := range record {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteString(eol)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// csvHeaders extracts field names from a struct type for CSV headers.
func csvHeaders(t reflect.Type) []string {
	var headers []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		// Use csv tag if available, otherwise use field name
		switch tag := field.Tag.Get("csv"); tag {
		case "-":
		case "":
			headers = append(headers, field.Name)
		default:
			headers = append(headers, tag)
		}
	}

	return headers
}

// structToCSVRow converts a struct to a CSV row (slice of strings).
func structToCSVRow(v reflect.Value) []string {
	var row []string

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields and fields tagged with csv:"-"
		if !field.IsExported() || field.Tag.Get("csv") == "-" {
			continue
		}

		row = append(row, valueToString(v.Field(i)))
	}

	return row
}

// valueToString converts a reflect.Value to its string representation for CSV.
// Nil pointers become empty cells.
func valueToString(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	case reflect.Struct:
		if v.Type() == reflect.TypeOf(time.Time{}) {
			t := v.Interface().(time.Time)
			return t.Format(time.RFC3339)
		}
		return fmt.Sprintf("%v", v.Interface())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// createFile creates the output file, handling overwrite settings.
func (e *Exporter) createFile() (*os.File, error) {
	if e.opts.FilePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	dir := filepath.Dir(e.opts.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(e.opts.FilePath); err == nil && !e.opts.Overwrite {
		return nil, fmt.Errorf("file already exists: %s (use overwrite option to replace)", e.opts.FilePath)
	}

	file, err := os.Create(e.opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return file, nil
}

// GenerateFilename generates a default filename such as
// collection-export-2025-01-02-15-04-05.csv.
func GenerateFilename(exportType string, format Format) string {
	timestamp := time.Now().Format("2006-01-02-15-04-05")
	return fmt.Sprintf("%s-%s.%s", exportType, timestamp, format)
}
