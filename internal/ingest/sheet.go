package ingest

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/lox/gendash/internal/models"
)

// Format is the file type of an upload or export.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
)

const timestampLayout = "2006-01-02T15:04:05Z"

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Source tags intervals and import runs read from a file of this format.
func (f Format) Source() string {
	if f == FormatXLSX {
		return models.SourceXLSX
	}
	return models.SourceCSV
}

// table is one sheet ready to be written. Cells are string, float64, int64
// or nil for an empty cell.
type table struct {
	name   string
	header []string
	rows   [][]any
}

func writeTable(w io.Writer, f Format, t table) error {
	if f == FormatXLSX {
		return writeXLSX(w, t)
	}
	return writeCSV(w, t)
}

func readRecords(r io.Reader, f Format) ([][]string, error) {
	if f == FormatXLSX {
		return readXLSX(r)
	}
	return readCSV(r)
}

// columns maps the header row through aliases and returns the data rows with
// the index of every recognised column. A time column is required.
func columns(records [][]string, aliases map[string]string) ([][]string, map[string]int, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrMalformedFile)
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		if name, ok := aliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, seen := cols[name]; !seen {
				cols[name] = i
			}
		}
	}
	if _, ok := cols["time"]; !ok {
		return nil, nil, fmt.Errorf("%w: missing hora column", ErrMalformedFile)
	}
	return records[1:], cols, nil
}

func nullable(v sql.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}
