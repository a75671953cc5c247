package ingest

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lox/gendash/internal/models"
)

// ErrMalformedFile wraps every row-level problem found while reading an upload.
var ErrMalformedFile = errors.New("malformed file")

var intervalColumns = map[string]string{
	"hora":      "time",
	"time":      "time",
	"pdp":       "scheduled",
	"scheduled": "scheduled",
	"geracao":   "actual",
	"geração":   "actual",
	"actual":    "actual",
}

var controlColumns = map[string]string{
	"hora":        "time",
	"time":        "time",
	"setpoint":    "setpoint",
	"set-point":   "setpoint",
	"set_point":   "setpoint",
	"responsavel": "responsible",
	"responsável": "responsible",
	"responsible": "responsible",
	"detalhe":     "detail",
	"detail":      "detail",
}

// ReadIntervals parses an hora,pdp,geracao sheet. Rows without a time are
// dropped and empty cells are absent values. CSV files may be "," or ";"
// separated; workbooks are read from their first sheet.
func ReadIntervals(r io.Reader, f Format) ([]models.Interval, error) {
	raw, err := readRecords(r, f)
	if err != nil {
		return nil, err
	}
	records, cols, err := columns(raw, intervalColumns)
	if err != nil {
		return nil, err
	}

	var rows []models.Interval
	for i, rec := range records {
		line := i + 2
		label := cell(rec, cols, "time")
		if label == "" {
			continue
		}
		scheduled, err := parseNumber(cell(rec, cols, "scheduled"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: pdp: %v", ErrMalformedFile, line, err)
		}
		actual, err := parseNumber(cell(rec, cols, "actual"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: geracao: %v", ErrMalformedFile, line, err)
		}
		rows = append(rows, models.Interval{
			Time:      normalizeLabel(label),
			Scheduled: scheduled,
			Actual:    actual,
			Status:    models.StatusNew,
			Source:    f.Source(),
		})
	}
	return rows, nil
}

// WriteIntervals writes rows with the same header ReadIntervals accepts.
// Absent values are written as empty cells.
func WriteIntervals(w io.Writer, f Format, rows []models.Interval) error {
	t := table{name: "Intervals", header: []string{"hora", "pdp", "geracao"}}
	for _, iv := range rows {
		t.rows = append(t.rows, []any{iv.Time, nullable(iv.Scheduled), nullable(iv.Actual)})
	}
	return writeTable(w, f, t)
}

// ReadControls parses a set-point log. Unknown responsible parties fall back
// to ONS and an empty set-point is zero.
func ReadControls(r io.Reader, f Format) ([]models.ControlEvent, error) {
	raw, err := readRecords(r, f)
	if err != nil {
		return nil, err
	}
	records, cols, err := columns(raw, controlColumns)
	if err != nil {
		return nil, err
	}

	var events []models.ControlEvent
	for i, rec := range records {
		line := i + 2
		label := cell(rec, cols, "time")
		if label == "" {
			continue
		}
		setpoint := int64(0)
		if v := cell(rec, cols, "setpoint"); v != "" {
			setpoint, err = models.ParseSetpoint(strings.Replace(v, ",", ".", 1))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedFile, line, err)
			}
		}
		ev := models.ControlEvent{
			Time:        normalizeLabel(label),
			Setpoint:    setpoint,
			Responsible: models.CoerceResponsible(cell(rec, cols, "responsible")),
		}
		if d := cell(rec, cols, "detail"); d != "" {
			ev.Detail = sql.NullString{String: d, Valid: true}
		}
		events = append(events, ev)
	}
	return events, nil
}

// WriteControls exports a set-point log in the order given.
func WriteControls(w io.Writer, f Format, events []models.ControlEvent) error {
	t := table{name: "Controls", header: []string{"hora", "setpoint", "responsavel", "detalhe", "registrado_em"}}
	for _, ev := range events {
		t.rows = append(t.rows, []any{
			ev.Time,
			ev.Setpoint,
			string(ev.Responsible),
			ev.Detail.String,
			ev.CreatedAt.UTC().Format(timestampLayout),
		})
	}
	return writeTable(w, f, t)
}

// WriteObservations exports the observation log with each note's snapshot
// of the interval values.
func WriteObservations(w io.Writer, f Format, obs []models.Observation) error {
	t := table{name: "Observations", header: []string{"hora", "pdp", "geracao", "desvio", "observacao", "registrado_em"}}
	for _, o := range obs {
		t.rows = append(t.rows, []any{
			o.Time,
			nullable(o.Scheduled),
			nullable(o.Actual),
			nullable(o.Deviation),
			o.Note,
			o.CreatedAt.UTC().Format(timestampLayout),
		})
	}
	return writeTable(w, f, t)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffSeparator(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	return records, nil
}

func writeCSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	rec := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sniffSeparator(data []byte) rune {
	first, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func cell(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseNumber reads a decimal that may use a comma separator. Empty is absent.
func parseNumber(s string) (sql.NullFloat64, error) {
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("not a number: %q", s)
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// normalizeLabel pads spreadsheet times such as "0:30" or "00:30:00" to HH:MM.
// Anything else is returned unchanged for validation to flag.
func normalizeLabel(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) == 3 && parts[2] == "00" {
		parts = parts[:2]
	}
	if len(parts) != 2 || len(parts[1]) != 2 {
		return s
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	return parts[0] + ":" + parts[1]
}
