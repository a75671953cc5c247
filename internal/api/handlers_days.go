package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/metrics"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/ons"
	"github.com/lox/gendash/internal/report"
	"github.com/lox/gendash/internal/slots"
	"github.com/lox/gendash/internal/store"
)

const maxUploadBytes = 4 << 20

// IntervalInput is one row of a PUT body.
type IntervalInput struct {
	Time      string   `json:"time"`
	Scheduled *float64 `json:"scheduled"`
	Actual    *float64 `json:"actual"`
}

type intervalsResponse struct {
	Date      string            `json:"date"`
	Intervals []IntervalJSON    `json:"intervals"`
	Issues    []ingest.RowIssue `json:"issues,omitempty"`
}

func (s *Server) dateParam(r *http.Request) (time.Time, error) {
	raw := r.PathValue("date")
	date, err := s.store.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", errBadRequest, raw)
	}
	return date, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleIntervalTemplate(w http.ResponseWriter, r *http.Request) {
	rows := models.NewDayIntervals(slots.DayTemplate())
	writeJSON(w, http.StatusOK, map[string]any{"intervals": toIntervalJSON(rows)})
}

func (s *Server) handleGetIntervals(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.store.GetIntervals(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intervalsResponse{Date: date.Format(models.DateLayout), Intervals: toIntervalJSON(rows)})
}

// dayChanged records a write to the intervals of date and drops its cached
// heatmap.
func (s *Server) dayChanged(date time.Time, op string) {
	metrics.IntervalSaves.WithLabelValues(op).Inc()
	s.heatmaps.Invalidate(date.Format(models.DateLayout))
}

// handleReplaceIntervals overwrites the whole day with the body rows.
func (s *Server) handleReplaceIntervals(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input []IntervalInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	rows := make([]models.Interval, 0, len(input))
	for _, in := range input {
		rows = append(rows, models.Interval{
			Time:      strings.TrimSpace(in.Time),
			Scheduled: nullFloat(in.Scheduled),
			Actual:    nullFloat(in.Actual),
			Source:    models.SourceManual,
		})
	}
	issues := ingest.ValidateIntervals(rows)
	if err := ingest.BlockingError(issues); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "issues": issues})
		return
	}

	saved, err := s.store.ReplaceIntervals(date, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dayChanged(date, "replace")
	writeJSON(w, http.StatusOK, intervalsResponse{
		Date:      date.Format(models.DateLayout),
		Intervals: toIntervalJSON(saved),
		Issues:    issues,
	})
}

func (s *Server) handleDeleteIntervals(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.DeleteIntervals(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dayChanged(date, "delete")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handlePatchInterval edits one row. A key set to null clears the value; a
// missing key leaves it untouched.
func (s *Server) handlePatchInterval(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	label := r.PathValue("time")
	if _, _, err := slots.Parse(label); err != nil {
		writeError(w, r, err)
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var patch store.IntervalPatch
	if raw, ok := body["scheduled"]; ok {
		patch.SetScheduled = true
		if patch.Scheduled, err = rawNullFloat(raw); err != nil {
			writeError(w, r, fmt.Errorf("%w: scheduled: %v", errBadRequest, err))
			return
		}
	}
	if raw, ok := body["actual"]; ok {
		patch.SetActual = true
		if patch.Actual, err = rawNullFloat(raw); err != nil {
			writeError(w, r, fmt.Errorf("%w: actual: %v", errBadRequest, err))
			return
		}
	}
	if !patch.SetScheduled && !patch.SetActual {
		writeError(w, r, fmt.Errorf("%w: nothing to update", errBadRequest))
		return
	}

	iv, err := s.store.SetIntervalValues(date, label, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dayChanged(date, "patch")
	writeJSON(w, http.StatusOK, toIntervalJSON([]models.Interval{*iv})[0])
}

func (s *Server) handleExportIntervals(f ingest.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := s.dateParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rows, err := s.store.GetIntervals(date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := ingest.WriteIntervals(&buf, f, rows); err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, f, "intervals-"+date.Format(models.DateLayout), buf.Bytes())
	}
}

func (s *Server) handleImportIntervals(f ingest.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := s.dateParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body, name, err := uploadedFile(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer body.Close()

		rows, issues, err := s.importer.ImportFile(date, body, name, f)
		if err != nil {
			if statusFor(err) == http.StatusBadRequest {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "issues": issues})
				return
			}
			writeError(w, r, err)
			return
		}
		s.dayChanged(date, f.Ext())
		writeJSON(w, http.StatusOK, intervalsResponse{
			Date:      date.Format(models.DateLayout),
			Intervals: toIntervalJSON(rows),
			Issues:    issues,
		})
	}
}

// writeAttachment sends data as a download named base plus the format's
// extension.
func writeAttachment(w http.ResponseWriter, f ingest.Format, base string, data []byte) {
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, base, f.Ext()))
	w.Write(data)
}

// assessDay builds the per-row assessment, heatmap and summary of a date.
func (s *Server) assessDay(date time.Time) (*DayReport, *compliance.DaySummary, error) {
	intervals, err := s.store.GetIntervals(date)
	if err != nil {
		return nil, nil, err
	}
	rows, err := report.Assess(intervals)
	if err != nil {
		return nil, nil, err
	}
	sum, err := compliance.Summarize(intervals)
	if err != nil {
		return nil, nil, err
	}
	cells := report.Heatmap(rows)
	if cells == nil {
		cells = []report.HeatmapCell{}
	}
	return &DayReport{
		Date:    date.Format(models.DateLayout),
		Rows:    rows,
		Heatmap: cells,
		Summary: toSummaryJSON(sum),
	}, sum, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, _, err := s.assessDay(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleHeatmapImage(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, _, err := s.assessDay(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.heatmaps.Render(day.Date, day.Heatmap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// handleImportONS pulls the proposed schedule for the date. All-zero responses
// mean the operator has not published yet and answer 409.
func (s *Server) handleImportONS(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.importer.ImportONS(r.Context(), date)
	switch {
	case errors.Is(err, ons.ErrNoDataYet):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     "ONS schedule not yet available for " + date.Format(models.DateLayout),
			ErrorType: "no_data_yet",
		})
	case errors.Is(err, ons.ErrNoCredentials):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), ErrorType: "not_configured"})
	case err != nil:
		log.Printf("api: import %s: %v", date.Format(models.DateLayout), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), ErrorType: "upstream"})
	default:
		s.dayChanged(date, "ons")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "records": n})
	}
}

// uploadedFile returns the request's file, either the "file" part of a
// multipart form or the raw body.
func uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return f, hdr.Filename, nil
	}
	return r.Body, "upload.csv", nil
}

func rawNullFloat(raw json.RawMessage) (v sql.NullFloat64, err error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return v, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return v, err
	}
	v.Float64, v.Valid = f, true
	return v, nil
}
