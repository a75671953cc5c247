package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/report"
	"github.com/lox/gendash/internal/slots"
)

type observationInput struct {
	Time string `json:"time"`
	Note string `json:"note"`
}

func (s *Server) handleGetObservations(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obs, err := s.store.GetObservations(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ObservationJSON, 0, len(obs))
	for _, o := range obs {
		out = append(out, toObservationJSON(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"observations": out})
}

func (s *Server) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in observationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	label := strings.TrimSpace(in.Time)
	if _, _, err := slots.Parse(label); err != nil {
		writeError(w, r, err)
		return
	}

	obs, err := s.store.InsertObservation(date, label, in.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toObservationJSON(*obs))
}

func (s *Server) handleDeleteObservations(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.DeleteObservations(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleUpdateObservation changes the note text. The value snapshot is kept.
func (s *Server) handleUpdateObservation(w http.ResponseWriter, r *http.Request) {
	var in observationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	obs, err := s.store.UpdateObservationNote(r.PathValue("id"), in.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObservationJSON(*obs))
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteObservation(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// controlInput accepts the set-point as a JSON number or a numeric string.
type controlInput struct {
	Time        string      `json:"time"`
	Setpoint    json.Number `json:"setpoint"`
	Responsible string      `json:"responsible"`
	Detail      *string     `json:"detail"`
}

func (in controlInput) event() (models.ControlEvent, error) {
	label := strings.TrimSpace(in.Time)
	if _, _, err := slots.Parse(label); err != nil {
		return models.ControlEvent{}, err
	}
	setpoint, err := models.ParseSetpoint(in.Setpoint.String())
	if err != nil {
		return models.ControlEvent{}, err
	}
	responsible, err := models.ParseResponsible(in.Responsible)
	if err != nil {
		return models.ControlEvent{}, err
	}
	ev := models.ControlEvent{Time: label, Setpoint: setpoint, Responsible: responsible}
	if in.Detail != nil && strings.TrimSpace(*in.Detail) != "" {
		ev.Detail = sql.NullString{String: strings.TrimSpace(*in.Detail), Valid: true}
	}
	return ev, nil
}

func (s *Server) handleGetControls(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.store.GetControlEvents(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ControlJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, toControlJSON(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"controls": out})
}

func (s *Server) handleCreateControl(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in controlInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := in.event()
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.store.InsertControlEvent(date, ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toControlJSON(*saved))
}

func (s *Server) handleUpdateControl(w http.ResponseWriter, r *http.Request) {
	var in controlInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := in.event()
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev.ID = r.PathValue("id")
	saved, err := s.store.UpdateControlEvent(ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toControlJSON(*saved))
}

func (s *Server) handleDeleteControl(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteControlEvent(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteControls(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.DeleteControlEvents(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleImportControls appends every event of the uploaded file.
func (s *Server) handleImportControls(f ingest.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := s.dateParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body, _, err := uploadedFile(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer body.Close()

		events, err := ingest.ReadControls(body, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for i, ev := range events {
			if _, _, err := slots.Parse(ev.Time); err != nil {
				writeError(w, r, fmt.Errorf("%w: row %d: %v", ingest.ErrMalformedFile, i+1, err))
				return
			}
		}

		out := make([]ControlJSON, 0, len(events))
		for _, ev := range events {
			saved, err := s.store.InsertControlEvent(date, ev)
			if err != nil {
				writeError(w, r, err)
				return
			}
			out = append(out, toControlJSON(*saved))
		}
		writeJSON(w, http.StatusOK, map[string]any{"imported": len(out), "controls": out})
	}
}

func (s *Server) handleExportControls(f ingest.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := s.dateParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		events, err := s.store.GetControlEvents(date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		// stored newest first; files list oldest first
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
		var buf bytes.Buffer
		if err := ingest.WriteControls(&buf, f, events); err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, f, "controls-"+date.Format(models.DateLayout), buf.Bytes())
	}
}

// handleExportObservations downloads the observation log ordered by
// interval time.
func (s *Server) handleExportObservations(f ingest.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := s.dateParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		obs, err := s.store.GetObservations(date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := ingest.WriteObservations(&buf, f, report.SortObservations(obs)); err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, f, "observations-"+date.Format(models.DateLayout), buf.Bytes())
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.store.GetControlEvents(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tl := report.Timeline(events)
	out := make([]TimelineJSON, 0, len(tl))
	for _, t := range tl {
		out = append(out, TimelineJSON{
			Time:        t.Event.Time,
			Setpoint:    t.Event.Setpoint,
			Responsible: t.Event.Responsible,
			Percent:     t.Percent,
			Offset:      t.Offset,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": out})
}
