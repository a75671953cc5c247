package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lox/gendash/internal/api"
	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/ons"
	"github.com/lox/gendash/internal/store"

	_ "modernc.org/sqlite"
)

const day = "2025-03-10"

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc := time.UTC
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s, loc
}

type fakeFetcher struct {
	values []models.ScheduledValue
	err    error
}

func (f *fakeFetcher) FetchScheduled(ctx context.Context, date time.Time) ([]models.ScheduledValue, *ons.FetchResult, error) {
	if f.err != nil {
		return nil, &ons.FetchResult{HTTPStatus: 200}, f.err
	}
	return f.values, &ons.FetchResult{HTTPStatus: 200, RecordCount: len(f.values)}, nil
}

func newHandler(t *testing.T, s *store.Store, loc *time.Location, fetcher ingest.ScheduleFetcher) http.Handler {
	t.Helper()
	srv := api.NewServer(s, ingest.NewImporter(s, fetcher), "8080", loc)
	srv.SetAccessLog(false)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func reportDate(t *testing.T, s *store.Store) time.Time {
	t.Helper()
	d, err := s.ParseDate(day)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func val(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "GET", "/health", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	decode(t, w, &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Schema == 0 {
		t.Error("expected schema version")
	}
}

func TestSummary_EmptyDay(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "GET", "/api/days/"+day+"/summary", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"summary":null`) {
		t.Errorf("expected null summary, got %s", body)
	}
	if !strings.Contains(body, `"rows":[]`) {
		t.Errorf("expected empty rows, got %s", body)
	}
}

func TestSummary_WithData(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "PUT", "/api/days/"+day+"/intervals", `[
		{"time": "12:00", "scheduled": 1790, "actual": 993},
		{"time": "12:30", "scheduled": 1790, "actual": 1790},
		{"time": "13:00", "scheduled": 1790, "actual": null}
	]`)
	if w.Code != 200 {
		t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
	}

	w = do(h, "GET", "/api/days/"+day+"/summary", "")
	var got api.DayReport
	decode(t, w, &got)
	if got.Summary == nil {
		t.Fatal("expected summary")
	}
	if got.Summary.Count != 2 || got.Summary.CompliantCount != 1 {
		t.Errorf("count = %d/%d, want 1/2", got.Summary.CompliantCount, got.Summary.Count)
	}
	if got.Summary.MeanDeviation == nil || *got.Summary.MeanDeviation != -398.5 {
		t.Errorf("mean deviation = %v, want -398.5", got.Summary.MeanDeviation)
	}
	if len(got.Rows) != 3 || got.Rows[2].Grade != nil {
		t.Errorf("pending row should have no grade: %+v", got.Rows)
	}
	if len(got.Heatmap) != 2 {
		t.Errorf("heatmap cells = %d, want 2", len(got.Heatmap))
	}
}

func TestSummary_ActualWithoutSchedule(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "10:30", "actual": 500}]`)
	if w.Code != 200 {
		t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
	}

	w = do(h, "GET", "/api/days/"+day+"/summary", "")
	var got api.DayReport
	decode(t, w, &got)
	if got.Summary == nil {
		t.Fatalf("expected summary, got %s", w.Body.String())
	}
	if got.Summary.PeakTime != "10:30" || got.Summary.PeakActual != 500 {
		t.Errorf("peak = %s %v", got.Summary.PeakTime, got.Summary.PeakActual)
	}
	if got.Summary.MeanDeviation != nil || got.Summary.DeviationCount != 0 {
		t.Errorf("mean deviation = %v, want null", got.Summary.MeanDeviation)
	}
	if !strings.Contains(w.Body.String(), `"mean_scheduled":null`) {
		t.Errorf("period without schedule should have null means: %s", w.Body.String())
	}
}

func TestIntervals_PutAndGet(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "PUT", "/api/days/"+day+"/intervals", `[
		{"time": "00:30", "scheduled": 1200},
		{"time": "01:00", "scheduled": 1250, "actual": 1249.5}
	]`)
	if w.Code != 200 {
		t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
	}

	w = do(h, "GET", "/api/days/"+day+"/intervals", "")
	var got struct {
		Intervals []api.IntervalJSON `json:"intervals"`
	}
	decode(t, w, &got)
	if len(got.Intervals) != 2 {
		t.Fatalf("got %d intervals", len(got.Intervals))
	}
	if got.Intervals[0].Actual != nil {
		t.Error("absent actual should stay null")
	}
	if got.Intervals[1].Actual == nil || *got.Intervals[1].Actual != 1249.5 {
		t.Errorf("actual = %v", got.Intervals[1].Actual)
	}
	if got.Intervals[0].Status != models.StatusSaved {
		t.Errorf("status = %q, want saved", got.Intervals[0].Status)
	}

	// saving again overwrites the day
	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "02:00", "scheduled": 1}]`)
	w = do(h, "GET", "/api/days/"+day+"/intervals", "")
	decode(t, w, &got)
	if len(got.Intervals) != 1 || got.Intervals[0].Time != "02:00" {
		t.Errorf("expected overwrite, got %+v", got.Intervals)
	}
}

func TestIntervals_PutRejectsBadRows(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	tests := []struct {
		name string
		body string
	}{
		{"duplicate", `[{"time": "00:30"}, {"time": "00:30"}]`},
		{"malformed time", `[{"time": "7:30"}]`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, "PUT", "/api/days/"+day+"/intervals", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestIntervals_Template(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	var got struct {
		Intervals []api.IntervalJSON `json:"intervals"`
	}
	decode(t, do(h, "GET", "/api/intervals/template", ""), &got)
	if len(got.Intervals) != 48 {
		t.Fatalf("template rows = %d, want 48", len(got.Intervals))
	}
	if got.Intervals[0].Time != "00:30" || got.Intervals[47].Time != "24:00" {
		t.Errorf("template runs %s..%s", got.Intervals[0].Time, got.Intervals[47].Time)
	}
}

func TestIntervals_Patch(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 1000}]`)

	w := do(h, "PATCH", "/api/days/"+day+"/intervals/12:00", `{"actual": 1785}`)
	if w.Code != 200 {
		t.Fatalf("PATCH: %d %s", w.Code, w.Body.String())
	}
	var iv api.IntervalJSON
	decode(t, w, &iv)
	if iv.Status != models.StatusModified || iv.Actual == nil || *iv.Actual != 1785 {
		t.Errorf("patched row = %+v", iv)
	}
	if iv.Scheduled == nil || *iv.Scheduled != 1790 {
		t.Error("scheduled should be untouched")
	}

	decode(t, do(h, "PATCH", "/api/days/"+day+"/intervals/12:00", `{"actual": null}`), &iv)
	if iv.Actual != nil {
		t.Error("null should clear the value")
	}

	if w := do(h, "PATCH", "/api/days/"+day+"/intervals/12:30", `{"actual": 1}`); w.Code != http.StatusNotFound {
		t.Errorf("missing row: expected 404, got %d", w.Code)
	}
	if w := do(h, "PATCH", "/api/days/"+day+"/intervals/25:00", `{"actual": 1}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad label: expected 400, got %d", w.Code)
	}
	if w := do(h, "PATCH", "/api/days/"+day+"/intervals/12:00", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch: expected 400, got %d", w.Code)
	}
}

func TestIntervals_CSV(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "POST", "/api/days/"+day+"/intervals.csv", "hora;pdp;geracao\n00:30;1200,5;\n01:00;1250;1260\n")
	if w.Code != 200 {
		t.Fatalf("POST csv: %d %s", w.Code, w.Body.String())
	}

	w = do(h, "GET", "/api/days/"+day+"/intervals.csv", "")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	want := "hora,pdp,geracao\n00:30,1200.5,\n01:00,1250,1260\n"
	if w.Body.String() != want {
		t.Errorf("csv = %q, want %q", w.Body.String(), want)
	}

	w = do(h, "POST", "/api/days/"+day+"/intervals.csv", "hora,pdp\n00:30,abc\n")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed csv: expected 400, got %d", w.Code)
	}
}

func TestIntervals_XLSX(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	do(h, "PUT", "/api/days/"+day+"/intervals", `[
		{"time": "00:30", "scheduled": 1200.5},
		{"time": "01:00", "scheduled": 1250, "actual": 1260}
	]`)
	w := do(h, "GET", "/api/days/"+day+"/intervals.xlsx", "")
	if w.Code != 200 {
		t.Fatalf("GET xlsx: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != ingest.FormatXLSX.ContentType() {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `intervals-`+day+`.xlsx`) {
		t.Errorf("content disposition = %q", cd)
	}
	workbook := w.Body.String()

	do(h, "DELETE", "/api/days/"+day+"/intervals", "")
	w = do(h, "POST", "/api/days/"+day+"/intervals.xlsx", workbook)
	if w.Code != 200 {
		t.Fatalf("POST xlsx: %d %s", w.Code, w.Body.String())
	}

	var got struct {
		Intervals []api.IntervalJSON `json:"intervals"`
	}
	decode(t, do(h, "GET", "/api/days/"+day+"/intervals", ""), &got)
	if len(got.Intervals) != 2 {
		t.Fatalf("intervals = %+v", got.Intervals)
	}
	if got.Intervals[0].Actual != nil || *got.Intervals[0].Scheduled != 1200.5 || *got.Intervals[1].Actual != 1260 {
		t.Errorf("intervals = %+v", got.Intervals)
	}
	if got.Intervals[0].Source != models.SourceXLSX {
		t.Errorf("source = %q, want xlsx", got.Intervals[0].Source)
	}

	w = do(h, "POST", "/api/days/"+day+"/intervals.xlsx", "hora,pdp\n00:30,1\n")
	if w.Code != http.StatusBadRequest {
		t.Errorf("csv posted as xlsx: expected 400, got %d", w.Code)
	}
}

func TestObservations_Export(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 993}]`)
	do(h, "POST", "/api/days/"+day+"/observations", `{"time": "15:00", "note": "gauge offline"}`)
	do(h, "POST", "/api/days/"+day+"/observations", `{"time": "12:00", "note": "Unit 3 tripped"}`)

	w := do(h, "GET", "/api/days/"+day+"/observations.csv", "")
	if w.Code != 200 {
		t.Fatalf("GET observations.csv: %d %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `observations-`+day+`.csv`) {
		t.Errorf("content disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "hora,pdp,geracao,desvio,observacao,registrado_em" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "12:00,1790,993,-797,Unit 3 tripped,") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "15:00,,,,gauge offline,") {
		t.Errorf("second row = %q", lines[2])
	}

	w = do(h, "GET", "/api/days/"+day+"/observations.xlsx", "")
	if w.Code != 200 || !strings.HasPrefix(w.Body.String(), "PK") {
		t.Errorf("xlsx export: %d", w.Code)
	}
}

func TestObservation_SnapshotSurvivesEdit(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 993}]`)

	w := do(h, "POST", "/api/days/"+day+"/observations", `{"time": "12:00", "note": "Unit 3 tripped"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST observation: %d %s", w.Code, w.Body.String())
	}
	var created api.ObservationJSON
	decode(t, w, &created)

	do(h, "PATCH", "/api/days/"+day+"/intervals/12:00", `{"actual": 1790}`)

	var got struct {
		Observations []api.ObservationJSON `json:"observations"`
	}
	decode(t, do(h, "GET", "/api/days/"+day+"/observations", ""), &got)
	if len(got.Observations) != 1 {
		t.Fatalf("got %d observations", len(got.Observations))
	}
	o := got.Observations[0]
	if o.Actual == nil || *o.Actual != 993 || o.Deviation == nil || *o.Deviation != -797 {
		t.Errorf("snapshot changed: %+v", o)
	}

	w = do(h, "PUT", "/api/observations/"+created.ID, `{"note": "Unit 3 back at 14:00"}`)
	if w.Code != 200 {
		t.Fatalf("PUT observation: %d", w.Code)
	}
	if w := do(h, "PUT", "/api/observations/"+created.ID, `{"note": "   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty note: expected 400, got %d", w.Code)
	}
	if w := do(h, "DELETE", "/api/observations/"+created.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
	if w := do(h, "DELETE", "/api/observations/"+created.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestControls(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "POST", "/api/days/"+day+"/controls", `{"time": "06:12", "setpoint": "1650.4", "responsible": "ONS"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST control: %d %s", w.Code, w.Body.String())
	}
	var c api.ControlJSON
	decode(t, w, &c)
	if c.Setpoint != 1650 {
		t.Errorf("setpoint = %d, want 1650", c.Setpoint)
	}

	w = do(h, "POST", "/api/days/"+day+"/controls", `{"time": "06:30", "setpoint": 1000, "responsible": "Axia Energia", "detail": "flood gate test"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST control: %d %s", w.Code, w.Body.String())
	}

	bad := []string{
		`{"time": "06:12", "setpoint": 10, "responsible": "Someone"}`,
		`{"time": "06:12", "setpoint": "abc", "responsible": "ONS"}`,
		`{"time": "6h", "setpoint": 10, "responsible": "ONS"}`,
	}
	for _, body := range bad {
		if w := do(h, "POST", "/api/days/"+day+"/controls", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}

	var list struct {
		Controls []api.ControlJSON `json:"controls"`
	}
	decode(t, do(h, "GET", "/api/days/"+day+"/controls", ""), &list)
	if len(list.Controls) != 2 || list.Controls[0].Time != "06:30" {
		t.Errorf("expected newest first, got %+v", list.Controls)
	}

	var tl struct {
		Timeline []api.TimelineJSON `json:"timeline"`
	}
	decode(t, do(h, "GET", "/api/days/"+day+"/timeline", ""), &tl)
	if len(tl.Timeline) != 2 {
		t.Fatalf("timeline = %+v", tl.Timeline)
	}
	// 06:12 and 06:30 are 1.25% apart so the second label is raised
	if tl.Timeline[0].Offset != 0 || tl.Timeline[1].Offset != 1 {
		t.Errorf("offsets = %d,%d, want 0,1", tl.Timeline[0].Offset, tl.Timeline[1].Offset)
	}

	w = do(h, "PUT", "/api/controls/"+c.ID, `{"time": "06:15", "setpoint": 1700, "responsible": "ONS"}`)
	if w.Code != 200 {
		t.Fatalf("PUT control: %d %s", w.Code, w.Body.String())
	}
	if w := do(h, "PUT", "/api/controls/missing", `{"time": "06:15", "setpoint": 1, "responsible": "ONS"}`); w.Code != http.StatusNotFound {
		t.Errorf("missing control: expected 404, got %d", w.Code)
	}

	var del map[string]int64
	decode(t, do(h, "DELETE", "/api/days/"+day+"/controls", ""), &del)
	if del["deleted"] != 2 {
		t.Errorf("deleted = %d, want 2", del["deleted"])
	}
}

func TestControls_CSVImportCoercesResponsible(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "POST", "/api/days/"+day+"/controls.csv", "hora,setpoint,responsavel\n10:00,1500,Operador\n11:00,,Axia Energia\n")
	if w.Code != 200 {
		t.Fatalf("POST controls.csv: %d %s", w.Code, w.Body.String())
	}

	events, err := s.GetControlEvents(reportDate(t, s))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	byTime := map[string]models.ControlEvent{}
	for _, ev := range events {
		byTime[ev.Time] = ev
	}
	if byTime["10:00"].Responsible != models.ResponsibleONS {
		t.Errorf("unknown responsible should become ONS, got %q", byTime["10:00"].Responsible)
	}
	if byTime["11:00"].Setpoint != 0 {
		t.Errorf("empty setpoint should be 0, got %d", byTime["11:00"].Setpoint)
	}
}

func TestImport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		fetcher    ingest.ScheduleFetcher
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			fetcher:    &fakeFetcher{values: []models.ScheduledValue{{Time: "00:30", Scheduled: 1650}, {Time: "01:00", Scheduled: 1650}}},
			wantStatus: http.StatusOK,
			wantBody:   `"records":2`,
		},
		{
			name:       "not published",
			fetcher:    &fakeFetcher{err: ons.ErrNoDataYet},
			wantStatus: http.StatusConflict,
			wantBody:   `"error_type":"no_data_yet"`,
		},
		{
			name:       "upstream failure",
			fetcher:    &fakeFetcher{err: errors.New("connection reset")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `"error_type":"upstream"`,
		},
		{
			name:       "no credentials",
			fetcher:    nil,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, loc := setupTestStore(t)
			h := newHandler(t, s, loc, tt.fetcher)

			w := do(h, "POST", "/api/days/"+day+"/import", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHeatmapImage(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 993}]`)
	w := do(h, "GET", "/api/days/"+day+"/heatmap.png", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("expected PNG signature")
	}
}

func TestHeatmapImage_WritesDropCachedImage(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	cacheEntries := func() int {
		var health api.HealthStatus
		decode(t, do(h, "GET", "/health", ""), &health)
		return health.HeatmapCacheEntries
	}

	do(h, "PUT", "/api/days/"+day+"/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 993}]`)
	writes := []struct{ method, path, body string }{
		{"PATCH", "/api/days/" + day + "/intervals/12:00", `{"actual": 1785}`},
		{"PUT", "/api/days/" + day + "/intervals", `[{"time": "12:00", "scheduled": 1790, "actual": 1790}]`},
		{"POST", "/api/days/" + day + "/intervals.csv", "hora,pdp,geracao\n12:00,1790,1700\n"},
		{"DELETE", "/api/days/" + day + "/intervals", ""},
	}
	for _, wr := range writes {
		if w := do(h, "GET", "/api/days/"+day+"/heatmap.png", ""); w.Code != 200 {
			t.Fatalf("heatmap: %d", w.Code)
		}
		if n := cacheEntries(); n != 1 {
			t.Fatalf("cache entries after render = %d, want 1", n)
		}
		if w := do(h, wr.method, wr.path, wr.body); w.Code != 200 {
			t.Fatalf("%s %s: %d %s", wr.method, wr.path, w.Code, w.Body.String())
		}
		if n := cacheEntries(); n != 0 {
			t.Errorf("%s %s left %d cached heatmaps", wr.method, wr.path, n)
		}
	}
}

func TestBadDate(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	for _, path := range []string{"/api/days/2025-13-01/intervals", "/api/days/yesterday/summary", "/?date=10/03/2025"} {
		if w := do(h, "GET", path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestDashboard_NoData(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	w := do(h, "GET", "/?date="+day, "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="no-data"`) {
		t.Error("expected neutral state")
	}
	if strings.Contains(body, `id="heatmap"`) {
		t.Error("expected no heatmap without data")
	}
}

func TestDashboard_MalformedStoredLabel(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)

	if _, err := s.ReplaceIntervals(reportDate(t, s), []models.Interval{
		{Time: "bad", Scheduled: val(1790), Actual: val(1790)},
	}); err != nil {
		t.Fatal(err)
	}

	summary := do(h, "GET", "/api/days/"+day+"/summary", "")
	page := do(h, "GET", "/?date="+day, "")
	if page.Code != http.StatusBadRequest || page.Code != summary.Code {
		t.Errorf("dashboard = %d, summary = %d, want both 400", page.Code, summary.Code)
	}
}

func TestDashboard_WithData(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	h := newHandler(t, s, loc, nil)
	date := reportDate(t, s)

	if _, err := s.ReplaceIntervals(date, []models.Interval{
		{Time: "12:00", Scheduled: val(1790), Actual: val(993)},
		{Time: "12:30", Scheduled: val(1790), Actual: val(1790)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertObservation(date, "12:00", "Unit 3 <b>tripped</b>"); err != nil {
		t.Fatal(err)
	}
	for i, label := range []string{"06:12", "11:47", "13:05", "18:20"} {
		if _, err := s.InsertControlEvent(date, models.ControlEvent{
			Time:        label,
			Setpoint:    int64(1600 + i),
			Responsible: models.ResponsibleONS,
		}); err != nil {
			t.Fatal(err)
		}
	}

	body := do(h, "GET", "/?date="+day, "").Body.String()
	for _, want := range []string{
		"-398.5 MW",
		"50.0%",
		`class="cell red"`,
		`class="cell green"`,
		"Unit 3 tripped",
		`id="show-all"`,
		`id="timeline"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "06:12</td>") {
		t.Error("oldest control should be hidden until expanded")
	}

	body = do(h, "GET", "/?date="+day+"&all=1", "").Body.String()
	if strings.Contains(body, `id="show-all"`) || !strings.Contains(body, "06:12</td>") {
		t.Error("?all=1 should list every control")
	}
}
