package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lox/gendash/internal/metrics"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/report"
)

// handleIndex renders the dashboard for ?date= (default today). ?all=1 lists
// every set-point change, ?print=1 renders the printable layout.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := s.store.Today()
	if v := q.Get("date"); v != "" {
		d, err := s.store.ParseDate(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid date %q", v), http.StatusBadRequest)
			return
		}
		date = d
	}
	data, err := s.getDashboardData(date, q.Get("all") == "1", q.Get("print") == "1")
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	state := "data"
	if data.KPIs.Empty {
		state = "empty"
	}
	metrics.DashboardRenders.WithLabelValues(state).Inc()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("dashboard: render: %v", err)
	}
}

func (s *Server) getDashboardData(date time.Time, all, printView bool) (*DashboardData, error) {
	day, sum, err := s.assessDay(date)
	if err != nil {
		return nil, err
	}
	obs, err := s.store.GetObservations(date)
	if err != nil {
		return nil, err
	}
	events, err := s.store.GetControlEvents(date)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		Date:          day.Date,
		PrevDate:      date.AddDate(0, 0, -1).Format(models.DateLayout),
		NextDate:      date.AddDate(0, 0, 1).Format(models.DateLayout),
		Print:         printView,
		All:           all,
		KPIs:          report.FormatKPIs(sum),
		Periods:       report.FormatPeriods(sum),
		Heatmap:       day.Heatmap,
		Controls:      report.ListControls(events, all, printView),
		Timeline:      report.Timeline(events),
		IntervalCount: len(day.Rows),
		UpdatedAt:     time.Now().In(s.loc).Format("02/01/2006 15:04"),
	}
	for _, o := range report.SortObservations(obs) {
		data.Observations = append(data.Observations, toObservationView(o))
	}

	if run, err := s.store.LastSuccessfulImport(date, models.SourceONS); err != nil {
		log.Printf("dashboard: last import: %v", err)
	} else {
		data.LastImport = run
	}
	return data, nil
}

// handleHealth reports schema version and the import history of the last week.
// Failed imports of today or tomorrow degrade the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:              "ok",
		Imports:             []ImportHealthJSON{},
		HeatmapCacheEntries: s.heatmaps.Len(),
	}

	if v, err := s.store.MigrationVersion(); err != nil {
		health.Errors = append(health.Errors, "schema: "+err.Error())
	} else {
		health.Schema = v
	}

	summaries, err := s.store.GetImportHealth(7)
	if err != nil {
		health.Errors = append(health.Errors, "imports: "+err.Error())
	}
	today := s.store.Today()
	current := map[string]bool{
		today.Format(models.DateLayout):                  true,
		today.AddDate(0, 0, 1).Format(models.DateLayout): true,
	}
	for _, h := range summaries {
		health.Imports = append(health.Imports, ImportHealthJSON{
			Date:          h.ReportDate,
			Source:        h.Source,
			TotalRuns:     h.TotalRuns,
			SuccessRuns:   h.SuccessRuns,
			NoDataRuns:    h.NoDataRuns,
			FailedRuns:    h.FailedRuns,
			RecordsStored: h.RecordsStored,
		})
		if current[h.ReportDate] && h.FailedRuns > 0 && h.SuccessRuns == 0 {
			health.Status = "degraded"
		}
	}

	if runs, err := s.store.GetRecentImportErrors(5); err != nil {
		health.Errors = append(health.Errors, "import errors: "+err.Error())
	} else {
		for _, run := range runs {
			health.RecentErrors = append(health.RecentErrors, ImportErrorJSON{
				Date:      run.ReportDate,
				Source:    run.Source,
				StartedAt: run.StartedAt,
				Error:     run.ErrorMessage.String,
			})
		}
	}

	status := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
