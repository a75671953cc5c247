package api

import (
	"database/sql"
	"time"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/report"
	"github.com/lox/gendash/internal/store"
)

// IntervalJSON is the wire form of an interval. Absent values are null.
type IntervalJSON struct {
	Time      string           `json:"time"`
	Scheduled *float64         `json:"scheduled"`
	Actual    *float64         `json:"actual"`
	Status    models.RowStatus `json:"status"`
	Source    string           `json:"source,omitempty"`
}

type ObservationJSON struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Scheduled *float64  `json:"scheduled"`
	Actual    *float64  `json:"actual"`
	Deviation *float64  `json:"deviation"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type ControlJSON struct {
	ID          string             `json:"id"`
	Date        string             `json:"date"`
	Time        string             `json:"time"`
	Setpoint    int64              `json:"setpoint"`
	Responsible models.Responsible `json:"responsible"`
	Detail      *string            `json:"detail"`
	CreatedAt   time.Time          `json:"created_at"`
}

type PeriodJSON struct {
	Name           string   `json:"name"`
	Count          int      `json:"count"`
	ScheduledCount int      `json:"scheduled_count"`
	MeanActual     float64  `json:"mean_actual"`
	MeanScheduled  *float64 `json:"mean_scheduled"`
	MeanDeviation  *float64 `json:"mean_deviation"`
}

// SummaryJSON mirrors compliance.DaySummary. MeanDeviation is null when no
// interval had both values.
type SummaryJSON struct {
	Count             int          `json:"count"`
	DeviationCount    int          `json:"deviation_count"`
	CompliantCount    int          `json:"compliant_count"`
	MeanDeviation     *float64     `json:"mean_deviation"`
	PeakTime          string       `json:"peak_time"`
	PeakActual        float64      `json:"peak_actual"`
	CompliancePercent float64      `json:"compliance_percent"`
	Periods           []PeriodJSON `json:"periods"`
}

// DayReport is the response of the summary endpoint. Summary is null for a
// day without assessed intervals.
type DayReport struct {
	Date    string                 `json:"date"`
	Rows    []report.RowAssessment `json:"rows"`
	Heatmap []report.HeatmapCell   `json:"heatmap"`
	Summary *SummaryJSON           `json:"summary"`
}

type TimelineJSON struct {
	Time        string             `json:"time"`
	Setpoint    int64              `json:"setpoint"`
	Responsible models.Responsible `json:"responsible"`
	Percent     float64            `json:"percent"`
	Offset      int                `json:"offset"`
}

// DashboardData feeds index.html.
type DashboardData struct {
	Date          string
	PrevDate      string
	NextDate      string
	Print         bool
	All           bool
	KPIs          report.KPIs
	Periods       []report.PeriodRow
	Heatmap       []report.HeatmapCell
	Observations  []ObservationView
	Controls      report.ControlList
	Timeline      []report.TimelineEvent
	LastImport    *store.ImportRun
	IntervalCount int
	UpdatedAt     string
}

// ObservationView is an observation with display strings.
type ObservationView struct {
	Time      string
	Note      string
	Scheduled string
	Actual    string
	Deviation string
	Low       bool
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status              string             `json:"status"`
	Schema              int                `json:"schema_version"`
	Imports             []ImportHealthJSON `json:"imports"`
	RecentErrors        []ImportErrorJSON  `json:"recent_errors,omitempty"`
	HeatmapCacheEntries int                `json:"heatmap_cache_entries"`
	Errors              []string           `json:"errors,omitempty"`
}

type ImportHealthJSON struct {
	Date          string `json:"date"`
	Source        string `json:"source"`
	TotalRuns     int    `json:"total_runs"`
	SuccessRuns   int    `json:"success_runs"`
	NoDataRuns    int    `json:"no_data_runs"`
	FailedRuns    int    `json:"failed_runs"`
	RecordsStored int64  `json:"records_stored"`
}

type ImportErrorJSON struct {
	Date      string    `json:"date"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error"`
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func toIntervalJSON(rows []models.Interval) []IntervalJSON {
	out := make([]IntervalJSON, 0, len(rows))
	for _, iv := range rows {
		out = append(out, IntervalJSON{
			Time:      iv.Time,
			Scheduled: floatPtr(iv.Scheduled),
			Actual:    floatPtr(iv.Actual),
			Status:    iv.Status,
			Source:    iv.Source,
		})
	}
	return out
}

func toObservationJSON(o models.Observation) ObservationJSON {
	return ObservationJSON{
		ID:        o.ID,
		Date:      o.ReportDate,
		Time:      o.Time,
		Scheduled: floatPtr(o.Scheduled),
		Actual:    floatPtr(o.Actual),
		Deviation: floatPtr(o.Deviation),
		Note:      o.Note,
		CreatedAt: o.CreatedAt,
	}
}

func toControlJSON(ev models.ControlEvent) ControlJSON {
	c := ControlJSON{
		ID:          ev.ID,
		Date:        ev.ReportDate,
		Time:        ev.Time,
		Setpoint:    ev.Setpoint,
		Responsible: ev.Responsible,
		CreatedAt:   ev.CreatedAt,
	}
	if ev.Detail.Valid {
		d := ev.Detail.String
		c.Detail = &d
	}
	return c
}

func toSummaryJSON(sum *compliance.DaySummary) *SummaryJSON {
	if sum == nil {
		return nil
	}
	out := &SummaryJSON{
		Count:             sum.Count,
		DeviationCount:    sum.DeviationCount,
		CompliantCount:    sum.CompliantCount,
		PeakTime:          sum.PeakTime,
		PeakActual:        sum.PeakActual,
		CompliancePercent: sum.CompliancePercent,
		Periods:           make([]PeriodJSON, 0, len(sum.Periods)),
	}
	if sum.HasDeviation() {
		d := sum.MeanDeviation
		out.MeanDeviation = &d
	}
	for _, p := range sum.Periods {
		pj := PeriodJSON{
			Name:           p.Period.Name,
			Count:          p.Count,
			ScheduledCount: p.ScheduledCount,
			MeanActual:     p.MeanActual,
		}
		if p.ScheduledCount > 0 {
			sched, dev := p.MeanScheduled, p.MeanDeviation
			pj.MeanScheduled, pj.MeanDeviation = &sched, &dev
		}
		out.Periods = append(out.Periods, pj)
	}
	return out
}

func toObservationView(o models.Observation) ObservationView {
	v := ObservationView{Time: o.Time, Note: o.Note, Scheduled: "--", Actual: "--", Deviation: "--"}
	if o.Scheduled.Valid {
		v.Scheduled = report.MW(o.Scheduled.Float64)
	}
	if o.Actual.Valid {
		v.Actual = report.MW(o.Actual.Float64)
	}
	if o.Deviation.Valid {
		v.Deviation = report.MW(o.Deviation.Float64)
		v.Low = o.Deviation.Float64 < 0
	}
	return v
}
