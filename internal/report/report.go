// Package report shapes compliance results for display: per-row assessments,
// heatmap cells, KPI strings and the set-point timeline.
package report

import (
	"fmt"
	"strconv"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/models"
)

// RowAssessment is one interval with its computed deviation and grade. Pointer
// fields are nil when the interval has no actual or scheduled value.
type RowAssessment struct {
	Time      string            `json:"time"`
	Scheduled *float64          `json:"scheduled"`
	Actual    *float64          `json:"actual"`
	Deviation *float64          `json:"deviation"`
	Compliant *bool             `json:"compliant"`
	Grade     *compliance.Grade `json:"grade"`
	Status    models.RowStatus  `json:"status"`
}

// Pending reports whether the row has not been assessed.
func (r RowAssessment) Pending() bool {
	return r.Grade == nil
}

// Assess grades every interval that has both values.
func Assess(intervals []models.Interval) ([]RowAssessment, error) {
	rows := make([]RowAssessment, 0, len(intervals))
	for _, iv := range intervals {
		row := RowAssessment{Time: iv.Time, Status: iv.Status}
		if iv.Scheduled.Valid {
			v := iv.Scheduled.Float64
			row.Scheduled = &v
		}
		if iv.Actual.Valid {
			v := iv.Actual.Float64
			row.Actual = &v
		}

		if iv.Actual.Valid && iv.Scheduled.Valid {
			ok, err := compliance.IsCompliant(iv.Actual.Float64, iv.Scheduled.Float64)
			if err != nil {
				return nil, fmt.Errorf("interval %s: %w", iv.Time, err)
			}
			g, err := compliance.GradeOf(iv.Actual.Float64, iv.Scheduled.Float64)
			if err != nil {
				return nil, fmt.Errorf("interval %s: %w", iv.Time, err)
			}
			d, _ := compliance.Deviation(iv.Actual, iv.Scheduled)
			row.Deviation = &d
			row.Compliant = &ok
			row.Grade = &g
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// HeatmapCell is one colored square of the heatmap.
type HeatmapCell struct {
	Time      string           `json:"time"`
	Deviation float64          `json:"deviation"`
	Grade     compliance.Grade `json:"grade"`
}

// Label is the rounded deviation shown inside the cell.
func (c HeatmapCell) Label() string {
	return strconv.FormatFloat(c.Deviation, 'f', 0, 64) + "MW"
}

// Heatmap returns a cell for every assessed row, in input order. Pending rows
// have no cell.
func Heatmap(rows []RowAssessment) []HeatmapCell {
	var cells []HeatmapCell
	for _, r := range rows {
		if r.Pending() {
			continue
		}
		cells = append(cells, HeatmapCell{Time: r.Time, Deviation: *r.Deviation, Grade: *r.Grade})
	}
	return cells
}

// KPIs are the dashboard headline values, already formatted.
type KPIs struct {
	Empty             bool
	MeanDeviation     string
	MeanDeviationLow  bool // negative mean, shown in red
	PeakActual        string
	PeakTime          string
	CompliancePercent string
}

const noValue = "--"

// FormatKPIs renders a day summary. A nil summary gives the neutral state.
func FormatKPIs(sum *compliance.DaySummary) KPIs {
	if sum == nil {
		return KPIs{
			Empty:             true,
			MeanDeviation:     noValue,
			PeakActual:        noValue,
			PeakTime:          noValue,
			CompliancePercent: noValue,
		}
	}
	k := KPIs{
		MeanDeviation:     noValue,
		PeakActual:        strconv.FormatFloat(sum.PeakActual, 'f', -1, 64) + " MW",
		PeakTime:          sum.PeakTime,
		CompliancePercent: strconv.FormatFloat(sum.CompliancePercent, 'f', 1, 64) + "%",
	}
	if sum.HasDeviation() {
		k.MeanDeviation = MW(sum.MeanDeviation)
		k.MeanDeviationLow = sum.MeanDeviation < 0
	}
	return k
}

// MW formats a power value with one decimal.
func MW(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + " MW"
}

// PeriodRow is one line of the per-period table.
type PeriodRow struct {
	Name          string
	MeanActual    string
	MeanScheduled string
	MeanDeviation string
	DeviationLow  bool
}

func FormatPeriods(sum *compliance.DaySummary) []PeriodRow {
	if sum == nil {
		return nil
	}
	rows := make([]PeriodRow, 0, len(sum.Periods))
	for _, p := range sum.Periods {
		row := PeriodRow{
			Name:          p.Period.Name,
			MeanActual:    strconv.FormatFloat(p.MeanActual, 'f', 1, 64),
			MeanScheduled: noValue,
			MeanDeviation: noValue,
		}
		if p.ScheduledCount > 0 {
			row.MeanScheduled = strconv.FormatFloat(p.MeanScheduled, 'f', 1, 64)
			row.MeanDeviation = strconv.FormatFloat(p.MeanDeviation, 'f', 1, 64)
			row.DeviationLow = p.MeanDeviation < 0
		}
		rows = append(rows, row)
	}
	return rows
}
