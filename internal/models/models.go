package models

import (
	"database/sql"
	"time"
)

// RowStatus tracks the editor lifecycle of an interval row. Analytics ignore it.
type RowStatus string

const (
	StatusNew      RowStatus = "new"
	StatusSaved    RowStatus = "saved"
	StatusModified RowStatus = "modified"
)

// Import sources recorded against interval rows and import runs.
const (
	SourceManual  = "manual"
	SourceCSV     = "csv"
	SourceXLSX    = "xlsx"
	SourceONS     = "ons"
	SourceFixture = "fixture"
)

// DateLayout is the report date format used for partitioning.
const DateLayout = "2006-01-02"

// Interval is one half-hour slot of a report day.
type Interval struct {
	ID        int64
	Time      string // "HH:MM"
	Scheduled sql.NullFloat64
	Actual    sql.NullFloat64
	Status    RowStatus
	Source    string
	UpdatedAt time.Time
}

// ScheduledValue is one programmed generation value handed over by an importer.
type ScheduledValue struct {
	Time      string
	Scheduled float64
}

// Observation is an operator note anchored to an interval. The values are a
// snapshot taken when the note was created.
type Observation struct {
	ID         string
	ReportDate string
	Time       string
	Scheduled  sql.NullFloat64
	Actual     sql.NullFloat64
	Deviation  sql.NullFloat64
	Note       string
	CreatedAt  time.Time
}

// ControlEvent records a set-point change issued to the plant.
type ControlEvent struct {
	ID          string
	ReportDate  string
	Time        string // "HH:MM", minute granularity
	Setpoint    int64  // MW
	Responsible Responsible
	Detail      sql.NullString
	CreatedAt   time.Time
}

// NewDayIntervals returns blank rows for the given labels.
func NewDayIntervals(labels []string) []Interval {
	rows := make([]Interval, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, Interval{Time: l, Status: StatusNew, Source: SourceManual})
	}
	return rows
}
