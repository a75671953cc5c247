package ingest

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/gendash/internal/metrics"
	"github.com/lox/gendash/internal/models"
)

// DayFixture is a complete report day described in YAML, used for seeding
// demo and test databases.
type DayFixture struct {
	Date         string               `yaml:"date"`
	Intervals    []IntervalFixture    `yaml:"intervals"`
	Observations []ObservationFixture `yaml:"observations"`
	Controls     []ControlFixture     `yaml:"controls"`
}

type IntervalFixture struct {
	Time      string   `yaml:"time"`
	Scheduled *float64 `yaml:"scheduled"`
	Actual    *float64 `yaml:"actual"`
}

type ObservationFixture struct {
	Time string `yaml:"time"`
	Note string `yaml:"note"`
}

type ControlFixture struct {
	Time        string  `yaml:"time"`
	Setpoint    float64 `yaml:"setpoint"`
	Responsible string  `yaml:"responsible"`
	Detail      string  `yaml:"detail"`
}

// LoadFixture decodes a day fixture. Unknown keys are rejected.
func LoadFixture(r io.Reader) (*DayFixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx DayFixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if fx.Date == "" {
		return nil, fmt.Errorf("fixture has no date")
	}
	return &fx, nil
}

// ImportFixture replaces everything stored for the fixture's date.
func (im *Importer) ImportFixture(fx *DayFixture) (time.Time, error) {
	date, err := im.store.ParseDate(fx.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("fixture date: %w", err)
	}

	rows := make([]models.Interval, 0, len(fx.Intervals))
	for _, f := range fx.Intervals {
		rows = append(rows, models.Interval{
			Time:      f.Time,
			Scheduled: nullFloat(f.Scheduled),
			Actual:    nullFloat(f.Actual),
			Source:    models.SourceFixture,
		})
	}
	if err := BlockingError(ValidateIntervals(rows)); err != nil {
		return date, err
	}

	run, err := im.store.StartImportRun(date, models.SourceFixture, fx.Date+".yaml")
	if err != nil {
		return date, err
	}
	err = im.applyFixture(date, fx, rows)
	run.Success = err == nil
	run.RecordsParsed = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	} else {
		run.RecordsStored = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
	}
	if cerr := im.store.CompleteImportRun(run); cerr != nil && err == nil {
		err = cerr
	}
	return date, err
}

func (im *Importer) applyFixture(date time.Time, fx *DayFixture, rows []models.Interval) error {
	if _, err := im.store.ReplaceIntervals(date, rows); err != nil {
		return fmt.Errorf("intervals: %w", err)
	}
	metrics.IntervalSaves.WithLabelValues("fixture").Inc()

	if _, err := im.store.DeleteObservations(date); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	for _, o := range fx.Observations {
		if _, err := im.store.InsertObservation(date, o.Time, o.Note); err != nil {
			return fmt.Errorf("observation %s: %w", o.Time, err)
		}
	}

	if _, err := im.store.DeleteControlEvents(date); err != nil {
		return fmt.Errorf("clear controls: %w", err)
	}
	base := time.Now().UTC()
	for i, c := range fx.Controls {
		responsible, err := models.ParseResponsible(c.Responsible)
		if err != nil {
			return fmt.Errorf("control %s: %w", c.Time, err)
		}
		ev := models.ControlEvent{
			Time:        c.Time,
			Setpoint:    models.RoundSetpoint(c.Setpoint),
			Responsible: responsible,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if c.Detail != "" {
			ev.Detail = sql.NullString{String: c.Detail, Valid: true}
		}
		if _, err := im.store.InsertControlEvent(date, ev); err != nil {
			return fmt.Errorf("control %s: %w", c.Time, err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
