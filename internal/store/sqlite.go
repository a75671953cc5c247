package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/gendash/internal/models"
)

// ErrNotFound is returned when a row addressed by id or time does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// Location returns the plant's local time zone.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Today returns the current report date in the plant's time zone.
func (s *Store) Today() time.Time {
	now := time.Now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

// ParseDate parses a YYYY-MM-DD report date in the plant's time zone.
func (s *Store) ParseDate(v string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, v, s.loc)
}

func dateKey(date time.Time) string {
	return date.Format(models.DateLayout)
}

// GetIntervals returns the rows of one report date ordered by label.
func (s *Store) GetIntervals(date time.Time) ([]models.Interval, error) {
	rows, err := s.db.Query(`
		SELECT id, time, scheduled, actual, status, source, updated_at
		FROM intervals
		WHERE report_date = ?
		ORDER BY time ASC
	`, dateKey(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []models.Interval
	for rows.Next() {
		var iv models.Interval
		var status string
		if err := rows.Scan(&iv.ID, &iv.Time, &iv.Scheduled, &iv.Actual, &status, &iv.Source, &iv.UpdatedAt); err != nil {
			return nil, err
		}
		iv.Status = models.RowStatus(status)
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// GetInterval returns a single row, or ErrNotFound.
func (s *Store) GetInterval(date time.Time, label string) (*models.Interval, error) {
	row := s.db.QueryRow(`
		SELECT id, time, scheduled, actual, status, source, updated_at
		FROM intervals
		WHERE report_date = ? AND time = ?
	`, dateKey(date), label)

	var iv models.Interval
	var status string
	err := row.Scan(&iv.ID, &iv.Time, &iv.Scheduled, &iv.Actual, &status, &iv.Source, &iv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	iv.Status = models.RowStatus(status)
	return &iv, nil
}

// ReplaceIntervals overwrites every row of the date with the given rows in one
// transaction. Stored rows come back with status saved.
func (s *Store) ReplaceIntervals(date time.Time, intervals []models.Interval) ([]models.Interval, error) {
	key := dateKey(date)
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin replace intervals: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM intervals WHERE report_date = ?`, key); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("delete intervals: %w", err)
	}

	for _, iv := range intervals {
		source := iv.Source
		if source == "" {
			source = models.SourceManual
		}
		if _, err := tx.Exec(`
			INSERT INTO intervals (report_date, time, scheduled, actual, status, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, key, iv.Time, iv.Scheduled, iv.Actual, string(models.StatusSaved), source, now); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("insert interval %s: %w", iv.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace intervals: %w", err)
	}

	return s.GetIntervals(date)
}

// DeleteIntervals removes every row of the date.
func (s *Store) DeleteIntervals(date time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM intervals WHERE report_date = ?`, dateKey(date))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// IntervalPatch carries a partial edit of one row. Only fields with the Set
// flag are written; a set field with Valid false clears the value.
type IntervalPatch struct {
	SetScheduled bool
	Scheduled    sql.NullFloat64
	SetActual    bool
	Actual       sql.NullFloat64
}

// SetIntervalValues applies a partial edit. The last write wins and the row is
// marked modified.
func (s *Store) SetIntervalValues(date time.Time, label string, patch IntervalPatch) (*models.Interval, error) {
	result, err := s.db.Exec(`
		UPDATE intervals SET
			scheduled = CASE WHEN ? THEN ? ELSE scheduled END,
			actual = CASE WHEN ? THEN ? ELSE actual END,
			status = ?,
			updated_at = ?
		WHERE report_date = ? AND time = ?
	`, patch.SetScheduled, patch.Scheduled, patch.SetActual, patch.Actual,
		string(models.StatusModified), time.Now().UTC(), dateKey(date), label)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetInterval(date, label)
}

// ApplyScheduled writes scheduled values for the date, creating missing rows and
// keeping any actual values already recorded.
func (s *Store) ApplyScheduled(date time.Time, values []models.ScheduledValue, source string) (int, error) {
	key := dateKey(date)
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin apply scheduled: %w", err)
	}

	for _, v := range values {
		if _, err := tx.Exec(`
			INSERT INTO intervals (report_date, time, scheduled, status, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(report_date, time) DO UPDATE SET
				scheduled = excluded.scheduled,
				source = excluded.source,
				updated_at = excluded.updated_at
		`, key, v.Time, v.Scheduled, string(models.StatusSaved), source, now); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("apply scheduled %s: %w", v.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit apply scheduled: %w", err)
	}
	return len(values), nil
}
