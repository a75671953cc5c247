package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/htmlutil"
	"github.com/lox/gendash/internal/models"
)

// ErrEmptyNote is returned when a note has no text left after cleaning.
var ErrEmptyNote = errors.New("observation note is empty")

// InsertObservation stores a note against an interval. The interval's current
// values are copied onto the observation and never refreshed afterwards.
func (s *Store) InsertObservation(date time.Time, label, note string) (*models.Observation, error) {
	note = cleanNote(note)
	if note == "" {
		return nil, ErrEmptyNote
	}

	obs := &models.Observation{
		ID:         uuid.NewString(),
		ReportDate: dateKey(date),
		Time:       label,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}

	iv, err := s.GetInterval(date, label)
	switch {
	case err == ErrNotFound:
	case err != nil:
		return nil, fmt.Errorf("load interval %s: %w", label, err)
	default:
		obs.Scheduled = iv.Scheduled
		obs.Actual = iv.Actual
		if d, ok := compliance.Deviation(iv.Actual, iv.Scheduled); ok {
			obs.Deviation = sql.NullFloat64{Float64: d, Valid: true}
		}
	}

	_, err = s.db.Exec(`
		INSERT INTO observations (id, report_date, time, scheduled, actual, deviation, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, obs.ID, obs.ReportDate, obs.Time, obs.Scheduled, obs.Actual, obs.Deviation, obs.Note, obs.CreatedAt)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// GetObservations returns the notes of a date ordered by interval time.
func (s *Store) GetObservations(date time.Time) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, report_date, time, scheduled, actual, deviation, note, created_at
		FROM observations
		WHERE report_date = ?
		ORDER BY time ASC, created_at ASC
	`, dateKey(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *o)
	}
	return results, rows.Err()
}

func (s *Store) GetObservation(id string) (*models.Observation, error) {
	row := s.db.QueryRow(`
		SELECT id, report_date, time, scheduled, actual, deviation, note, created_at
		FROM observations
		WHERE id = ?
	`, id)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

// UpdateObservationNote replaces the note text only; the snapshot stays.
func (s *Store) UpdateObservationNote(id, note string) (*models.Observation, error) {
	note = cleanNote(note)
	if note == "" {
		return nil, ErrEmptyNote
	}
	result, err := s.db.Exec(`UPDATE observations SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return nil, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetObservation(id)
}

func (s *Store) DeleteObservation(id string) error {
	result, err := s.db.Exec(`DELETE FROM observations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteObservations removes every note of the date.
func (s *Store) DeleteObservations(date time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM observations WHERE report_date = ?`, dateKey(date))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(r rowScanner) (*models.Observation, error) {
	var o models.Observation
	if err := r.Scan(&o.ID, &o.ReportDate, &o.Time, &o.Scheduled, &o.Actual, &o.Deviation, &o.Note, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func cleanNote(note string) string {
	return htmlutil.CleanNote(note)
}
