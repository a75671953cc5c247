package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lox/gendash/internal/models"
)

// InsertControlEvent appends a set-point change. ID and CreatedAt are assigned
// when empty.
func (s *Store) InsertControlEvent(date time.Time, ev models.ControlEvent) (*models.ControlEvent, error) {
	r, err := models.ParseResponsible(string(ev.Responsible))
	if err != nil {
		return nil, err
	}
	ev.Responsible = r
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.ReportDate = dateKey(date)

	_, err = s.db.Exec(`
		INSERT INTO control_events (id, report_date, time, setpoint, responsible, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.ReportDate, ev.Time, ev.Setpoint, string(ev.Responsible), ev.Detail, ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetControlEvents returns the events of a date, most recently recorded first.
func (s *Store) GetControlEvents(date time.Time) ([]models.ControlEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, report_date, time, setpoint, responsible, detail, created_at
		FROM control_events
		WHERE report_date = ?
		ORDER BY created_at DESC, rowid DESC
	`, dateKey(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ControlEvent
	for rows.Next() {
		ev, err := scanControlEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *ev)
	}
	return results, rows.Err()
}

func (s *Store) GetControlEvent(id string) (*models.ControlEvent, error) {
	row := s.db.QueryRow(`
		SELECT id, report_date, time, setpoint, responsible, detail, created_at
		FROM control_events
		WHERE id = ?
	`, id)
	ev, err := scanControlEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ev, err
}

// UpdateControlEvent rewrites time, set-point, responsible party and detail.
func (s *Store) UpdateControlEvent(ev models.ControlEvent) (*models.ControlEvent, error) {
	r, err := models.ParseResponsible(string(ev.Responsible))
	if err != nil {
		return nil, err
	}
	ev.Responsible = r
	result, err := s.db.Exec(`
		UPDATE control_events SET time = ?, setpoint = ?, responsible = ?, detail = ?
		WHERE id = ?
	`, ev.Time, ev.Setpoint, string(ev.Responsible), ev.Detail, ev.ID)
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
	return s.GetControlEvent(ev.ID)
}

func (s *Store) DeleteControlEvent(id string) error {
	result, err := s.db.Exec(`DELETE FROM control_events WHERE id = ?`, id)
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

// DeleteControlEvents removes every event of the date.
func (s *Store) DeleteControlEvents(date time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM control_events WHERE report_date = ?`, dateKey(date))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanControlEvent(r rowScanner) (*models.ControlEvent, error) {
	var ev models.ControlEvent
	var responsible string
	if err := r.Scan(&ev.ID, &ev.ReportDate, &ev.Time, &ev.Setpoint, &responsible, &ev.Detail, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Responsible = models.Responsible(responsible)
	return &ev, nil
}
