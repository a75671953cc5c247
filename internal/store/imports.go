package store

import (
	"database/sql"
	"time"
)

// ImportRun represents a single scheduled-value import for auditing.
type ImportRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	ReportDate    string
	Source        string // "ons", "csv", "fixture"
	Endpoint      string // "programacao/usina/ListarGeracaoProposta", file name, etc.
	HTTPStatus    sql.NullInt64
	RecordsParsed sql.NullInt64
	RecordsStored sql.NullInt64
	NoData        bool // upstream answered but had nothing published yet
	Success       bool
	ErrorMessage  sql.NullString
}

// StartImportRun creates a new import run record and returns it.
func (s *Store) StartImportRun(date time.Time, source, endpoint string) (*ImportRun, error) {
	run := &ImportRun{
		StartedAt:  time.Now().UTC(),
		ReportDate: dateKey(date),
		Source:     source,
		Endpoint:   endpoint,
	}

	result, err := s.db.Exec(`
		INSERT INTO import_runs (started_at, report_date, source, endpoint, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.ReportDate, run.Source, run.Endpoint)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteImportRun updates the import run with results.
func (s *Store) CompleteImportRun(run *ImportRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE import_runs SET
			finished_at = ?,
			http_status = ?,
			records_parsed = ?,
			records_stored = ?,
			no_data = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.RecordsParsed, run.RecordsStored,
		run.NoData, run.Success, run.ErrorMessage, run.ID)
	return err
}

// LastSuccessfulImport returns the latest successful run for a date and source,
// or nil when there is none.
func (s *Store) LastSuccessfulImport(date time.Time, source string) (*ImportRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, report_date, source, endpoint,
			   http_status, records_parsed, records_stored, no_data, success, error_message
		FROM import_runs
		WHERE report_date = ? AND source = ? AND success = TRUE
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, dateKey(date), source)

	r, err := scanImportRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRecentImportErrors returns recent failed import runs. Runs that found no
// published data are not failures.
func (s *Store) GetRecentImportErrors(limit int) ([]ImportRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, report_date, source, endpoint,
			   http_status, records_parsed, records_stored, no_data, success, error_message
		FROM import_runs
		WHERE success = FALSE AND no_data = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ImportRun
	for rows.Next() {
		r, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func scanImportRun(r rowScanner) (*ImportRun, error) {
	var run ImportRun
	if err := r.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.ReportDate, &run.Source, &run.Endpoint,
		&run.HTTPStatus, &run.RecordsParsed, &run.RecordsStored, &run.NoData, &run.Success, &run.ErrorMessage); err != nil {
		return nil, err
	}
	return &run, nil
}

// ImportHealthSummary aggregates import runs per report date and source.
type ImportHealthSummary struct {
	ReportDate    string
	Source        string
	TotalRuns     int
	SuccessRuns   int
	NoDataRuns    int
	FailedRuns    int
	RecordsStored int64
}

// GetImportHealth returns per-date import summaries for the most recent report dates.
func (s *Store) GetImportHealth(days int) ([]ImportHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			report_date,
			source,
			COUNT(*) AS total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_runs,
			SUM(CASE WHEN no_data THEN 1 ELSE 0 END) AS no_data_runs,
			SUM(CASE WHEN NOT success AND NOT no_data THEN 1 ELSE 0 END) AS failed_runs,
			COALESCE(SUM(records_stored), 0) AS records_stored
		FROM import_runs
		WHERE report_date >= ?
		GROUP BY report_date, source
		ORDER BY report_date DESC, source
	`, dateKey(s.Today().AddDate(0, 0, -days)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ImportHealthSummary
	for rows.Next() {
		var h ImportHealthSummary
		if err := rows.Scan(&h.ReportDate, &h.Source, &h.TotalRuns, &h.SuccessRuns,
			&h.NoDataRuns, &h.FailedRuns, &h.RecordsStored); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
