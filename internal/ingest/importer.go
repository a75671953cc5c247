package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/lox/gendash/internal/metrics"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/ons"
	"github.com/lox/gendash/internal/store"
)

// ScheduleFetcher returns the proposed schedule of one report date.
type ScheduleFetcher interface {
	FetchScheduled(ctx context.Context, date time.Time) ([]models.ScheduledValue, *ons.FetchResult, error)
}

// Importer writes externally sourced values into the store and keeps the
// import_runs audit trail.
type Importer struct {
	store   *store.Store
	fetcher ScheduleFetcher
}

func NewImporter(st *store.Store, fetcher ScheduleFetcher) *Importer {
	return &Importer{store: st, fetcher: fetcher}
}

// ImportONS fetches the operator's proposed schedule for date and applies it,
// keeping actual values already recorded. ons.ErrNoDataYet is returned as-is
// and recorded as a no-data run.
func (im *Importer) ImportONS(ctx context.Context, date time.Time) (int, error) {
	if im.fetcher == nil {
		return 0, ons.ErrNoCredentials
	}
	key := date.Format(models.DateLayout)

	run, err := im.store.StartImportRun(date, models.SourceONS, ons.ProposalEndpoint)
	if err != nil {
		log.Printf("importer: start import run: %v", err)
	}

	values, result, err := im.fetcher.FetchScheduled(ctx, date)

	if run != nil && result != nil {
		run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: result.HTTPStatus > 0}
		run.RecordsParsed = sql.NullInt64{Int64: int64(result.RecordCount), Valid: true}
		if result.ResponseSize > 0 {
			metrics.ONSResponseBytes.Observe(float64(result.ResponseSize))
			log.Printf("importer: ONS answered %d for %s (%d bytes, %d records)", result.HTTPStatus, key, result.ResponseSize, result.RecordCount)
		}
		if len(result.Body) > 0 {
			if _, perr := im.store.StoreRawPayload(&run.ID, models.SourceONS, ons.ProposalEndpoint, result.Body); perr != nil {
				log.Printf("importer: store ONS raw payload: %v", perr)
			}
		}
	}

	stored := 0
	switch {
	case errors.Is(err, ons.ErrNoDataYet):
		log.Printf("importer: ONS schedule for %s not published yet", key)
		metrics.ImportsTotal.WithLabelValues(models.SourceONS, "no_data").Inc()
		if run != nil {
			run.NoData = true
		}
	case err != nil:
		log.Printf("importer: fetch ONS schedule for %s: %v", key, err)
		metrics.ImportsTotal.WithLabelValues(models.SourceONS, "error").Inc()
		err = fmt.Errorf("fetch ONS schedule: %w", err)
	default:
		stored, err = im.store.ApplyScheduled(date, values, models.SourceONS)
		if err != nil {
			metrics.ImportsTotal.WithLabelValues(models.SourceONS, "error").Inc()
			err = fmt.Errorf("apply ONS schedule: %w", err)
			break
		}
		log.Printf("importer: applied %d ONS values for %s", stored, key)
		metrics.ImportsTotal.WithLabelValues(models.SourceONS, "success").Inc()
		metrics.ScheduledValuesImported.WithLabelValues(models.SourceONS).Add(float64(stored))
	}

	if run != nil {
		run.Success = err == nil
		run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: err == nil}
		if err != nil && !run.NoData {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		if cerr := im.store.CompleteImportRun(run); cerr != nil {
			log.Printf("importer: complete import run: %v", cerr)
		}
	}

	return stored, err
}

// ImportFile replaces the date's intervals with the rows of an
// hora,pdp,geracao file. Rows with malformed or repeated times reject the
// whole file; negative values are stored and reported back.
func (im *Importer) ImportFile(date time.Time, r io.Reader, name string, f Format) ([]models.Interval, []RowIssue, error) {
	run, err := im.store.StartImportRun(date, f.Source(), name)
	if err != nil {
		log.Printf("importer: start import run: %v", err)
	}

	rows, issues, err := im.importFile(date, r, f)

	if run != nil {
		run.Success = err == nil
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(rows)), Valid: rows != nil}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		} else {
			run.RecordsStored = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
		}
		if cerr := im.store.CompleteImportRun(run); cerr != nil {
			log.Printf("importer: complete import run: %v", cerr)
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ImportsTotal.WithLabelValues(f.Source(), outcome).Inc()
	return rows, issues, err
}

func (im *Importer) importFile(date time.Time, r io.Reader, f Format) ([]models.Interval, []RowIssue, error) {
	rows, err := ReadIntervals(r, f)
	if err != nil {
		return nil, nil, err
	}
	issues := ValidateIntervals(rows)
	for _, is := range issues {
		log.Printf("importer: %s row %s flagged %s", f.Ext(), is.Time, QualityFlagsToJSON(is.Flags))
	}
	if err := BlockingError(issues); err != nil {
		return rows, issues, err
	}

	saved, err := im.store.ReplaceIntervals(date, rows)
	if err != nil {
		return rows, issues, fmt.Errorf("save %s rows: %w", f.Ext(), err)
	}
	return saved, issues, nil
}
