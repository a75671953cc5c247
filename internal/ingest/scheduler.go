package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/ons"
	"github.com/lox/gendash/internal/store"
)

// RawPayloadRetentionDays bounds how long upstream responses are kept.
const RawPayloadRetentionDays = 90

type Scheduler struct {
	store           *store.Store
	importer        *Importer
	loc             *time.Location
	pollInterval    time.Duration
	cleanupInterval time.Duration
}

func NewScheduler(store *store.Store, importer *Importer, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:           store,
		importer:        importer,
		loc:             loc,
		pollInterval:    1 * time.Hour,
		cleanupInterval: 24 * time.Hour,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.pollSchedules(ctx)
	s.cleanupPayloads()

	pollTicker := time.NewTicker(s.pollInterval)
	cleanupTicker := time.NewTicker(s.cleanupInterval)
	defer pollTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-pollTicker.C:
			s.pollSchedules(ctx)
		case <-cleanupTicker.C:
			s.cleanupPayloads()
		}
	}
}

// pollSchedules imports today's and tomorrow's ONS schedule until each has
// one successful import.
func (s *Scheduler) pollSchedules(ctx context.Context) {
	now := time.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	for _, date := range []time.Time{today, today.AddDate(0, 0, 1)} {
		if ctx.Err() != nil {
			return
		}
		key := date.Format(models.DateLayout)

		last, err := s.store.LastSuccessfulImport(date, models.SourceONS)
		if err != nil {
			log.Printf("scheduler: check last import for %s: %v", key, err)
			continue
		}
		if last != nil {
			continue
		}

		log.Printf("scheduler: importing ONS schedule for %s", key)
		n, err := s.importer.ImportONS(ctx, date)
		switch {
		case errors.Is(err, ons.ErrNoDataYet):
			log.Printf("scheduler: ONS schedule for %s not yet available", key)
		case errors.Is(err, ons.ErrNoCredentials):
			log.Println("scheduler: ONS credentials not configured, skipping import")
			return
		case err != nil:
			log.Printf("scheduler: import ONS schedule for %s: %v", key, err)
		default:
			log.Printf("scheduler: imported %d ONS values for %s", n, key)
		}
	}
}

func (s *Scheduler) cleanupPayloads() {
	n, err := s.store.CleanupOldRawPayloads(RawPayloadRetentionDays)
	if err != nil {
		log.Printf("scheduler: cleanup raw payloads: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: removed %d raw payloads older than %d days", n, RawPayloadRetentionDays)
	}
}
