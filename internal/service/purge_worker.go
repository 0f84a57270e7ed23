package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

// PurgeWorker deletes abandoned guests on a cron schedule: active guests
// that never posted and have not been seen for maxAge.
type PurgeWorker struct {
	guests repository.GuestStore
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
	cron   *cron.Cron
}

func NewPurgeWorker(guests repository.GuestStore, maxAge time.Duration, logger zerolog.Logger) *PurgeWorker {
	return &PurgeWorker{
		guests: guests,
		maxAge: maxAge,
		logger: logger.With().Str("component", "purge-worker").Logger(),
		now:    time.Now,
	}
}

// Purge runs one cleanup pass and returns the number of guests deleted.
func (w *PurgeWorker) Purge(ctx context.Context) (int64, error) {
	if w.maxAge <= 0 {
		return 0, fmt.Errorf("purge max age must be positive, got %s", w.maxAge)
	}
	n, err := w.guests.PurgeStale(ctx, w.now().Add(-w.maxAge))
	if err != nil {
		return 0, persistenceError("purge stale guests", err)
	}
	return n, nil
}

// Start schedules Purge with a standard five-field cron expression.
func (w *PurgeWorker) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() { w.tick(ctx) })
	if err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	w.cron = c
	c.Start()
	w.logger.Info().Str("schedule", schedule).Dur("max_age", w.maxAge).Msg("starting")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (w *PurgeWorker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.logger.Info().Msg("stopped")
}

func (w *PurgeWorker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	n, err := w.Purge(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("purge failed")
		return
	}
	w.logger.Info().
		Int64("deleted", n).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("purge complete")
}
