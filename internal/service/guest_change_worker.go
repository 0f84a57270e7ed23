package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// GuestChangeChannel is the NOTIFY channel fired by the guests table trigger.
const GuestChangeChannel = "guest_changes"

// GuestChangeWorker listens for PostgreSQL NOTIFY on guest_changes and
// batches cache invalidation, so a burst of updates to one guest costs a
// single DEL.
type GuestChangeWorker struct {
	pool   *pgxpool.Pool
	cache  *CacheService
	window time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewGuestChangeWorker(pool *pgxpool.Pool, cache *CacheService, logger zerolog.Logger) *GuestChangeWorker {
	return &GuestChangeWorker{
		pool:    pool,
		cache:   cache,
		window:  2 * time.Second,
		logger:  logger.With().Str("component", "guest-change-worker").Logger(),
		pending: make(map[string]struct{}),
	}
}

// Start listens until ctx is cancelled, reconnecting after errors.
func (w *GuestChangeWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("window", w.window).Msg("starting")

	for {
		if err := w.listenLoop(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("stopping (context cancelled)")
				return
			}
			w.logger.Warn().Err(err).Msg("listen error, reconnecting in 5s")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				w.logger.Info().Msg("stopping (context cancelled)")
				return
			}
		}
	}
}

func (w *GuestChangeWorker) listenLoop(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+GuestChangeChannel); err != nil {
		return err
	}
	w.logger.Info().Str("channel", GuestChangeChannel).Msg("listening")

	flushCtx, flushCancel := context.WithCancel(ctx)
	defer flushCancel()
	go w.flushLoop(flushCtx)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		w.Enqueue(n.Payload)
	}
}

// Enqueue marks a guest id for invalidation in the next batch.
func (w *GuestChangeWorker) Enqueue(guestID string) {
	if guestID == "" {
		return
	}
	w.mu.Lock()
	w.pending[guestID] = struct{}{}
	w.mu.Unlock()
}

func (w *GuestChangeWorker) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush(ctx)
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

// flush drains the pending set and returns the number of ids invalidated.
func (w *GuestChangeWorker) flush(ctx context.Context) int {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return 0
	}
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}

	if w.cache != nil {
		if err := w.cache.InvalidateGuests(ctx, ids...); err != nil {
			w.logger.Warn().Err(err).Int("guests", len(ids)).Msg("cache invalidate failed")
			return 0
		}
	}
	w.logger.Debug().Int("guests", len(ids)).Msg("batch invalidated")
	return len(ids)
}
