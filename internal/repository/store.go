package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

var (
	// ErrNotFound is returned when no guest matches the lookup.
	ErrNotFound = errors.New("guest not found")

	// ErrPostingClosed is returned by IncrementPostCount when the guest may
	// not post in its current state.
	ErrPostingClosed = errors.New("guest posting closed")
)

// GuestStore is the record-oriented guest identity store.
type GuestStore interface {
	FindByID(ctx context.Context, id string) (*model.Guest, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*model.Guest, error)

	// Create inserts a guest, or returns the existing one on a fingerprint
	// conflict. created reports whether a new row was inserted.
	Create(ctx context.Context, g model.NewGuest) (guest *model.Guest, created bool, err error)

	Touch(ctx context.Context, id string, t model.GuestTouch) (*model.Guest, error)

	// SetStatus transitions the guest and records a status_changed audit
	// event atomically. blocked_at is set when entering blocked and cleared
	// on any other status.
	SetStatus(ctx context.Context, id string, status model.GuestStatus, actor string, at time.Time) (*model.Guest, error)

	SetTrustScore(ctx context.Context, id string, score int) (*model.Guest, error)
	ToggleFlag(ctx context.Context, id, flag string) (*model.Guest, error)
	SetVerifiedEmail(ctx context.Context, id, email string) (*model.Guest, error)

	// IncrementPostCount bumps the post count only while the guest is allowed
	// to post: not blocked, and either email-verified or active with fewer
	// than unverifiedLimit posts.
	IncrementPostCount(ctx context.Context, id string, unverifiedLimit int) (*model.Guest, error)

	List(ctx context.Context, f model.GuestFilter) ([]model.Guest, error)

	// Stats summarizes all guests; activeSince bounds ActiveGuests24h.
	Stats(ctx context.Context, activeSince time.Time) (*model.GuestStats, error)

	// PurgeStale deletes active guests that never posted and were last seen
	// before the cutoff.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// AuditLog stores guest audit events.
type AuditLog interface {
	Append(ctx context.Context, e model.AuditEvent) error
	ListByGuest(ctx context.Context, guestID string, limit int) ([]model.AuditEvent, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
