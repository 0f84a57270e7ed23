package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
	"github.com/DovakiinZ/Sin-City-sub001/pkg/fingerprint"
)

// CacheKeyPrefix prefixes the local-store key that remembers the guest id
// resolved for a fingerprint.
const CacheKeyPrefix = "guest_id_"

// CacheKey returns the local-store key for a fingerprint.
func CacheKey(fingerprint string) string {
	return CacheKeyPrefix + fingerprint
}

// ResolveInput carries everything known about the caller at resolution time.
// Signature is optional; when set it must hash to Fingerprint.
type ResolveInput struct {
	Fingerprint  string
	Signature    *fingerprint.Signature
	Email        string
	SessionToken string
	ClientIP     string
}

// Resolver maps a device fingerprint to a persistent guest record.
type Resolver struct {
	guests   repository.GuestStore
	audit    repository.AuditLog
	local    kvstore.Store
	enricher Enricher
	tasks    *TaskRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewResolver(
	guests repository.GuestStore,
	audit repository.AuditLog,
	local kvstore.Store,
	enricher Enricher,
	tasks *TaskRunner,
	logger zerolog.Logger,
) *Resolver {
	return &Resolver{
		guests:   guests,
		audit:    audit,
		local:    local,
		enricher: enricher,
		tasks:    tasks,
		logger:   logger.With().Str("component", "resolver").Logger(),
		now:      time.Now,
	}
}

// Resolve finds or creates the guest for in.Fingerprint and reports whether
// it must supply an email before posting again.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*model.ResolveResult, error) {
	if in.Fingerprint == "" {
		return nil, ErrNotReady
	}
	if in.Signature != nil && in.Signature.Hash() != in.Fingerprint {
		return nil, ErrFingerprintMismatch
	}

	var email *string
	if e := strings.TrimSpace(in.Email); e != "" {
		if err := checkmail.ValidateFormat(e); err != nil {
			return nil, ErrInvalidEmail
		}
		email = &e
	}
	var session *string
	if in.SessionToken != "" {
		session = &in.SessionToken
	}

	var (
		existing   *model.Guest
		enrichment *model.Enrichment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := r.lookup(gctx, in.Fingerprint)
		if err != nil {
			return err
		}
		existing = found
		return nil
	})
	g.Go(func() error {
		if r.enricher == nil {
			return nil
		}
		e, err := r.enricher.Enrich(gctx, in.ClientIP)
		if err != nil {
			r.logger.Warn().Err(err).Msg("enrichment unavailable, continuing without it")
			return nil
		}
		enrichment = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := r.now()
	var (
		guest   *model.Guest
		created bool
		err     error
	)
	if existing == nil {
		guest, created, err = r.guests.Create(ctx, model.NewGuest{
			Fingerprint: in.Fingerprint,
			SessionID:   session,
			Email:       email,
			Status:      model.StatusActive,
			TrustScore:  DefaultTrustScore,
			Flags:       []string{NewGuestFlag},
			Enrichment:  enrichment,
			SeenAt:      now,
		})
		if err != nil {
			return nil, persistenceError("create guest", err)
		}
	} else {
		guest, err = r.guests.Touch(ctx, existing.ID, model.GuestTouch{
			SessionID:  session,
			Email:      email,
			Enrichment: enrichment,
			SeenAt:     now,
		})
		if err != nil {
			return nil, persistenceError("update guest", err)
		}
	}

	if err := r.local.Set(ctx, CacheKey(in.Fingerprint), guest.ID); err != nil {
		r.logger.Warn().Err(err).Msg("failed to cache guest id locally")
	}

	if r.tasks != nil && r.audit != nil {
		detail := map[string]any{"created": created}
		if enrichment != nil {
			detail["enrichment"] = enrichmentSnapshot(enrichment)
		}
		event := model.AuditEvent{
			GuestID:   guest.ID,
			Kind:      model.AuditResolved,
			Actor:     "system",
			Detail:    detail,
			CreatedAt: now,
		}
		r.tasks.Go(ctx, "audit-resolve", func(ctx context.Context) error {
			return r.audit.Append(ctx, event)
		})
	}

	r.logger.Debug().
		Str("guest_id", guest.ID).
		Bool("created", created).
		Msg("guest resolved")

	return &model.ResolveResult{
		GuestID:       guest.ID,
		Status:        guest.Status,
		PostCount:     guest.PostCount,
		RequiresEmail: RequiresEmail(guest.PostCount, guest.EmailVerified),
		Created:       created,
	}, nil
}

func enrichmentSnapshot(e *model.Enrichment) map[string]any {
	deref := func(p *string) any {
		if p == nil {
			return nil
		}
		return *p
	}
	return map[string]any{
		"ip_hash":      deref(e.IPHash),
		"country":      deref(e.Country),
		"city":         deref(e.City),
		"isp":          deref(e.ISP),
		"vpn_detected": e.VPNDetected,
		"tor_detected": e.TorDetected,
	}
}

// lookup returns the existing guest for fingerprint, or nil when none exists.
// A cached id that no longer resolves falls back to the fingerprint query.
func (r *Resolver) lookup(ctx context.Context, fingerprint string) (*model.Guest, error) {
	if id, ok, err := r.local.Get(ctx, CacheKey(fingerprint)); err != nil {
		r.logger.Warn().Err(err).Msg("local guest cache read failed")
	} else if ok && id != "" {
		g, err := r.guests.FindByID(ctx, id)
		switch {
		case err == nil && g.Fingerprint == fingerprint:
			return g, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, persistenceError("find guest by id", err)
		}
		_ = r.local.Remove(ctx, CacheKey(fingerprint))
	}

	g, err := r.guests.FindByFingerprint(ctx, fingerprint)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("find guest by fingerprint", err)
	}
	return g, nil
}
