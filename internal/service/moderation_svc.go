package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/rs/zerolog"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

// ModerationService implements the admin actions on guests.
type ModerationService struct {
	guests repository.GuestStore
	audit  repository.AuditLog
	cache  *CacheService
	logger zerolog.Logger
	now    func() time.Time
}

func NewModerationService(guests repository.GuestStore, audit repository.AuditLog, cache *CacheService, logger zerolog.Logger) *ModerationService {
	return &ModerationService{
		guests: guests,
		audit:  audit,
		cache:  cache,
		logger: logger.With().Str("component", "moderation").Logger(),
		now:    time.Now,
	}
}

// SetStatus moves a guest to any status. Entering blocked stamps blocked_at;
// leaving it clears the stamp. The transition is recorded in the audit log.
func (s *ModerationService) SetStatus(ctx context.Context, id string, status model.GuestStatus, actor string) (*model.Guest, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	g, err := s.guests.SetStatus(ctx, id, status, actorOrDefault(actor), s.now())
	if err != nil {
		return nil, storeError("set guest status", err)
	}
	s.invalidate(ctx, id)
	s.logger.Info().Str("guest_id", id).Str("status", string(status)).Str("actor", actor).Msg("guest status changed")
	return g, nil
}

// SetTrustScore stores score clamped to [0,100].
func (s *ModerationService) SetTrustScore(ctx context.Context, id string, score int, actor string) (*model.Guest, error) {
	clamped := ClampTrustScore(score)
	g, err := s.guests.SetTrustScore(ctx, id, clamped)
	if err != nil {
		return nil, storeError("set trust score", err)
	}
	s.record(ctx, id, model.AuditTrustChanged, actor, map[string]any{"requested": score, "trustScore": clamped})
	s.invalidate(ctx, id)
	return g, nil
}

// ToggleFlag removes flag when present and adds it otherwise.
func (s *ModerationService) ToggleFlag(ctx context.Context, id, flag, actor string) (*model.Guest, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return nil, ErrInvalidFlag
	}
	g, err := s.guests.ToggleFlag(ctx, id, flag)
	if err != nil {
		return nil, storeError("toggle flag", err)
	}
	s.record(ctx, id, model.AuditFlagToggled, actor, map[string]any{"flag": flag, "present": g.HasFlag(flag)})
	s.invalidate(ctx, id)
	return g, nil
}

// VerifyEmail records email as the guest's verified address.
func (s *ModerationService) VerifyEmail(ctx context.Context, id, email, actor string) (*model.Guest, error) {
	email = strings.TrimSpace(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, ErrInvalidEmail
	}
	g, err := s.guests.SetVerifiedEmail(ctx, id, email)
	if err != nil {
		return nil, storeError("verify email", err)
	}
	s.record(ctx, id, model.AuditEmailVerified, actor, nil)
	s.invalidate(ctx, id)
	return g, nil
}

// Get returns a guest, serving from cache when possible.
func (s *ModerationService) Get(ctx context.Context, id string) (*model.Guest, error) {
	if s.cache != nil {
		if g, err := s.cache.GetGuest(ctx, id); err != nil {
			s.logger.Warn().Err(err).Msg("guest cache read failed")
		} else if g != nil {
			return g, nil
		}
	}

	g, err := s.guests.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("find guest", err)
	}
	if s.cache != nil {
		if err := s.cache.SetGuest(ctx, g); err != nil {
			s.logger.Warn().Err(err).Msg("guest cache write failed")
		}
	}
	return g, nil
}

// List returns guests matching f, most recently seen first.
func (s *ModerationService) List(ctx context.Context, f model.GuestFilter) ([]model.Guest, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	guests, err := s.guests.List(ctx, f)
	if err != nil {
		return nil, storeError("list guests", err)
	}
	return guests, nil
}

// Stats returns aggregate guest statistics, counting guests seen in the
// last 24 hours as active.
func (s *ModerationService) Stats(ctx context.Context) (*model.GuestStats, error) {
	stats, err := s.guests.Stats(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, persistenceError("guest stats", err)
	}
	return stats, nil
}

// History returns a guest's audit trail, newest first.
func (s *ModerationService) History(ctx context.Context, id string, limit int) ([]model.AuditEvent, error) {
	if _, err := s.guests.FindByID(ctx, id); err != nil {
		return nil, storeError("find guest", err)
	}
	events, err := s.audit.ListByGuest(ctx, id, limit)
	if err != nil {
		return nil, storeError("list audit events", err)
	}
	return events, nil
}

func (s *ModerationService) record(ctx context.Context, id, kind, actor string, detail map[string]any) {
	err := s.audit.Append(ctx, model.AuditEvent{
		GuestID:   id,
		Kind:      kind,
		Actor:     actorOrDefault(actor),
		Detail:    detail,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("guest_id", id).Str("kind", kind).Msg("audit append failed")
	}
}

func (s *ModerationService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGuests(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("guest_id", id).Msg("guest cache invalidate failed")
	}
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "admin"
	}
	return actor
}

// storeError maps repository errors to service errors.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGuestNotFound
	}
	return persistenceError(op, err)
}
