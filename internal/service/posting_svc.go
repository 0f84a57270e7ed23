package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

// PostingService enforces the email gate on the server when a guest posts.
type PostingService struct {
	guests repository.GuestStore
	audit  repository.AuditLog
	tasks  *TaskRunner
	logger zerolog.Logger
}

func NewPostingService(guests repository.GuestStore, audit repository.AuditLog, tasks *TaskRunner, logger zerolog.Logger) *PostingService {
	return &PostingService{
		guests: guests,
		audit:  audit,
		tasks:  tasks,
		logger: logger.With().Str("component", "posting").Logger(),
	}
}

// RecordPost counts one post for the guest if it is allowed to post.
// Blocked guests get ErrGuestBlocked; guests past the gate get ErrEmailRequired.
func (s *PostingService) RecordPost(ctx context.Context, id string) (*model.PostResult, error) {
	g, err := s.guests.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("find guest", err)
	}
	if err := CanPost(g); err != nil {
		return nil, err
	}

	g, err = s.guests.IncrementPostCount(ctx, id, EmailGateThreshold)
	if errors.Is(err, repository.ErrPostingClosed) {
		// state changed between the read and the update
		current, ferr := s.guests.FindByID(ctx, id)
		if ferr != nil {
			return nil, storeError("find guest", ferr)
		}
		if reason := CanPost(current); reason != nil {
			return nil, reason
		}
		return nil, ErrEmailRequired
	}
	if err != nil {
		return nil, storeError("record post", err)
	}

	if s.tasks != nil && s.audit != nil {
		event := model.AuditEvent{
			GuestID: id,
			Kind:    model.AuditPostRecorded,
			Actor:   "system",
			Detail:  map[string]any{"postCount": g.PostCount},
		}
		s.tasks.Go(ctx, "audit-post", func(ctx context.Context) error {
			return s.audit.Append(ctx, event)
		})
	}

	return &model.PostResult{
		GuestID:       g.ID,
		PostCount:     g.PostCount,
		RequiresEmail: RequiresEmail(g.PostCount, g.EmailVerified),
	}, nil
}
