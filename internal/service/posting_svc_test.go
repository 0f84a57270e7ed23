package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

func TestPosting_GateScenario(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	tasks := NewTaskRunner(zerolog.Nop(), time.Second)
	resolver := NewResolver(store, store, kvstore.NewMemoryStore(), nil, tasks, zerolog.Nop())
	posting := NewPostingService(store, store, tasks, zerolog.Nop())
	moderation := NewModerationService(store, store, nil, zerolog.Nop())

	res, err := resolver.Resolve(ctx, ResolveInput{Fingerprint: "0badc0de"})
	require.NoError(t, err)
	id := res.GuestID

	first, err := posting.RecordPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, first.PostCount)
	assert.False(t, first.RequiresEmail)

	second, err := posting.RecordPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, second.PostCount)
	assert.True(t, second.RequiresEmail)

	_, err = posting.RecordPost(ctx, id)
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = moderation.VerifyEmail(ctx, id, "guest@example.com", "mod")
	require.NoError(t, err)

	third, err := posting.RecordPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, third.PostCount)
	assert.False(t, third.RequiresEmail)

	_, err = moderation.SetStatus(ctx, id, model.StatusBlocked, "mod")
	require.NoError(t, err)
	_, err = posting.RecordPost(ctx, id)
	assert.ErrorIs(t, err, ErrGuestBlocked)

	_, err = moderation.SetStatus(ctx, id, model.StatusRestricted, "mod")
	require.NoError(t, err)
	fourth, err := posting.RecordPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.PostCount)

	tasks.Wait()
}

func TestPosting_RestrictedWithoutEmail(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	g, _, err := store.Create(ctx, model.NewGuest{Fingerprint: "abcdef01", Status: model.StatusRestricted, SeenAt: time.Now()})
	require.NoError(t, err)

	_, err = NewPostingService(store, store, nil, zerolog.Nop()).RecordPost(ctx, g.ID)
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestPosting_UnknownGuest(t *testing.T) {
	store := repository.NewMemoryStore()

	_, err := NewPostingService(store, store, nil, zerolog.Nop()).RecordPost(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGuestNotFound)
}
