package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
	"github.com/DovakiinZ/Sin-City-sub001/pkg/fingerprint"
)

type resolverFixture struct {
	store    *repository.MemoryStore
	local    *kvstore.MemoryStore
	tasks    *TaskRunner
	resolver *Resolver
}

func newResolverFixture(t *testing.T, enricher Enricher) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		store: repository.NewMemoryStore(),
		local: kvstore.NewMemoryStore(),
		tasks: NewTaskRunner(zerolog.Nop(), time.Second),
	}
	f.resolver = NewResolver(f.store, f.store, f.local, enricher, f.tasks, zerolog.Nop())
	return f
}

func staticEnricher(country string) Enricher {
	return EnricherFunc(func(context.Context, string) (*model.Enrichment, error) {
		return &model.Enrichment{Country: &country}, nil
	})
}

func TestResolver_NotReady(t *testing.T) {
	f := newResolverFixture(t, nil)

	_, err := f.resolver.Resolve(context.Background(), ResolveInput{})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 0, f.store.Len())
}

func TestResolver_SignatureMustMatchFingerprint(t *testing.T) {
	ctx := context.Background()
	sig := fingerprint.BuildSignature(fingerprint.Attributes{UserAgent: "guestctl/test"}, fingerprint.NoCanvas)

	tests := []struct {
		name        string
		fingerprint string
		wantErr     error
		wantGuests  int
	}{
		{"matching", sig.Hash(), nil, 1},
		{"mismatched", "0badf00d", ErrFingerprintMismatch, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t, nil)
			_, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: tt.fingerprint, Signature: &sig})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantGuests, f.store.Len())
		})
	}
}

func TestResolver_FirstVisitThenReturn(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, staticEnricher("IS"))

	first, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "1a2b3c4d", SessionToken: "s1"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, model.StatusActive, first.Status)
	assert.Equal(t, 0, first.PostCount)
	assert.False(t, first.RequiresEmail)

	g, err := f.store.FindByID(ctx, first.GuestID)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrustScore, g.TrustScore)
	assert.Equal(t, []string{NewGuestFlag}, g.Flags)
	require.NotNil(t, g.Country)
	assert.Equal(t, "IS", *g.Country)

	cached, ok, err := f.local.Get(ctx, CacheKey("1a2b3c4d"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.GuestID, cached)

	second, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "1a2b3c4d", SessionToken: "s2"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.GuestID, second.GuestID)
	assert.Equal(t, 1, f.store.Len())

	g, err = f.store.FindByID(ctx, first.GuestID)
	require.NoError(t, err)
	require.NotNil(t, g.SessionID)
	assert.Equal(t, "s2", *g.SessionID)

	f.tasks.Wait()
	events, err := f.store.ListByGuest(ctx, first.GuestID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.AuditResolved, events[0].Kind)
}

func TestResolver_EmailGateAfterTwoPosts(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, nil)

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "aaaa0001"})
	require.NoError(t, err)

	for range 2 {
		_, err := f.store.IncrementPostCount(ctx, res.GuestID, EmailGateThreshold)
		require.NoError(t, err)
	}

	res, err = f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "aaaa0001"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PostCount)
	assert.True(t, res.RequiresEmail)

	_, err = f.store.SetVerifiedEmail(ctx, res.GuestID, "guest@example.com")
	require.NoError(t, err)

	res, err = f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "aaaa0001"})
	require.NoError(t, err)
	assert.False(t, res.RequiresEmail)
}

func TestResolver_EmailOnlyWhenNoneOnFile(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, nil)

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "bbbb0001", Email: "first@example.com"})
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "bbbb0001", Email: "second@example.com"})
	require.NoError(t, err)

	g, err := f.store.FindByID(ctx, res.GuestID)
	require.NoError(t, err)
	require.NotNil(t, g.Email)
	assert.Equal(t, "first@example.com", *g.Email)
	assert.False(t, g.EmailVerified)
}

func TestResolver_InvalidEmail(t *testing.T) {
	f := newResolverFixture(t, nil)

	_, err := f.resolver.Resolve(context.Background(), ResolveInput{Fingerprint: "bbbb0002", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.Equal(t, 0, f.store.Len())
}

func TestResolver_EnrichmentFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, EnricherFunc(func(context.Context, string) (*model.Enrichment, error) {
		return nil, errors.New("enrichment endpoint unreachable")
	}))

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "cccc0001"})
	require.NoError(t, err)
	assert.True(t, res.Created)

	g, err := f.store.FindByID(ctx, res.GuestID)
	require.NoError(t, err)
	assert.Nil(t, g.Country)
	assert.Nil(t, g.IPHash)
	assert.False(t, g.VPNDetected)
	assert.False(t, g.TorDetected)
}

func TestResolver_FailedEnrichmentKeepsPreviousFields(t *testing.T) {
	ctx := context.Background()
	fail := false
	f := newResolverFixture(t, EnricherFunc(func(context.Context, string) (*model.Enrichment, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		country := "NZ"
		return &model.Enrichment{Country: &country}, nil
	}))

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "cccc0002"})
	require.NoError(t, err)

	fail = true
	_, err = f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "cccc0002"})
	require.NoError(t, err)

	g, err := f.store.FindByID(ctx, res.GuestID)
	require.NoError(t, err)
	require.NotNil(t, g.Country)
	assert.Equal(t, "NZ", *g.Country)
}

func TestResolver_PersistenceError(t *testing.T) {
	f := newResolverFixture(t, nil)
	cause := errors.New("connection reset by peer")
	f.store.FailWith(cause)

	_, err := f.resolver.Resolve(context.Background(), ResolveInput{Fingerprint: "dddd0001"})
	require.Error(t, err)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, perr.Error(), "connection reset by peer")
}

func TestResolver_StaleCachedID(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, nil)
	require.NoError(t, f.local.Set(ctx, CacheKey("eeee0001"), "00000000-0000-0000-0000-000000000000"))

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "eeee0001"})
	require.NoError(t, err)
	assert.True(t, res.Created)

	cached, _, err := f.local.Get(ctx, CacheKey("eeee0001"))
	require.NoError(t, err)
	assert.Equal(t, res.GuestID, cached)
}

func TestResolver_CachedIDForOtherFingerprintIgnored(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, nil)

	other, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "ffff0001"})
	require.NoError(t, err)
	require.NoError(t, f.local.Set(ctx, CacheKey("ffff0002"), other.GuestID))

	res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "ffff0002"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEqual(t, other.GuestID, res.GuestID)
}

func TestResolver_ConcurrentFirstVisits(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, nil)

	const n = 16
	results := make([]*model.ResolveResult, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.resolver.Resolve(ctx, ResolveInput{Fingerprint: "12341234"})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Len())
	created := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].GuestID, r.GuestID)
		if r.Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestResolver_AuditFailureDoesNotFailResolution(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	tasks := NewTaskRunner(zerolog.Nop(), time.Second)
	failingAudit := auditFunc(func(context.Context, model.AuditEvent) error {
		return errors.New("audit table locked")
	})
	r := NewResolver(store, failingAudit, kvstore.NewMemoryStore(), nil, tasks, zerolog.Nop())

	res, err := r.Resolve(ctx, ResolveInput{Fingerprint: "abcd0001"})
	require.NoError(t, err)
	assert.True(t, res.Created)

	tasks.Wait()
	assert.Equal(t, int64(1), tasks.Failures())
}

func TestResolver_AuditCarriesEnrichment(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	tasks := NewTaskRunner(zerolog.Nop(), time.Second)

	var mu sync.Mutex
	var events []model.AuditEvent
	capture := auditFunc(func(_ context.Context, e model.AuditEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
		return nil
	})

	tests := []struct {
		name        string
		enricher    Enricher
		fingerprint string
		want        map[string]any
	}{
		{
			name:        "enriched",
			enricher:    staticEnricher("DE"),
			fingerprint: "abcd0002",
			want: map[string]any{
				"ip_hash":      nil,
				"country":      "DE",
				"city":         nil,
				"isp":          nil,
				"vpn_detected": false,
				"tor_detected": false,
			},
		},
		{
			name:        "no enrichment",
			fingerprint: "abcd0003",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events = nil
			r := NewResolver(store, capture, kvstore.NewMemoryStore(), tt.enricher, tasks, zerolog.Nop())

			res, err := r.Resolve(ctx, ResolveInput{Fingerprint: tt.fingerprint})
			require.NoError(t, err)
			tasks.Wait()

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, events, 1)
			assert.Equal(t, res.GuestID, events[0].GuestID)
			assert.Equal(t, true, events[0].Detail["created"])
			snapshot, ok := events[0].Detail["enrichment"]
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, tt.want, snapshot)
		})
	}
}

type auditFunc func(ctx context.Context, e model.AuditEvent) error

func (f auditFunc) Append(ctx context.Context, e model.AuditEvent) error { return f(ctx, e) }

func (auditFunc) ListByGuest(context.Context, string, int) ([]model.AuditEvent, error) {
	return nil, nil
}
