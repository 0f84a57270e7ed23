package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

// MemoryStore is an in-process GuestStore and AuditLog used by tests and
// the CLI dry-run mode. It mirrors the Postgres semantics, including the
// unique fingerprint constraint.
type MemoryStore struct {
	mu            sync.Mutex
	guests        map[string]*model.Guest
	byFingerprint map[string]string
	events        []model.AuditEvent
	nextEventID   int64
	err           error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guests:        make(map[string]*model.Guest),
		byFingerprint: make(map[string]string),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Len returns the number of stored guests.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.guests)
}

func cloneGuest(g *model.Guest) *model.Guest {
	c := *g
	c.Flags = slices.Clone(g.Flags)
	if c.Flags == nil {
		c.Flags = []string{}
	}
	return &c
}

func (m *MemoryStore) get(id string) (*model.Guest, error) {
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.guests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return cloneGuest(g), nil
}

func (m *MemoryStore) FindByFingerprint(ctx context.Context, fingerprint string) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	id, ok := m.byFingerprint[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGuest(m.guests[id]), nil
}

func (m *MemoryStore) Create(ctx context.Context, ng model.NewGuest) (*model.Guest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}

	if id, ok := m.byFingerprint[ng.Fingerprint]; ok {
		g := m.guests[id]
		touchLocked(g, model.GuestTouch{
			SessionID:  ng.SessionID,
			Email:      ng.Email,
			Enrichment: ng.Enrichment,
			SeenAt:     ng.SeenAt,
		})
		return cloneGuest(g), false, nil
	}

	g := &model.Guest{
		ID:          uuid.NewString(),
		Fingerprint: ng.Fingerprint,
		SessionID:   ng.SessionID,
		Status:      ng.Status,
		Email:       ng.Email,
		TrustScore:  ng.TrustScore,
		Flags:       slices.Clone(ng.Flags),
		FirstSeen:   ng.SeenAt,
		LastSeen:    ng.SeenAt,
	}
	if g.Flags == nil {
		g.Flags = []string{}
	}
	applyEnrichment(g, ng.Enrichment)

	m.guests[g.ID] = g
	m.byFingerprint[g.Fingerprint] = g.ID
	return cloneGuest(g), true, nil
}

func applyEnrichment(g *model.Guest, e *model.Enrichment) {
	if e == nil {
		return
	}
	g.IPHash = e.IPHash
	g.Country = e.Country
	g.City = e.City
	g.ISP = e.ISP
	g.VPNDetected = e.VPNDetected
	g.TorDetected = e.TorDetected
}

func (m *MemoryStore) Touch(ctx context.Context, id string, t model.GuestTouch) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	touchLocked(g, t)
	return cloneGuest(g), nil
}

// touchLocked applies the returning-visit rules shared by Touch and the
// conflict branch of Create.
func touchLocked(g *model.Guest, t model.GuestTouch) {
	g.LastSeen = t.SeenAt
	if t.SessionID != nil {
		g.SessionID = t.SessionID
	}
	if g.Email == nil && t.Email != nil {
		g.Email = t.Email
	}
	applyEnrichment(g, t.Enrichment)
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status model.GuestStatus, actor string, at time.Time) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}

	previous := g.Status
	switch {
	case status == model.StatusBlocked && previous == model.StatusBlocked && g.BlockedAt != nil:
	case status == model.StatusBlocked:
		blockedAt := at
		g.BlockedAt = &blockedAt
	default:
		g.BlockedAt = nil
	}
	g.Status = status

	detail := map[string]any{"from": previous, "to": status}
	if g.BlockedAt != nil {
		detail["blockedAt"] = *g.BlockedAt
	}
	m.appendLocked(model.AuditEvent{
		GuestID:   id,
		Kind:      model.AuditStatusChanged,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: at,
	})
	return cloneGuest(g), nil
}

func (m *MemoryStore) SetTrustScore(ctx context.Context, id string, score int) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	g.TrustScore = score
	return cloneGuest(g), nil
}

func (m *MemoryStore) ToggleFlag(ctx context.Context, id, flag string) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if slices.Contains(g.Flags, flag) {
		g.Flags = slices.DeleteFunc(g.Flags, func(f string) bool { return f == flag })
	} else {
		g.Flags = append(g.Flags, flag)
	}
	return cloneGuest(g), nil
}

func (m *MemoryStore) SetVerifiedEmail(ctx context.Context, id, email string) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	g.Email = &email
	g.EmailVerified = true
	return cloneGuest(g), nil
}

func (m *MemoryStore) IncrementPostCount(ctx context.Context, id string, unverifiedLimit int) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if g.Status == model.StatusBlocked {
		return nil, ErrPostingClosed
	}
	if !g.EmailVerified && (g.Status != model.StatusActive || g.PostCount >= unverifiedLimit) {
		return nil, ErrPostingClosed
	}
	g.PostCount++
	g.LastSeen = time.Now()
	return cloneGuest(g), nil
}

func (m *MemoryStore) List(ctx context.Context, f model.GuestFilter) ([]model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	matched := []model.Guest{}
	for _, g := range m.guests {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.Flag != "" && !g.HasFlag(f.Flag) {
			continue
		}
		matched = append(matched, *cloneGuest(g))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastSeen.After(matched[j].LastSeen)
	})

	offset := max(f.Offset, 0)
	if offset >= len(matched) {
		return []model.Guest{}, nil
	}
	end := min(offset+normalizeLimit(f.Limit), len(matched))
	return matched[offset:end], nil
}

func (m *MemoryStore) Stats(ctx context.Context, activeSince time.Time) (*model.GuestStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	stats := &model.GuestStats{
		TotalGuests: len(m.guests),
		ByStatus:    make(map[model.GuestStatus]int),
		TopFlags:    make(map[string]int),
	}
	for _, g := range m.guests {
		stats.ByStatus[g.Status]++
		if g.LastSeen.After(activeSince) {
			stats.ActiveGuests24h++
		}
		if g.EmailVerified {
			stats.VerifiedEmails++
		}
		for _, f := range g.Flags {
			stats.TopFlags[f]++
		}
	}
	return stats, nil
}

func (m *MemoryStore) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}

	moderated := make(map[string]bool)
	for _, e := range m.events {
		if e.Kind != model.AuditResolved {
			moderated[e.GuestID] = true
		}
	}

	var n int64
	for id, g := range m.guests {
		if g.Status != model.StatusActive || g.PostCount != 0 || !g.LastSeen.Before(before) {
			continue
		}
		if moderated[id] || slices.ContainsFunc(g.Flags, func(f string) bool { return f != model.FlagNew }) {
			continue
		}
		delete(m.guests, id)
		delete(m.byFingerprint, g.Fingerprint)
		m.events = slices.DeleteFunc(m.events, func(e model.AuditEvent) bool { return e.GuestID == id })
		n++
	}
	return n, nil
}

func (m *MemoryStore) Append(ctx context.Context, e model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.guests[e.GuestID]; !ok {
		return ErrNotFound
	}
	m.appendLocked(e)
	return nil
}

func (m *MemoryStore) appendLocked(e model.AuditEvent) {
	m.nextEventID++
	e.ID = m.nextEventID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.events = append(m.events, e)
}

func (m *MemoryStore) ListByGuest(ctx context.Context, guestID string, limit int) ([]model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	events := []model.AuditEvent{}
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].GuestID == guestID {
			events = append(events, m.events[i])
		}
	}
	if n := normalizeLimit(limit); len(events) > n {
		events = events[:n]
	}
	return events, nil
}

var (
	_ GuestStore = (*MemoryStore)(nil)
	_ AuditLog   = (*MemoryStore)(nil)
	_ GuestStore = (*GuestRepo)(nil)
	_ AuditLog   = (*GuestRepo)(nil)
)
