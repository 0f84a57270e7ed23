package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

// GuestRepo is the Postgres implementation of GuestStore and AuditLog.
type GuestRepo struct {
	pool *pgxpool.Pool
}

func NewGuestRepo(pool *pgxpool.Pool) *GuestRepo {
	return &GuestRepo{pool: pool}
}

const guestColumns = `
	id::text, fingerprint, session_id, status, post_count, email, email_verified,
	trust_score, flags, ip_hash, country, city, isp, vpn_detected, tor_detected,
	first_seen, last_seen, blocked_at`

func scanGuest(row pgx.Row, extra ...any) (*model.Guest, error) {
	var g model.Guest
	dest := []any{
		&g.ID, &g.Fingerprint, &g.SessionID, &g.Status, &g.PostCount, &g.Email, &g.EmailVerified,
		&g.TrustScore, &g.Flags, &g.IPHash, &g.Country, &g.City, &g.ISP, &g.VPNDetected, &g.TorDetected,
		&g.FirstSeen, &g.LastSeen, &g.BlockedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if g.Flags == nil {
		g.Flags = []string{}
	}
	return &g, nil
}

// FindByID returns a single guest by its id.
func (r *GuestRepo) FindByID(ctx context.Context, id string) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = $1`, id)
	return scanGuest(row)
}

// FindByFingerprint returns the guest registered for a fingerprint hash.
func (r *GuestRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE fingerprint = $1`, fingerprint)
	return scanGuest(row)
}

// Create inserts a new guest. A concurrent insert for the same fingerprint
// resolves to the existing row, refreshed with the same rules as Touch.
func (r *GuestRepo) Create(ctx context.Context, g model.NewGuest) (*model.Guest, bool, error) {
	e := g.Enrichment
	refresh := e != nil
	if e == nil {
		e = &model.Enrichment{}
	}
	flags := g.Flags
	if flags == nil {
		flags = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO guests (fingerprint, session_id, email, status, trust_score, flags,
		                    ip_hash, country, city, isp, vpn_detected, tor_detected, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (fingerprint) DO UPDATE SET
			last_seen    = EXCLUDED.last_seen,
			session_id   = COALESCE(EXCLUDED.session_id, guests.session_id),
			email        = COALESCE(guests.email, EXCLUDED.email),
			ip_hash      = CASE WHEN $14::boolean THEN EXCLUDED.ip_hash ELSE guests.ip_hash END,
			country      = CASE WHEN $14::boolean THEN EXCLUDED.country ELSE guests.country END,
			city         = CASE WHEN $14::boolean THEN EXCLUDED.city ELSE guests.city END,
			isp          = CASE WHEN $14::boolean THEN EXCLUDED.isp ELSE guests.isp END,
			vpn_detected = CASE WHEN $14::boolean THEN EXCLUDED.vpn_detected ELSE guests.vpn_detected END,
			tor_detected = CASE WHEN $14::boolean THEN EXCLUDED.tor_detected ELSE guests.tor_detected END
		RETURNING `+guestColumns+`, (xmax = 0) AS inserted`,
		g.Fingerprint, g.SessionID, g.Email, g.Status, g.TrustScore, flags,
		e.IPHash, e.Country, e.City, e.ISP, e.VPNDetected, e.TorDetected, g.SeenAt, refresh)

	var inserted bool
	guest, err := scanGuest(row, &inserted)
	if err != nil {
		return nil, false, err
	}
	return guest, inserted, nil
}

// Touch refreshes a returning guest.
func (r *GuestRepo) Touch(ctx context.Context, id string, t model.GuestTouch) (*model.Guest, error) {
	e := t.Enrichment
	refresh := e != nil
	if e == nil {
		e = &model.Enrichment{}
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE guests SET
			last_seen    = $2,
			session_id   = COALESCE($3, session_id),
			email        = COALESCE(email, $4),
			ip_hash      = CASE WHEN $5::boolean THEN $6 ELSE ip_hash END,
			country      = CASE WHEN $5::boolean THEN $7 ELSE country END,
			city         = CASE WHEN $5::boolean THEN $8 ELSE city END,
			isp          = CASE WHEN $5::boolean THEN $9 ELSE isp END,
			vpn_detected = CASE WHEN $5::boolean THEN $10 ELSE vpn_detected END,
			tor_detected = CASE WHEN $5::boolean THEN $11 ELSE tor_detected END
		WHERE id = $1
		RETURNING `+guestColumns,
		id, t.SeenAt, t.SessionID, t.Email, refresh,
		e.IPHash, e.Country, e.City, e.ISP, e.VPNDetected, e.TorDetected)
	return scanGuest(row)
}

// SetStatus updates the status and writes the audit entry in one transaction.
// Re-blocking an already blocked guest keeps the original blocked_at.
func (r *GuestRepo) SetStatus(ctx context.Context, id string, status model.GuestStatus, actor string, at time.Time) (*model.Guest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var previous model.GuestStatus
	err = tx.QueryRow(ctx, `SELECT status FROM guests WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE guests SET
			status     = $2,
			blocked_at = CASE
				WHEN $2 = 'blocked' AND status = 'blocked' THEN COALESCE(blocked_at, $3)
				WHEN $2 = 'blocked' THEN $3
				ELSE NULL
			END
		WHERE id = $1
		RETURNING `+guestColumns,
		id, status, at)
	guest, err := scanGuest(row)
	if err != nil {
		return nil, err
	}

	detail := map[string]any{"from": previous, "to": status}
	if guest.BlockedAt != nil {
		detail["blockedAt"] = guest.BlockedAt
	}
	if err := appendAudit(ctx, tx, model.AuditEvent{
		GuestID:   id,
		Kind:      model.AuditStatusChanged,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: at,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return guest, nil
}

// SetTrustScore stores an already clamped trust score.
func (r *GuestRepo) SetTrustScore(ctx context.Context, id string, score int) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE guests SET trust_score = $2 WHERE id = $1
		RETURNING `+guestColumns, id, score)
	return scanGuest(row)
}

// ToggleFlag removes the flag when present and adds it otherwise.
func (r *GuestRepo) ToggleFlag(ctx context.Context, id, flag string) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE guests SET flags = CASE
			WHEN $2 = ANY(flags) THEN array_remove(flags, $2)
			ELSE array_append(flags, $2)
		END
		WHERE id = $1
		RETURNING `+guestColumns, id, flag)
	return scanGuest(row)
}

// SetVerifiedEmail records an email as verified.
func (r *GuestRepo) SetVerifiedEmail(ctx context.Context, id, email string) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE guests SET email = $2, email_verified = TRUE WHERE id = $1
		RETURNING `+guestColumns, id, email)
	return scanGuest(row)
}

// IncrementPostCount applies the posting gate and the increment in one
// statement so concurrent posts cannot slip past the limit.
func (r *GuestRepo) IncrementPostCount(ctx context.Context, id string, unverifiedLimit int) (*model.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE guests SET post_count = post_count + 1, last_seen = NOW()
		WHERE id = $1
		  AND status <> 'blocked'
		  AND (email_verified OR (status = 'active' AND post_count < $2))
		RETURNING `+guestColumns, id, unverifiedLimit)
	guest, err := scanGuest(row)
	if !errors.Is(err, ErrNotFound) {
		return guest, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM guests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPostingClosed
	}
	return nil, ErrNotFound
}

// List returns guests ordered by most recently seen.
func (r *GuestRepo) List(ctx context.Context, f model.GuestFilter) ([]model.Guest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+guestColumns+`
		FROM guests
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR $2 = ANY(flags))
		ORDER BY last_seen DESC
		LIMIT $3 OFFSET $4`,
		string(f.Status), f.Flag, normalizeLimit(f.Limit), max(f.Offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guests := []model.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return guests, nil
}

// Stats returns aggregate guest statistics for the admin dashboard.
func (r *GuestRepo) Stats(ctx context.Context, activeSince time.Time) (*model.GuestStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_guests,
			COUNT(*) FILTER (WHERE last_seen > $1) AS active_guests,
			COUNT(*) FILTER (WHERE email_verified) AS verified_emails
		FROM guests`

	stats := model.GuestStats{
		ByStatus: make(map[model.GuestStatus]int),
		TopFlags: make(map[string]int),
	}
	err := r.pool.QueryRow(ctx, query, activeSince).Scan(
		&stats.TotalGuests, &stats.ActiveGuests24h, &stats.VerifiedEmails,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM guests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status model.GuestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	flagQuery := `
		SELECT flag, COUNT(*) AS total
		FROM guests, unnest(flags) AS flag
		GROUP BY flag
		ORDER BY total DESC
		LIMIT 20`

	rows, err = r.pool.Query(ctx, flagQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var flag string
		var count int
		if err := rows.Scan(&flag, &count); err != nil {
			return nil, err
		}
		stats.TopFlags[flag] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}

// PurgeStale deletes never-posting active guests idle since before. Guests
// with moderation history or moderation flags are kept.
func (r *GuestRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM guests
		WHERE status = 'active' AND post_count = 0 AND last_seen < $1
		  AND flags <@ ARRAY[$2]::text[]
		  AND NOT EXISTS (
			SELECT 1 FROM guest_audit_log a
			WHERE a.guest_id = guests.id AND a.kind <> $3
		  )`, before, model.FlagNew, model.AuditResolved)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Append writes an audit event.
func (r *GuestRepo) Append(ctx context.Context, e model.AuditEvent) error {
	return appendAudit(ctx, r.pool, e)
}

// ListByGuest returns the newest audit events for a guest.
func (r *GuestRepo) ListByGuest(ctx context.Context, guestID string, limit int) ([]model.AuditEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, guest_id::text, kind, actor, detail, created_at
		FROM guest_audit_log
		WHERE guest_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, guestID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.AuditEvent{}
	for rows.Next() {
		var e model.AuditEvent
		var detail []byte
		if err := rows.Scan(&e.ID, &e.GuestID, &e.Kind, &e.Actor, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func appendAudit(ctx context.Context, db execer, e model.AuditEvent) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err = db.Exec(ctx, `
		INSERT INTO guest_audit_log (guest_id, kind, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.GuestID, e.Kind, e.Actor, detail, e.CreatedAt)
	return err
}
