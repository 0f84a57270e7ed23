package model

import "time"

// Audit event kinds.
const (
	AuditResolved      = "resolved"
	AuditStatusChanged = "status_changed"
	AuditTrustChanged  = "trust_changed"
	AuditFlagToggled   = "flag_toggled"
	AuditEmailVerified = "email_verified"
	AuditPostRecorded  = "post_recorded"
)

// AuditEvent is one entry of a guest's audit trail.
type AuditEvent struct {
	ID        int64          `json:"id"`
	GuestID   string         `json:"guestId"`
	Kind      string         `json:"kind"`
	Actor     string         `json:"actor"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}
