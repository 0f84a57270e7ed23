package model

import (
	"time"

	"github.com/DovakiinZ/Sin-City-sub001/pkg/fingerprint"
)

// GuestStatus is the moderation state of a guest.
type GuestStatus string

const (
	StatusActive     GuestStatus = "active"
	StatusRestricted GuestStatus = "restricted"
	StatusBlocked    GuestStatus = "blocked"
)

// FlagNew marks a guest nobody has moderated yet.
const FlagNew = "new"

// Valid reports whether s is one of the three known statuses.
func (s GuestStatus) Valid() bool {
	switch s {
	case StatusActive, StatusRestricted, StatusBlocked:
		return true
	}
	return false
}

// Guest is an anonymous visitor identity keyed by its fingerprint hash.
type Guest struct {
	ID            string      `json:"id"`
	Fingerprint   string      `json:"fingerprint"`
	SessionID     *string     `json:"sessionId,omitempty"`
	Status        GuestStatus `json:"status"`
	PostCount     int         `json:"postCount"`
	Email         *string     `json:"email,omitempty"`
	EmailVerified bool        `json:"emailVerified"`
	TrustScore    int         `json:"trustScore"`
	Flags         []string    `json:"flags"`
	IPHash        *string     `json:"-"`
	Country       *string     `json:"country"`
	City          *string     `json:"city"`
	ISP           *string     `json:"isp"`
	VPNDetected   bool        `json:"vpnDetected"`
	TorDetected   bool        `json:"torDetected"`
	FirstSeen     time.Time   `json:"firstSeen"`
	LastSeen      time.Time   `json:"lastSeen"`
	BlockedAt     *time.Time  `json:"blockedAt"`
}

// HasFlag reports whether the guest carries the given moderation flag.
func (g *Guest) HasFlag(flag string) bool {
	for _, f := range g.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// NewGuest holds the values for a first-time insert.
type NewGuest struct {
	Fingerprint string
	SessionID   *string
	Email       *string
	Status      GuestStatus
	TrustScore  int
	Flags       []string
	Enrichment  *Enrichment
	SeenAt      time.Time
}

// GuestTouch holds the values refreshed on a returning visit. Email is only
// applied when the guest has none on file; Enrichment only when non-nil.
type GuestTouch struct {
	SessionID  *string
	Email      *string
	Enrichment *Enrichment
	SeenAt     time.Time
}

// GuestFilter narrows admin listings.
type GuestFilter struct {
	Status GuestStatus
	Flag   string
	Limit  int
	Offset int
}

// ResolveRequest is the API request body for identity resolution.
type ResolveRequest struct {
	Fingerprint  string                 `json:"fingerprint" validate:"required,fingerprint"`
	Signature    *fingerprint.Signature `json:"signature,omitempty"`
	Email        string                 `json:"email,omitempty" validate:"omitempty,max=254"`
	SessionToken string                 `json:"sessionToken,omitempty" validate:"omitempty,max=64"`
}

// ResolveResult is the outcome of an identity resolution.
type ResolveResult struct {
	GuestID       string      `json:"guestId"`
	Status        GuestStatus `json:"status"`
	PostCount     int         `json:"postCount"`
	RequiresEmail bool        `json:"requiresEmail"`
	Created       bool        `json:"created"`
}

// PostResult is returned after a guest post passes the gate.
type PostResult struct {
	GuestID       string `json:"guestId"`
	PostCount     int    `json:"postCount"`
	RequiresEmail bool   `json:"requiresEmail"`
}

// StatusRequest is the admin body for a status transition.
type StatusRequest struct {
	Status GuestStatus `json:"status" validate:"required,oneof=active restricted blocked"`
}

// TrustRequest is the admin body for a trust score edit. Out-of-range values
// are clamped, not rejected.
type TrustRequest struct {
	TrustScore *int `json:"trustScore" validate:"required"`
}

// FlagRequest is the admin body for toggling a moderation flag.
type FlagRequest struct {
	Flag string `json:"flag" validate:"required,max=32"`
}

// VerifyEmailRequest is the admin body for marking an email verified.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// GuestStats is the admin dashboard summary.
type GuestStats struct {
	TotalGuests     int                 `json:"totalGuests"`
	ActiveGuests24h int                 `json:"activeGuests24h"`
	VerifiedEmails  int                 `json:"verifiedEmails"`
	ByStatus        map[GuestStatus]int `json:"byStatus"`
	TopFlags        map[string]int      `json:"topFlags"`
}
