package service

import (
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

const (
	DefaultTrustScore = 50
	MinTrustScore     = 0
	MaxTrustScore     = 100

	// Unverified guests may publish this many posts before an email is required.
	EmailGateThreshold = 2

	NewGuestFlag = model.FlagNew
)

// ClampTrustScore bounds a score to [MinTrustScore, MaxTrustScore].
func ClampTrustScore(score int) int {
	return max(MinTrustScore, min(score, MaxTrustScore))
}

// RequiresEmail is the email gate:
//
//	requires_email = post_count >= 2 AND NOT email_verified
func RequiresEmail(postCount int, emailVerified bool) bool {
	return postCount >= EmailGateThreshold && !emailVerified
}

// CanPost reports why a guest may not post, or nil when it may.
// Restricted guests can only post with a verified email.
func CanPost(g *model.Guest) error {
	switch {
	case g.Status == model.StatusBlocked:
		return ErrGuestBlocked
	case g.Status == model.StatusRestricted && !g.EmailVerified:
		return ErrEmailRequired
	case RequiresEmail(g.PostCount, g.EmailVerified):
		return ErrEmailRequired
	}
	return nil
}
