package service

import (
	"errors"
	"testing"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

func TestClampTrustScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  int
	}{
		{"above range", 150, 100},
		{"below range", -10, 0},
		{"lower bound", 0, 0},
		{"upper bound", 100, 100},
		{"in range", 73, 73},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampTrustScore(tt.score); got != tt.want {
				t.Errorf("ClampTrustScore(%d) = %d, want %d", tt.score, got, tt.want)
			}
		})
	}
}

func TestRequiresEmail(t *testing.T) {
	tests := []struct {
		name      string
		postCount int
		verified  bool
		want      bool
	}{
		{"no posts", 0, false, false},
		{"one post", 1, false, false},
		{"two posts unverified", 2, false, true},
		{"five posts verified", 5, true, false},
		{"many posts unverified", 40, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresEmail(tt.postCount, tt.verified); got != tt.want {
				t.Errorf("RequiresEmail(%d, %v) = %v, want %v", tt.postCount, tt.verified, got, tt.want)
			}
		})
	}
}

func TestCanPost(t *testing.T) {
	tests := []struct {
		name  string
		guest model.Guest
		want  error
	}{
		{"fresh active", model.Guest{Status: model.StatusActive}, nil},
		{"active at gate", model.Guest{Status: model.StatusActive, PostCount: 2}, ErrEmailRequired},
		{"active verified", model.Guest{Status: model.StatusActive, PostCount: 9, EmailVerified: true}, nil},
		{"restricted unverified", model.Guest{Status: model.StatusRestricted}, ErrEmailRequired},
		{"restricted verified", model.Guest{Status: model.StatusRestricted, EmailVerified: true}, nil},
		{"blocked", model.Guest{Status: model.StatusBlocked, EmailVerified: true}, ErrGuestBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPost(&tt.guest); !errors.Is(got, tt.want) {
				t.Errorf("CanPost() = %v, want %v", got, tt.want)
			}
		})
	}
}
