package middleware

import "testing"

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/guests/resolve", "/api/guests/resolve"},
		{"/api/guests/6f1c2b9e-3d4a-4f7b-9a1e-2c3d4e5f6a7b/posts", "/api/guests/:guestId/posts"},
		{"/api/admin/guests/6f1c2b9e-3d4a-4f7b-9a1e-2c3d4e5f6a7b/status", "/api/admin/guests/:guestId/status"},
		{"/api/admin/guests", "/api/admin/guests"},
		{"/health/live", "/health/live"},
	}
	for _, tt := range tests {
		if got := sanitizePath(tt.path); got != tt.want {
			t.Errorf("sanitizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHashIPForLog(t *testing.T) {
	a := hashIPForLog("203.0.113.7")
	if len(a) != 12 {
		t.Fatalf("expected 12 hex chars, got %q", a)
	}
	if a == hashIPForLog("203.0.113.8") {
		t.Error("different IPs should hash differently")
	}
}
