package main

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

// run executes one guestctl invocation against a shared in-memory store.
func run(t *testing.T, store *repository.MemoryStore, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := newCLI(&out)
	if store != nil {
		c.guests, c.audit = store, store
	}
	defer c.close()

	root := c.rootCmd()
	root.SetArgs(append([]string{"--state-dir", memoryStateDir}, args...))
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestFingerprintCmd(t *testing.T) {
	out, err := run(t, nil, "fingerprint")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}\n`), out)
	assert.Contains(t, out, "signature: guestctl (")

	again, err := run(t, nil, "fingerprint")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestFingerprintCmd_JSON(t *testing.T) {
	out, err := run(t, nil, "fingerprint", "--json")
	require.NoError(t, err)

	var fp struct {
		Hash      string            `json:"hash"`
		Signature map[string]string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fp))
	assert.Len(t, fp.Hash, 8)
	assert.Equal(t, "unknown", fp.Signature["screen"])
	assert.Regexp(t, `^[0-9a-f]{8}$`, fp.Signature["canvasChecksum"])
}

func TestSessionCmd(t *testing.T) {
	out, err := run(t, nil, "session")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]{10,}\n$`), out)
}

func TestResolveAndModerate(t *testing.T) {
	store := repository.NewMemoryStore()

	out, err := run(t, store, "resolve", "--fingerprint", "05e918d2", "--email", "guest@example.com")
	require.NoError(t, err)
	var res model.ResolveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Created)
	assert.Equal(t, model.StatusActive, res.Status)

	out, err = run(t, store, "status", res.GuestID, "blocked")
	require.NoError(t, err)
	var g model.Guest
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, model.StatusBlocked, g.Status)
	assert.NotNil(t, g.BlockedAt)

	out, err = run(t, store, "trust", res.GuestID, "150")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, 100, g.TrustScore)

	out, err = run(t, store, "flag", res.GuestID, "spam")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Contains(t, g.Flags, "spam")

	out, err = run(t, store, "verify-email", res.GuestID, "guest@example.com")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.True(t, g.EmailVerified)

	out, err = run(t, store, "list", "--status", "blocked")
	require.NoError(t, err)
	assert.Contains(t, out, res.GuestID)

	out, err = run(t, store, "history", res.GuestID)
	require.NoError(t, err)
	var events []model.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.GreaterOrEqual(t, len(events), 4)
}

func TestModerationArgValidation(t *testing.T) {
	store := repository.NewMemoryStore()

	_, err := run(t, store, "status", "not-a-uuid", "blocked")
	assert.Error(t, err)

	_, err = run(t, store, "trust", "6f1c2b9e-3d4a-4f7b-9a1e-2c3d4e5f6a7b", "lots")
	assert.Error(t, err)

	_, err = run(t, store, "history", "6f1c2b9e-3d4a-4f7b-9a1e-2c3d4e5f6a7b")
	assert.Error(t, err)

	_, err = run(t, store, "resolve", "--fingerprint", "XYZ")
	assert.Error(t, err)
}

func TestPurgeCmd(t *testing.T) {
	store := repository.NewMemoryStore()
	_, _, err := store.Create(t.Context(), model.NewGuest{
		Fingerprint: "0000dead",
		Status:      model.StatusActive,
		SeenAt:      time.Now().AddDate(0, 0, -90),
	})
	require.NoError(t, err)

	out, err := run(t, store, "purge", "--older-than", "30d")
	require.NoError(t, err)
	assert.Equal(t, "purged 1 stale guests\n", out)
	assert.Equal(t, 0, store.Len())

	_, err = run(t, store, "purge", "--older-than", "soon")
	assert.Error(t, err)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"72h", 72 * time.Hour, false},
		{"0d", 0, true},
		{"-1h", 0, true},
		{"week", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
