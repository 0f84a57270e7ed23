package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
)

// SessionKey is the session-scoped store key holding the guest session token.
const SessionKey = "guest_session_id"

const (
	sessionSuffixLen = 9
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// SessionIssuer hands out one opaque token per browsing session. Tokens are
// not secret and never expire on their own.
type SessionIssuer struct {
	store kvstore.Store
	now   func() time.Time
	rand  io.Reader
}

func NewSessionIssuer(store kvstore.Store) *SessionIssuer {
	return &SessionIssuer{store: store, now: time.Now, rand: rand.Reader}
}

// Token returns the stored token, creating and storing one on first use.
func (s *SessionIssuer) Token(ctx context.Context) (string, error) {
	if tok, ok, err := s.store.Get(ctx, SessionKey); err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	} else if ok && tok != "" {
		return tok, nil
	}

	tok, err := s.newToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, SessionKey, tok); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	return tok, nil
}

// newToken renders base36(unix millis) followed by a random base36 suffix.
func (s *SessionIssuer) newToken() (string, error) {
	buf := make([]byte, sessionSuffixLen)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("session token entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return strconv.FormatInt(s.now().UnixMilli(), 36) + string(buf), nil
}
