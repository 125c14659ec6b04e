// Package auth provides password hashing and redis-backed bearer sessions.
// Tokens are opaque; the token-to-user mapping lives in redis with a TTL, so
// revocation is immediate and no signing key needs rotating.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/autogramhq/automation-service/internal/cache"
)

// ErrInvalidSession is returned for missing, expired or revoked tokens.
var ErrInvalidSession = errors.New("invalid or expired session")

const sessionKeyPrefix = "session:"

// SessionManager issues and validates opaque bearer tokens.
type SessionManager struct {
	cache *cache.Client
	ttl   time.Duration
}

// NewSessionManager creates a session manager with the given token lifetime.
func NewSessionManager(c *cache.Client, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionManager{cache: c, ttl: ttl}
}

// Create issues a new session token for userID.
func (m *SessionManager) Create(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := m.cache.Set(ctx, sessionKeyPrefix+token, userID, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to its user id and refreshes the TTL.
func (m *SessionManager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}
	userID, err := m.cache.Get(ctx, sessionKeyPrefix+token)
	if cache.IsNil(err) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	// Sliding expiry: active sessions stay alive.
	_ = m.cache.Expire(ctx, sessionKeyPrefix+token, m.ttl)
	return userID, nil
}

// Revoke deletes a session token.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	return m.cache.Del(ctx, sessionKeyPrefix+token)
}
