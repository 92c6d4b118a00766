// Package session binds opaque tokens to user ids and carries them in a
// signed cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

// ErrNoSession indicates a missing, expired or tampered session.
var ErrNoSession = errors.New("no session")

// Store persists token -> user bindings server side.
type Store interface {
	SaveSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	// SessionUser returns ErrNoSession for unknown or expired tokens.
	SessionUser(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

type entry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) SaveSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = entry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) SessionUser(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[token]
	if !ok {
		return "", ErrNoSession
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.sessions, token)
		return "", ErrNoSession
	}
	return e.userID, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// NewToken returns 32 random bytes, base64url encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
