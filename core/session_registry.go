package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Session binds one authenticated user to one opaque token.
type Session struct {
	Token      string
	User       User
	CreatedAt  time.Time
	LastAccess time.Time
}

// SessionRegistry owns the live sessions. At most one live session exists
// per username: CreateOrReplace supersedes any prior session for the same
// user instead of rejecting the login.
type SessionRegistry interface {
	// CreateOrReplace atomically invalidates any existing session for
	// user.Username, creates a fresh one and returns its token.
	CreateOrReplace(ctx context.Context, user User) (string, error)
	// Resolve returns the bound user if the token is live, refreshing its
	// last-access time. The bool is false for unknown, superseded or
	// idle-expired tokens.
	Resolve(ctx context.Context, token string) (User, bool, error)
	// Invalidate removes the session. Unknown tokens are a no-op.
	Invalidate(ctx context.Context, token string) error
}

// NewSessionToken returns a 256-bit random opaque token.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemorySessionRegistry keeps sessions in process memory. Expiry is lazy:
// an idle session is dropped when Resolve next sees it, not by a sweeper.
type MemorySessionRegistry struct {
	mu          sync.Mutex
	idleTimeout time.Duration
	now         func() time.Time
	byToken     map[string]*Session
	byUser      map[string]string // username -> live token
}

func NewMemorySessionRegistry(idleTimeout time.Duration) *MemorySessionRegistry {
	return &MemorySessionRegistry{
		idleTimeout: idleTimeout,
		now:         time.Now,
		byToken:     make(map[string]*Session),
		byUser:      make(map[string]string),
	}
}

func (r *MemorySessionRegistry) CreateOrReplace(_ context.Context, user User) (string, error) {
	token, err := NewSessionToken()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[user.Username]; ok {
		delete(r.byToken, old)
	}
	now := r.now()
	r.byToken[token] = &Session{Token: token, User: user, CreatedAt: now, LastAccess: now}
	r.byUser[user.Username] = token
	return token, nil
}

func (r *MemorySessionRegistry) Resolve(_ context.Context, token string) (User, bool, error) {
	if token == "" {
		return User{}, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byToken[token]
	if !ok {
		return User{}, false, nil
	}
	now := r.now()
	if now.Sub(s.LastAccess) > r.idleTimeout {
		r.removeLocked(s)
		return User{}, false, nil
	}
	s.LastAccess = now
	return s.User, true, nil
}

func (r *MemorySessionRegistry) Invalidate(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byToken[token]; ok {
		r.removeLocked(s)
	}
	return nil
}

func (r *MemorySessionRegistry) removeLocked(s *Session) {
	delete(r.byToken, s.Token)
	// The user index may already point at a superseding session.
	if r.byUser[s.User.Username] == s.Token {
		delete(r.byUser, s.User.Username)
	}
}
