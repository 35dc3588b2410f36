package auth

import (
	"bizdesk/pkg/domain"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind a session cookie.
type Session struct {
	Token     string
	UserID    int
	Username  string
	Role      domain.Role
	IsDemo    bool
	ExpiresAt time.Time
}

// SessionStore keeps sessions in process memory. Expired sessions are dropped
// on lookup.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store issuing sessions that live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TTL reports the lifetime of new sessions.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create issues a new session for user.
func (s *SessionStore) Create(user domain.User) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		IsDemo:    user.Role == domain.RoleDemo,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.sessions[sess.Token] = sess
	return sess
}

// Get returns the live session for token.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return sess, true
}

// Delete drops the session for token.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type sessionKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session attached by the gate middleware.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}
